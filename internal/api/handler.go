package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/idempotency"
	"github.com/punchamoorthee/bloodbank/internal/service"
	"go.uber.org/zap"
)

type Handler struct {
	coord *service.Coordinator
	idem  idempotency.Store
	log   *zap.Logger
}

func NewHandler(coord *service.Coordinator, idem idempotency.Store, log *zap.Logger) *Handler {
	if idem == nil {
		idem = idempotency.NewMemory(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{coord: coord, idem: idem, log: log}
}

// Router wires every endpoint. Owner identity travels in the request; the
// API does no authentication of its own.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing, h.instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/hospitals", h.CreateHospitalHandler).Methods("POST")
	v1.HandleFunc("/hospitals", h.ListHospitalsHandler).Methods("GET")
	v1.HandleFunc("/hospitals/{id}", h.GetHospitalHandler).Methods("GET")
	v1.HandleFunc("/hospitals/{id}", h.UpdateHospitalHandler).Methods("PUT")
	v1.HandleFunc("/hospitals/{id}/inventory", h.ListHospitalInventoryHandler).Methods("GET")
	v1.HandleFunc("/hospitals/{id}/inventory/{group}", h.GetInventoryHandler).Methods("GET")
	v1.HandleFunc("/inventory", h.ListInventoryHandler).Methods("GET")

	v1.HandleFunc("/profiles/{id}", h.SaveProfileHandler).Methods("PUT")
	v1.HandleFunc("/profiles/{id}", h.GetProfileHandler).Methods("GET")

	v1.HandleFunc("/donations", h.CreateDonationHandler).Methods("POST")
	v1.HandleFunc("/donations", h.ListDonationsHandler).Methods("GET")
	v1.HandleFunc("/donations/{id}", h.GetDonationHandler).Methods("GET")
	v1.HandleFunc("/donations/{id}/approve", h.ApproveDonationHandler).Methods("POST")
	v1.HandleFunc("/donations/{id}/reject", h.RejectDonationHandler).Methods("POST")
	v1.HandleFunc("/donations/{id}/complete", h.CompleteDonationHandler).Methods("POST")
	v1.HandleFunc("/admin/donations/approve", h.BatchApproveHandler).Methods("POST")
	v1.HandleFunc("/admin/donations/reject", h.BatchRejectHandler).Methods("POST")

	v1.HandleFunc("/reservations", h.CreateReservationHandler).Methods("POST")
	v1.HandleFunc("/reservations", h.ListReservationsHandler).Methods("GET")

	return r
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.Ping(r.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error         string `json:"error"`
	Code          string `json:"code"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrHospitalNotFound, http.StatusNotFound, "hospital_not_found"},
	{domain.ErrProfileNotFound, http.StatusNotFound, "profile_not_found"},
	{domain.ErrDonationNotFound, http.StatusNotFound, "donation_not_found"},
	{domain.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
	{domain.ErrPendingRequestExists, http.StatusConflict, "pending_request_exists"},
	{domain.ErrNotPending, http.StatusConflict, "not_pending"},
	{domain.ErrNotApproved, http.StatusConflict, "not_approved"},
	{domain.ErrDuplicateHospital, http.StatusConflict, "duplicate_hospital"},
	{domain.ErrAlreadyCredited, http.StatusConflict, "already_credited"},
	{idempotency.ErrInProgress, http.StatusConflict, "request_in_progress"},
	{domain.ErrCooldownActive, http.StatusUnprocessableEntity, "cooldown_active"},
	{domain.ErrNotARegisteredDonor, http.StatusUnprocessableEntity, "not_a_registered_donor"},
	{domain.ErrOutOfStock, http.StatusUnprocessableEntity, "out_of_stock"},
	{domain.ErrInsufficientStock, http.StatusUnprocessableEntity, "out_of_stock"},
	{idempotency.ErrMismatch, http.StatusUnprocessableEntity, "idempotency_key_mismatch"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domain.ErrInvalidBloodGroup, http.StatusBadRequest, "invalid_blood_group"},
	{domain.ErrMissingBloodGroup, http.StatusBadRequest, "missing_blood_group"},
	{domain.ErrInvalidHospital, http.StatusBadRequest, "invalid_hospital"},
	{domain.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile"},
	{domain.ErrInvalidDonationIDs, http.StatusBadRequest, "invalid_donation_ids"},
	{domain.ErrTransientFailure, http.StatusServiceUnavailable, "transient_failure"},
}

// errorPayload maps err onto a status code and a stable error code.
// Anything unknown is a 500 without details.
func errorPayload(err error) (int, errorResponse) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			resp := errorResponse{Error: err.Error(), Code: e.code}
			var cooldown *domain.CooldownError
			if errors.As(err, &cooldown) {
				resp.DaysRemaining = cooldown.DaysRemaining
			}
			return e.status, resp
		}
	}
	return http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Code: "internal"}
}

func (h *Handler) domainError(err error) (int, interface{}) {
	status, payload := errorPayload(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	return status, payload
}

func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	status, payload := h.domainError(err)
	respondWithJSON(w, status, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message, Code: "bad_request"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
