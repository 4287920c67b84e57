package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/service"
)

type createDonationRequest struct {
	OwnerID    string `json:"owner_id"`
	HospitalID string `json:"hospital_id"`
}

func (h *Handler) CreateDonationHandler(w http.ResponseWriter, r *http.Request) {
	h.replayable(w, r, func(ctx context.Context, body []byte) (int, interface{}) {
		var req createDonationRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return http.StatusBadRequest, errorResponse{Error: "Malformed JSON body", Code: "bad_request"}
		}
		if req.OwnerID == "" || req.HospitalID == "" {
			return http.StatusBadRequest, errorResponse{Error: "owner_id and hospital_id are required", Code: "bad_request"}
		}

		d, err := h.coord.RequestDonation(ctx, req.OwnerID, req.HospitalID)
		if err != nil {
			return h.domainError(err)
		}
		return http.StatusCreated, d
	})
}

func (h *Handler) ListDonationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.DonationFilter{
		OwnerID:    q.Get("owner_id"),
		HospitalID: q.Get("hospital_id"),
		Status:     domain.DonationStatus(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondWithError(w, http.StatusBadRequest, "Unknown status")
		return
	}
	donations, err := h.coord.ListDonations(r.Context(), filter)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, donations)
}

func (h *Handler) GetDonationHandler(w http.ResponseWriter, r *http.Request) {
	d, err := h.coord.GetDonation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// readNotes accepts an empty body as no notes.
func readNotes(r *http.Request) (string, bool) {
	if r.ContentLength == 0 {
		return "", true
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", false
	}
	return req.Notes, true
}

func (h *Handler) ApproveDonationHandler(w http.ResponseWriter, r *http.Request) {
	notes, ok := readNotes(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	id := mux.Vars(r)["id"]
	h.transitioned(w, r, id, h.coord.ApproveDonation(r.Context(), id, notes))
}

func (h *Handler) RejectDonationHandler(w http.ResponseWriter, r *http.Request) {
	notes, ok := readNotes(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	id := mux.Vars(r)["id"]
	h.transitioned(w, r, id, h.coord.RejectDonation(r.Context(), id, notes))
}

func (h *Handler) CompleteDonationHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.transitioned(w, r, id, h.coord.CompleteDonation(r.Context(), id))
}

// transitioned answers a state change with the donation as it now stands.
func (h *Handler) transitioned(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	d, err := h.coord.GetDonation(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

type batchRequest struct {
	IDs   []string `json:"ids"`
	Notes string   `json:"notes"`
}

type batchResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Results   []service.BatchResult `json:"results"`
}

func (h *Handler) BatchApproveHandler(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.coord.ApproveDonations)
}

func (h *Handler) BatchRejectHandler(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, h.coord.RejectDonations)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request, action func(context.Context, []string, string) ([]service.BatchResult, error)) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	results, err := action(r.Context(), req.IDs, req.Notes)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	resp := batchResponse{Results: results}
	for _, res := range results {
		if res.Err == nil {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}
