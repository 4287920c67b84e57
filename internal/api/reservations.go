package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/punchamoorthee/bloodbank/internal/domain"
)

type createReservationRequest struct {
	OwnerID     string `json:"owner_id"`
	HospitalID  string `json:"hospital_id"`
	BloodGroup  string `json:"blood_group"`
	BagQuantity int    `json:"bag_quantity"`
}

func (h *Handler) CreateReservationHandler(w http.ResponseWriter, r *http.Request) {
	h.replayable(w, r, func(ctx context.Context, body []byte) (int, interface{}) {
		var req createReservationRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return http.StatusBadRequest, errorResponse{Error: "Malformed JSON body", Code: "bad_request"}
		}
		if req.OwnerID == "" || req.HospitalID == "" {
			return http.StatusBadRequest, errorResponse{Error: "owner_id and hospital_id are required", Code: "bad_request"}
		}
		group, err := domain.ParseBloodGroup(req.BloodGroup)
		if err != nil {
			return h.domainError(err)
		}
		if req.BagQuantity < 1 {
			return h.domainError(domain.ErrInvalidAmount)
		}

		claim, err := h.coord.ReserveStock(ctx, req.OwnerID, req.HospitalID, group, req.BagQuantity)
		if err != nil {
			return h.domainError(err)
		}
		return http.StatusCreated, claim
	})
}

func (h *Handler) ListReservationsHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.coord.ListClaims(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, claims)
}
