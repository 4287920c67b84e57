package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

type hospitalRequest struct {
	Name         string              `json:"name"`
	Address      string              `json:"address"`
	Type         domain.HospitalType `json:"hospital_type"`
	PhoneNumber1 string              `json:"phone_number1"`
	PhoneNumber2 string              `json:"phone_number2"`
	Website      string              `json:"website"`
	Email        string              `json:"email"`
}

func (req hospitalRequest) hospital(id string) domain.Hospital {
	return domain.Hospital{
		ID:           id,
		Name:         req.Name,
		Address:      req.Address,
		Type:         req.Type,
		PhoneNumber1: req.PhoneNumber1,
		PhoneNumber2: req.PhoneNumber2,
		Website:      req.Website,
		Email:        req.Email,
	}
}

func (h *Handler) CreateHospitalHandler(w http.ResponseWriter, r *http.Request) {
	var req hospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	hospital, err := h.coord.CreateHospital(r.Context(), req.hospital(""))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/hospitals/"+hospital.ID)
	respondWithJSON(w, http.StatusCreated, hospital)
}

func (h *Handler) UpdateHospitalHandler(w http.ResponseWriter, r *http.Request) {
	var req hospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	hospital, err := h.coord.UpdateHospital(r.Context(), req.hospital(mux.Vars(r)["id"]))
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hospital)
}

func (h *Handler) GetHospitalHandler(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.coord.GetHospital(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hospital)
}

func (h *Handler) ListHospitalsHandler(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.coord.ListHospitals(r.Context())
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hospitals)
}

// inventoryItem is a ledger entry as shown to clients.
type inventoryItem struct {
	domain.LedgerEntry
	IsAvailable bool `json:"is_available"`
}

func toInventory(entries []domain.LedgerEntry) []inventoryItem {
	items := make([]inventoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, inventoryItem{LedgerEntry: e, IsAvailable: e.IsAvailable()})
	}
	return items
}

func (h *Handler) GetInventoryHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, err := domain.ParseBloodGroup(vars["group"])
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	entry, err := h.coord.GetLedgerEntry(r.Context(), vars["id"], group)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, inventoryItem{LedgerEntry: entry, IsAvailable: entry.IsAvailable()})
}

func (h *Handler) ListHospitalInventoryHandler(w http.ResponseWriter, r *http.Request) {
	h.listInventory(w, r, mux.Vars(r)["id"])
}

func (h *Handler) ListInventoryHandler(w http.ResponseWriter, r *http.Request) {
	h.listInventory(w, r, "")
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request, hospitalID string) {
	entries, err := h.coord.ListLedgerEntries(r.Context(), hospitalID)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toInventory(entries))
}

type profileRequest struct {
	Username    string            `json:"username"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Email       string            `json:"email"`
	BloodGroup  domain.BloodGroup `json:"blood_group"`
	IsDonor     bool              `json:"is_donor"`
	IsRecipient bool              `json:"is_recipient"`
}

// SaveProfileHandler is the identity provider's write-back hook.
func (h *Handler) SaveProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	profile, err := h.coord.SaveProfile(r.Context(), domain.Profile{
		ID:          mux.Vars(r)["id"],
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		BloodGroup:  req.BloodGroup,
		IsDonor:     req.IsDonor,
		IsRecipient: req.IsRecipient,
	})
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

func (h *Handler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := h.coord.GetProfile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}
