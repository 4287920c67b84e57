package domain

import (
	"time"
)

// BloodGroup is an ABO/Rh group as stored on profiles and ledger entries.
type BloodGroup string

const (
	GroupAPos  BloodGroup = "A+"
	GroupANeg  BloodGroup = "A-"
	GroupBPos  BloodGroup = "B+"
	GroupBNeg  BloodGroup = "B-"
	GroupABPos BloodGroup = "AB+"
	GroupABNeg BloodGroup = "AB-"
	GroupOPos  BloodGroup = "O+"
	GroupONeg  BloodGroup = "O-"
)

// BloodGroups lists every accepted group in display order.
var BloodGroups = []BloodGroup{
	GroupAPos, GroupANeg, GroupBPos, GroupBNeg,
	GroupABPos, GroupABNeg, GroupOPos, GroupONeg,
}

func (g BloodGroup) Valid() bool {
	for _, known := range BloodGroups {
		if g == known {
			return true
		}
	}
	return false
}

// ParseBloodGroup validates raw input from the transport layer.
func ParseBloodGroup(raw string) (BloodGroup, error) {
	g := BloodGroup(raw)
	if !g.Valid() {
		return "", ErrInvalidBloodGroup
	}
	return g, nil
}

type HospitalType string

const (
	HospitalGeneral     HospitalType = "general"
	HospitalSpecialized HospitalType = "specialized"
	HospitalPrivate     HospitalType = "private"
	HospitalGovernment  HospitalType = "government"
)

func (t HospitalType) Valid() bool {
	switch t {
	case HospitalGeneral, HospitalSpecialized, HospitalPrivate, HospitalGovernment:
		return true
	}
	return false
}

// Hospital groups ledger entries. It has no lifecycle beyond create/update.
type Hospital struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	Type         HospitalType `json:"hospital_type"`
	PhoneNumber1 string       `json:"phone_number1"`
	PhoneNumber2 string       `json:"phone_number2,omitempty"`
	Website      string       `json:"website,omitempty"`
	Email        string       `json:"email"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Profile is the identity provider's view of a user.
type Profile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	BloodGroup  BloodGroup `json:"blood_group"`
	IsDonor     bool       `json:"is_donor"`
	IsRecipient bool       `json:"is_recipient"`
}

// DisplayName falls back to the username when no full name is set.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Username
	}
}

// LedgerKey identifies a stock counter.
type LedgerKey struct {
	HospitalID string
	BloodGroup BloodGroup
}

// LedgerEntry is the stock record for one (hospital, blood group) pair.
// BagQuantity equals the credited donations minus the claimed bags and is
// never negative. Donations holds the IDs that contributed to the count.
type LedgerEntry struct {
	ID          string     `json:"id"`
	HospitalID  string     `json:"hospital_id"`
	BloodGroup  BloodGroup `json:"blood_group"`
	BagQuantity int        `json:"bag_quantity"`
	Donations   []string   `json:"donations"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (e LedgerEntry) Key() LedgerKey {
	return LedgerKey{HospitalID: e.HospitalID, BloodGroup: e.BloodGroup}
}

func (e LedgerEntry) IsAvailable() bool {
	return e.BagQuantity > 0
}

// Claim is the permanent record of a consumed reservation.
type Claim struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	EntryID     string     `json:"entry_id"`
	HospitalID  string     `json:"hospital_id"`
	BloodGroup  BloodGroup `json:"blood_group"`
	BagQuantity int        `json:"bag_quantity"`
	CreatedAt   time.Time  `json:"created_at"`
}
