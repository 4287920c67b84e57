package domain

import "time"

type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationApproved  DonationStatus = "approved"
	DonationRejected  DonationStatus = "rejected"
	DonationCompleted DonationStatus = "completed"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationPending, DonationApproved, DonationRejected, DonationCompleted:
		return true
	}
	return false
}

// Contributes reports whether a donation in this status counts towards stock
// and towards the donor's cooldown.
func (s DonationStatus) Contributes() bool {
	return s == DonationApproved || s == DonationCompleted
}

// DefaultBagQuantity is the number of bags a single donation request yields.
const DefaultBagQuantity = 1

// Donation is a donor's request to give blood at a hospital.
// BloodGroup is copied from the owner's profile when the request is created.
type Donation struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	HospitalID    string         `json:"hospital_id"`
	BloodGroup    BloodGroup     `json:"blood_group"`
	BagQuantity   int            `json:"bag_quantity"`
	Status        DonationStatus `json:"status"`
	ApprovalNotes string         `json:"approval_notes,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (d Donation) LedgerKey() LedgerKey {
	return LedgerKey{HospitalID: d.HospitalID, BloodGroup: d.BloodGroup}
}

// Approve moves a pending donation to approved. The ledger credit that goes
// with it is applied by the caller in the same transaction.
func (d *Donation) Approve(notes string, now time.Time) error {
	if d.Status != DonationPending {
		return ErrNotPending
	}
	d.Status = DonationApproved
	d.ApprovalNotes = notes
	d.UpdatedAt = now
	return nil
}

func (d *Donation) Reject(notes string, now time.Time) error {
	if d.Status != DonationPending {
		return ErrNotPending
	}
	d.Status = DonationRejected
	d.ApprovalNotes = notes
	d.UpdatedAt = now
	return nil
}

// Complete is only legal from approved and has no further ledger effect.
func (d *Donation) Complete(now time.Time) error {
	if d.Status != DonationApproved {
		return ErrNotApproved
	}
	d.Status = DonationCompleted
	d.UpdatedAt = now
	return nil
}

// DonationFilter narrows donation listings. Zero fields match everything.
type DonationFilter struct {
	OwnerID    string
	HospitalID string
	Status     DonationStatus
}

func (f DonationFilter) Match(d Donation) bool {
	if f.OwnerID != "" && d.OwnerID != f.OwnerID {
		return false
	}
	if f.HospitalID != "" && d.HospitalID != f.HospitalID {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return true
}
