package domain

import (
	"errors"
	"fmt"
)

// Eligibility
var (
	ErrNotARegisteredDonor  = errors.New("user must be registered as a donor first")
	ErrPendingRequestExists = errors.New("a pending donation request already exists")
	ErrCooldownActive       = errors.New("donation cooldown active")
)

// Donation lifecycle
var (
	ErrNotPending  = errors.New("donation is not pending")
	ErrNotApproved = errors.New("donation is not approved")
)

// Ledger
var (
	ErrAlreadyCredited   = errors.New("donation already credited")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Reservation
var (
	ErrInvalidAmount = errors.New("bag quantity must be at least 1")
	ErrOutOfStock    = errors.New("quantity is out of stock")
)

// ErrTransientFailure is returned once retries of a store conflict are exhausted.
var ErrTransientFailure = errors.New("transient failure, try again")

// Boundary errors: lookups and malformed input rejected before the core.
var (
	ErrHospitalNotFound   = errors.New("hospital not found")
	ErrDuplicateHospital  = errors.New("hospital phone number or email already registered")
	ErrInvalidHospital    = errors.New("invalid hospital")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrDonationNotFound   = errors.New("donation not found")
	ErrEntryNotFound      = errors.New("ledger entry not found")
	ErrInvalidBloodGroup  = errors.New("invalid blood group")
	ErrMissingBloodGroup  = errors.New("profile has no blood group")
	ErrInvalidDonationIDs = errors.New("at least one donation id is required")
)

// CooldownError reports how many days remain before the owner may donate again.
type CooldownError struct {
	DaysRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cannot donate, please wait %d more days before donating again", e.DaysRemaining)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}
