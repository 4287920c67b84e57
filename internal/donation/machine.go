// Package donation drives donation requests through their lifecycle and
// applies the ledger credit that goes with approval.
package donation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/clock"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/ledger"
	"go.uber.org/zap"
)

type Repository interface {
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	ListDonations(ctx context.Context, filter domain.DonationFilter) ([]domain.Donation, error)
	InsertDonation(ctx context.Context, d domain.Donation) error
	GetDonation(ctx context.Context, id string) (domain.Donation, error)
	GetDonationForUpdate(ctx context.Context, id string) (domain.Donation, error)
	UpdateDonationStatus(ctx context.Context, d domain.Donation, from domain.DonationStatus) (bool, error)
}

// Machine expects its callers to run each method inside a transaction and
// to serialize Create per owner and transitions per donation.
type Machine struct {
	repo   Repository
	ledger *ledger.Ledger
	clock  clock.Clock
	log    *zap.Logger
}

func NewMachine(repo Repository, l *ledger.Ledger, clk clock.Clock, log *zap.Logger) *Machine {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{repo: repo, ledger: l, clock: clk, log: log}
}

// Create checks eligibility against the owner's stored history and inserts
// a pending request. The ledger entry for the owner's blood group at the
// hospital is created if missing, its quantity untouched.
func (m *Machine) Create(ctx context.Context, ownerID, hospitalID string, now time.Time) (domain.Donation, error) {
	owner, err := m.repo.GetProfile(ctx, ownerID)
	if err != nil {
		return domain.Donation{}, err
	}
	history, err := m.repo.ListDonations(ctx, domain.DonationFilter{OwnerID: ownerID})
	if err != nil {
		return domain.Donation{}, fmt.Errorf("load donation history: %w", err)
	}
	if err := domain.CheckEligibility(owner, history, now); err != nil {
		return domain.Donation{}, err
	}
	if !owner.BloodGroup.Valid() {
		return domain.Donation{}, domain.ErrMissingBloodGroup
	}

	if _, err := m.ledger.GetOrCreate(ctx, hospitalID, owner.BloodGroup); err != nil {
		return domain.Donation{}, err
	}

	d := domain.Donation{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		HospitalID:  hospitalID,
		BloodGroup:  owner.BloodGroup,
		BagQuantity: domain.DefaultBagQuantity,
		Status:      domain.DonationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.InsertDonation(ctx, d); err != nil {
		return domain.Donation{}, err
	}
	return d, nil
}

// Approve marks a pending donation approved and credits its bags. A credit
// already on the ledger for this donation counts as applied.
func (m *Machine) Approve(ctx context.Context, id, notes string) (domain.Donation, error) {
	d, err := m.transition(ctx, id, func(d *domain.Donation, now time.Time) error {
		return d.Approve(notes, now)
	})
	if err != nil {
		return domain.Donation{}, err
	}

	entry, err := m.ledger.GetOrCreate(ctx, d.HospitalID, d.BloodGroup)
	if err != nil {
		return domain.Donation{}, fmt.Errorf("ledger entry for donation %s: %w", d.ID, err)
	}
	if _, err := m.ledger.Credit(ctx, entry.ID, d.ID, d.BagQuantity); err != nil {
		if !errors.Is(err, domain.ErrAlreadyCredited) {
			return domain.Donation{}, err
		}
		m.log.Info("donation already credited", zap.String("donation_id", d.ID), zap.String("entry_id", entry.ID))
	}
	return d, nil
}

func (m *Machine) Reject(ctx context.Context, id, notes string) (domain.Donation, error) {
	return m.transition(ctx, id, func(d *domain.Donation, now time.Time) error {
		return d.Reject(notes, now)
	})
}

func (m *Machine) Complete(ctx context.Context, id string) (domain.Donation, error) {
	return m.transition(ctx, id, func(d *domain.Donation, now time.Time) error {
		return d.Complete(now)
	})
}

// transition loads the donation locked, applies step and writes the result
// only if nobody changed the status in between.
func (m *Machine) transition(ctx context.Context, id string, step func(*domain.Donation, time.Time) error) (domain.Donation, error) {
	d, err := m.repo.GetDonationForUpdate(ctx, id)
	if err != nil {
		return domain.Donation{}, err
	}
	from := d.Status
	if err := step(&d, m.clock.Now()); err != nil {
		return domain.Donation{}, err
	}

	ok, err := m.repo.UpdateDonationStatus(ctx, d, from)
	if err != nil {
		return domain.Donation{}, err
	}
	if !ok {
		// Lost the race; report it the same way the losing state check would.
		if from == domain.DonationApproved {
			return domain.Donation{}, domain.ErrNotApproved
		}
		return domain.Donation{}, domain.ErrNotPending
	}
	return d, nil
}
