// Package ledger keeps the per-(hospital, blood group) bag counters.
package ledger

import (
	"context"
	"time"

	"github.com/punchamoorthee/bloodbank/internal/clock"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

// Repository is the persistence the ledger needs. Implementations make
// CreditEntry and ReserveEntry atomic per entry.
type Repository interface {
	GetOrCreateEntry(ctx context.Context, key domain.LedgerKey, now time.Time) (domain.LedgerEntry, error)
	GetEntry(ctx context.Context, key domain.LedgerKey) (domain.LedgerEntry, error)
	GetEntryByID(ctx context.Context, id string) (domain.LedgerEntry, error)
	ListEntries(ctx context.Context, hospitalID string) ([]domain.LedgerEntry, error)
	CreditEntry(ctx context.Context, entryID, donationID string, amount int, now time.Time) (domain.LedgerEntry, error)
	ReserveEntry(ctx context.Context, entryID string, amount int, now time.Time) (domain.LedgerEntry, error)
}

type Ledger struct {
	repo  Repository
	clock clock.Clock
}

func New(repo Repository, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Ledger{repo: repo, clock: clk}
}

func key(hospitalID string, group domain.BloodGroup) (domain.LedgerKey, error) {
	if hospitalID == "" {
		return domain.LedgerKey{}, domain.ErrHospitalNotFound
	}
	if !group.Valid() {
		return domain.LedgerKey{}, domain.ErrInvalidBloodGroup
	}
	return domain.LedgerKey{HospitalID: hospitalID, BloodGroup: group}, nil
}

// GetOrCreate returns the entry for the pair, creating it empty on first use.
func (l *Ledger) GetOrCreate(ctx context.Context, hospitalID string, group domain.BloodGroup) (domain.LedgerEntry, error) {
	k, err := key(hospitalID, group)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return l.repo.GetOrCreateEntry(ctx, k, l.clock.Now())
}

// Get never creates; a pair nobody has touched yet is ErrEntryNotFound.
func (l *Ledger) Get(ctx context.Context, hospitalID string, group domain.BloodGroup) (domain.LedgerEntry, error) {
	k, err := key(hospitalID, group)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return l.repo.GetEntry(ctx, k)
}

func (l *Ledger) List(ctx context.Context, hospitalID string) ([]domain.LedgerEntry, error) {
	return l.repo.ListEntries(ctx, hospitalID)
}

// Credit adds amount bags on behalf of donationID. A donation that already
// contributed to the entry is refused with ErrAlreadyCredited.
func (l *Ledger) Credit(ctx context.Context, entryID, donationID string, amount int) (domain.LedgerEntry, error) {
	if amount < 1 {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	return l.repo.CreditEntry(ctx, entryID, donationID, amount, l.clock.Now())
}

// Reserve takes amount bags out of the entry, or fails with
// ErrInsufficientStock leaving it untouched.
func (l *Ledger) Reserve(ctx context.Context, entryID string, amount int) (domain.LedgerEntry, error) {
	if amount < 1 {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	return l.repo.ReserveEntry(ctx, entryID, amount, l.clock.Now())
}

func IsAvailable(e domain.LedgerEntry) bool {
	return e.IsAvailable()
}
