// Package reservation turns recipient requests into claims against stock.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/ledger"
	"go.uber.org/zap"
)

type Repository interface {
	InsertClaim(ctx context.Context, c domain.Claim) error
}

// RecipientFlagger records on the owner's profile that they received blood.
type RecipientFlagger interface {
	MarkRecipient(ctx context.Context, ownerID string) error
}

type Engine struct {
	repo    Repository
	ledger  *ledger.Ledger
	flagger RecipientFlagger
	log     *zap.Logger
}

func NewEngine(repo Repository, l *ledger.Ledger, flagger RecipientFlagger, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, ledger: l, flagger: flagger, log: log}
}

// CreateClaim reserves amount bags from entry and records the claim. Callers
// run it inside a transaction so the decrement and the claim commit together.
func (e *Engine) CreateClaim(ctx context.Context, ownerID string, entry domain.LedgerEntry, amount int, now time.Time) (domain.Claim, error) {
	if amount < 1 {
		return domain.Claim{}, domain.ErrInvalidAmount
	}

	if _, err := e.ledger.Reserve(ctx, entry.ID, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			return domain.Claim{}, domain.ErrOutOfStock
		}
		return domain.Claim{}, err
	}

	c := domain.Claim{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		EntryID:     entry.ID,
		HospitalID:  entry.HospitalID,
		BloodGroup:  entry.BloodGroup,
		BagQuantity: amount,
		CreatedAt:   now,
	}
	if err := e.repo.InsertClaim(ctx, c); err != nil {
		return domain.Claim{}, err
	}
	return c, nil
}

// FlagRecipient marks the owner as a recipient. It is best effort: call it
// after the claim is committed; failures are logged, never returned.
func (e *Engine) FlagRecipient(ctx context.Context, ownerID string) {
	if e.flagger == nil {
		return
	}
	if err := e.flagger.MarkRecipient(ctx, ownerID); err != nil {
		e.log.Warn("failed to flag recipient", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
