package service

import (
	"context"
	"errors"

	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReserveStock claims amount bags of group at hospitalID for ownerID. Either
// the ledger is decremented and the claim recorded, or nothing changes.
func (c *Coordinator) ReserveStock(ctx context.Context, ownerID, hospitalID string, group domain.BloodGroup, amount int) (claim domain.Claim, err error) {
	ctx, done := c.start(ctx, "reserve_stock")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("hospital.id", hospitalID),
		attribute.String("blood_group", string(group)),
		attribute.Int("bag_quantity", amount),
	)
	defer func() { reservationOutcomes.WithLabelValues(reservationOutcome(err)).Inc() }()

	if amount < 1 {
		return domain.Claim{}, domain.ErrInvalidAmount
	}
	if !group.Valid() {
		return domain.Claim{}, domain.ErrInvalidBloodGroup
	}
	if _, err := c.store.GetProfile(ctx, ownerID); err != nil {
		return domain.Claim{}, err
	}

	// The entry outlives a failed reservation, so it gets its own transaction.
	var entry domain.LedgerEntry
	err = c.inTx(ctx, "reserve_stock", func(ctx context.Context) error {
		var err error
		entry, err = c.ledger.GetOrCreate(ctx, hospitalID, group)
		return err
	})
	if err != nil {
		return domain.Claim{}, err
	}

	err = c.inTx(ctx, "reserve_stock", func(ctx context.Context) error {
		var err error
		claim, err = c.reservations.CreateClaim(ctx, ownerID, entry, amount, c.clock.Now())
		return err
	})
	if err != nil {
		return domain.Claim{}, err
	}

	c.reservations.FlagRecipient(ctx, ownerID)
	bagsMoved.WithLabelValues("reserved").Add(float64(claim.BagQuantity))
	c.publish(ctx, events.ForClaim(claim))
	return claim, nil
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// GetLedgerEntry reads the stock of one blood group at one hospital. A pair
// nobody donated to or reserved from yet is ErrEntryNotFound.
func (c *Coordinator) GetLedgerEntry(ctx context.Context, hospitalID string, group domain.BloodGroup) (domain.LedgerEntry, error) {
	if _, err := c.store.GetHospital(ctx, hospitalID); err != nil {
		return domain.LedgerEntry{}, err
	}
	return c.ledger.Get(ctx, hospitalID, group)
}

// ListLedgerEntries lists the stock of one hospital, or of all hospitals
// when hospitalID is empty.
func (c *Coordinator) ListLedgerEntries(ctx context.Context, hospitalID string) ([]domain.LedgerEntry, error) {
	if hospitalID != "" {
		if _, err := c.store.GetHospital(ctx, hospitalID); err != nil {
			return nil, err
		}
	}
	return c.ledger.List(ctx, hospitalID)
}

func (c *Coordinator) ListClaims(ctx context.Context, ownerID string) ([]domain.Claim, error) {
	return c.store.ListClaims(ctx, ownerID)
}
