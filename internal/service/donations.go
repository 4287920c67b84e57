package service

import (
	"context"

	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestDonation opens a pending donation request for ownerID at hospitalID.
// Eligibility is checked while holding the owner's lock, inside the same
// transaction as the insert.
func (c *Coordinator) RequestDonation(ctx context.Context, ownerID, hospitalID string) (d domain.Donation, err error) {
	ctx, done := c.start(ctx, "request_donation")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("hospital.id", hospitalID),
	)

	unlock := c.locks.Lock("owner:" + ownerID)
	defer unlock()

	err = c.inTx(ctx, "request_donation", func(ctx context.Context) error {
		var err error
		d, err = c.donations.Create(ctx, ownerID, hospitalID, c.clock.Now())
		return err
	})
	if err != nil {
		return domain.Donation{}, err
	}

	donationTransitions.WithLabelValues("requested").Inc()
	c.publish(ctx, events.ForDonation(events.DonationRequested, d))
	return d, nil
}

// ApproveDonation approves a pending request and credits its bags to the
// ledger in one transaction.
func (c *Coordinator) ApproveDonation(ctx context.Context, id, notes string) error {
	_, err := c.approve(ctx, id, notes)
	return err
}

func (c *Coordinator) approve(ctx context.Context, id, notes string) (d domain.Donation, err error) {
	ctx, done := c.start(ctx, "approve_donation")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("donation.id", id))

	unlock := c.locks.Lock("donation:" + id)
	defer unlock()

	err = c.inTx(ctx, "approve_donation", func(ctx context.Context) error {
		var err error
		d, err = c.donations.Approve(ctx, id, notes)
		return err
	})
	if err != nil {
		return domain.Donation{}, err
	}

	donationTransitions.WithLabelValues("approved").Inc()
	bagsMoved.WithLabelValues("credited").Add(float64(d.BagQuantity))
	c.publish(ctx, events.ForDonation(events.DonationApproved, d))
	return d, nil
}

// RejectDonation rejects a pending request. The ledger is not touched.
func (c *Coordinator) RejectDonation(ctx context.Context, id, notes string) error {
	_, err := c.reject(ctx, id, notes)
	return err
}

func (c *Coordinator) reject(ctx context.Context, id, notes string) (d domain.Donation, err error) {
	ctx, done := c.start(ctx, "reject_donation")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("donation.id", id))

	unlock := c.locks.Lock("donation:" + id)
	defer unlock()

	err = c.inTx(ctx, "reject_donation", func(ctx context.Context) error {
		var err error
		d, err = c.donations.Reject(ctx, id, notes)
		return err
	})
	if err != nil {
		return domain.Donation{}, err
	}

	donationTransitions.WithLabelValues("rejected").Inc()
	c.publish(ctx, events.ForDonation(events.DonationRejected, d))
	return d, nil
}

// CompleteDonation closes an approved request. Its bags were credited on
// approval.
func (c *Coordinator) CompleteDonation(ctx context.Context, id string) (err error) {
	ctx, done := c.start(ctx, "complete_donation")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("donation.id", id))

	unlock := c.locks.Lock("donation:" + id)
	defer unlock()

	var d domain.Donation
	err = c.inTx(ctx, "complete_donation", func(ctx context.Context) error {
		var err error
		d, err = c.donations.Complete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}

	donationTransitions.WithLabelValues("completed").Inc()
	c.publish(ctx, events.ForDonation(events.DonationCompleted, d))
	return nil
}

// BatchResult is the outcome of one donation in a batch action.
type BatchResult struct {
	ID       string                `json:"id"`
	Status   domain.DonationStatus `json:"status,omitempty"`
	Err      error                 `json:"-"`
	ErrorMsg string                `json:"error,omitempty"`
}

// ApproveDonations approves each id on its own; one failure does not stop
// the others.
func (c *Coordinator) ApproveDonations(ctx context.Context, ids []string, notes string) ([]BatchResult, error) {
	return c.batch(ctx, ids, func(ctx context.Context, id string) (domain.Donation, error) {
		return c.approve(ctx, id, notes)
	})
}

func (c *Coordinator) RejectDonations(ctx context.Context, ids []string, notes string) ([]BatchResult, error) {
	return c.batch(ctx, ids, func(ctx context.Context, id string) (domain.Donation, error) {
		return c.reject(ctx, id, notes)
	})
}

func (c *Coordinator) batch(ctx context.Context, ids []string, step func(context.Context, string) (domain.Donation, error)) ([]BatchResult, error) {
	if len(ids) == 0 {
		return nil, domain.ErrInvalidDonationIDs
	}
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		d, err := step(ctx, id)
		r := BatchResult{ID: id, Status: d.Status, Err: err}
		if err != nil {
			r.ErrorMsg = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}

func (c *Coordinator) GetDonation(ctx context.Context, id string) (domain.Donation, error) {
	return c.store.GetDonation(ctx, id)
}

// ListDonations returns matching requests, newest first.
func (c *Coordinator) ListDonations(ctx context.Context, filter domain.DonationFilter) ([]domain.Donation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return []domain.Donation{}, nil
	}
	return c.store.ListDonations(ctx, filter)
}
