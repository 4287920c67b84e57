// Package events publishes what the coordinator changed, after it committed.
package events

import (
	"context"
	"time"

	"github.com/punchamoorthee/bloodbank/internal/domain"
	"go.uber.org/zap"
)

type Type string

const (
	DonationRequested Type = "donation.requested"
	DonationApproved  Type = "donation.approved"
	DonationRejected  Type = "donation.rejected"
	DonationCompleted Type = "donation.completed"
	StockReserved     Type = "stock.reserved"
)

type Event struct {
	Type        Type              `json:"type"`
	OwnerID     string            `json:"owner_id"`
	HospitalID  string            `json:"hospital_id"`
	BloodGroup  domain.BloodGroup `json:"blood_group"`
	BagQuantity int               `json:"bag_quantity"`
	DonationID  string            `json:"donation_id,omitempty"`
	ClaimID     string            `json:"claim_id,omitempty"`
	Status      string            `json:"status,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// ForDonation describes a donation after a transition of type t.
func ForDonation(t Type, d domain.Donation) Event {
	return Event{
		Type:        t,
		OwnerID:     d.OwnerID,
		HospitalID:  d.HospitalID,
		BloodGroup:  d.BloodGroup,
		BagQuantity: d.BagQuantity,
		DonationID:  d.ID,
		Status:      string(d.Status),
		OccurredAt:  d.UpdatedAt,
	}
}

func ForClaim(c domain.Claim) Event {
	return Event{
		Type:        StockReserved,
		OwnerID:     c.OwnerID,
		HospitalID:  c.HospitalID,
		BloodGroup:  c.BloodGroup,
		BagQuantity: c.BagQuantity,
		ClaimID:     c.ID,
		OccurredAt:  c.CreatedAt,
	}
}

// Publisher delivers events. Delivery is at most once; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("event",
		zap.String("type", string(e.Type)),
		zap.String("owner_id", e.OwnerID),
		zap.String("hospital_id", e.HospitalID),
		zap.String("blood_group", string(e.BloodGroup)),
		zap.Int("bag_quantity", e.BagQuantity),
		zap.String("donation_id", e.DonationID),
		zap.String("claim_id", e.ClaimID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
