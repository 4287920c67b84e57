// Package service is the entry point to the blood bank core. The Coordinator
// serializes work per owner and per donation, runs every mutation in a store
// transaction, retries transient conflicts and reports what it committed.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/punchamoorthee/bloodbank/internal/clock"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/donation"
	"github.com/punchamoorthee/bloodbank/internal/events"
	"github.com/punchamoorthee/bloodbank/internal/keylock"
	"github.com/punchamoorthee/bloodbank/internal/ledger"
	"github.com/punchamoorthee/bloodbank/internal/reservation"
	"github.com/punchamoorthee/bloodbank/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/punchamoorthee/bloodbank/internal/service"

// Store is everything the coordinator persists. store.Memory and
// store.Postgres both satisfy it.
type Store interface {
	ledger.Repository
	donation.Repository
	reservation.Repository
	reservation.RecipientFlagger

	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error

	CreateHospital(ctx context.Context, h domain.Hospital) error
	UpdateHospital(ctx context.Context, h domain.Hospital) error
	GetHospital(ctx context.Context, id string) (domain.Hospital, error)
	ListHospitals(ctx context.Context) ([]domain.Hospital, error)
	SaveProfile(ctx context.Context, p domain.Profile) error
	ListClaims(ctx context.Context, ownerID string) ([]domain.Claim, error)
}

type Options struct {
	Clock     clock.Clock
	Logger    *zap.Logger
	Publisher events.Publisher
	// MaxRetries bounds the retries of a transaction that hit a transient
	// store conflict. Zero means the default of 3.
	MaxRetries    int
	RetryInterval time.Duration
}

type Coordinator struct {
	store        Store
	ledger       *ledger.Ledger
	donations    *donation.Machine
	reservations *reservation.Engine
	locks        *keylock.Map
	clock        clock.Clock
	log          *zap.Logger
	publisher    events.Publisher
	tracer       trace.Tracer
	maxRetries   int
	retryEvery   time.Duration
}

func NewCoordinator(s Store, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewLogPublisher(opts.Logger)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 10 * time.Millisecond
	}

	l := ledger.New(s, opts.Clock)
	return &Coordinator{
		store:        s,
		ledger:       l,
		donations:    donation.NewMachine(s, l, opts.Clock, opts.Logger),
		reservations: reservation.NewEngine(s, l, s, opts.Logger),
		locks:        keylock.New(),
		clock:        opts.Clock,
		log:          opts.Logger,
		publisher:    opts.Publisher,
		tracer:       otel.Tracer(tracerName),
		maxRetries:   opts.MaxRetries,
		retryEvery:   opts.RetryInterval,
	}
}

func (c *Coordinator) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// inTx runs fn in a store transaction, retrying it on transient conflicts.
// Every other error ends the loop at once.
func (c *Coordinator) inTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryEvery
	b.MaxInterval = 20 * c.retryEvery
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := c.store.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if store.IsConflict(err) {
			txConflicts.WithLabelValues(op).Inc()
			c.log.Debug("transaction conflict", zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx))

	if err != nil && store.IsConflict(err) {
		c.log.Warn("giving up after transaction conflicts", zap.String("operation", op), zap.Int("attempts", attempt))
		return fmt.Errorf("%w: %s", domain.ErrTransientFailure, op)
	}
	return err
}

// start opens the span and latency timer of one coordinator operation.
func (c *Coordinator) start(ctx context.Context, op string) (context.Context, func(err error)) {
	began := time.Now()
	ctx, span := c.tracer.Start(ctx, "coordinator."+op)
	return ctx, func(err error) {
		defer span.End()
		opLatency.WithLabelValues(op).Observe(time.Since(began).Seconds())
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsRejection(err) {
			c.log.Info(op+" rejected", zap.Error(err))
		} else {
			c.log.Error(op+" failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, e events.Event) {
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.log.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

var rejections = []error{
	domain.ErrNotARegisteredDonor,
	domain.ErrPendingRequestExists,
	domain.ErrCooldownActive,
	domain.ErrNotPending,
	domain.ErrNotApproved,
	domain.ErrAlreadyCredited,
	domain.ErrInsufficientStock,
	domain.ErrInvalidAmount,
	domain.ErrOutOfStock,
	domain.ErrHospitalNotFound,
	domain.ErrDuplicateHospital,
	domain.ErrInvalidHospital,
	domain.ErrProfileNotFound,
	domain.ErrInvalidProfile,
	domain.ErrDonationNotFound,
	domain.ErrEntryNotFound,
	domain.ErrInvalidBloodGroup,
	domain.ErrMissingBloodGroup,
	domain.ErrInvalidDonationIDs,
}

// IsRejection reports whether err is a business rule or input rejection,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
