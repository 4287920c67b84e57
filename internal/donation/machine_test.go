package donation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/bloodbank/internal/clock"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/ledger"
	"github.com/punchamoorthee/bloodbank/internal/store"
)

var start = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

// staleRepo reports every status update as lost to a concurrent writer.
type staleRepo struct {
	*store.Memory
}

func (staleRepo) UpdateDonationStatus(context.Context, domain.Donation, domain.DonationStatus) (bool, error) {
	return false, nil
}

type fixture struct {
	store   *store.Memory
	clock   *clock.Manual
	ledger  *ledger.Ledger
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	ctx := context.Background()
	if err := s.CreateHospital(ctx, domain.Hospital{ID: "h1", Name: "City", Type: domain.HospitalGeneral, PhoneNumber1: "1", Email: "a@b.c"}); err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	for _, p := range []domain.Profile{
		{ID: "donor", Username: "donor", BloodGroup: domain.GroupOPos, IsDonor: true},
		{ID: "nogroup", Username: "nogroup", IsDonor: true},
		{ID: "plain", Username: "plain", BloodGroup: domain.GroupAPos},
	} {
		if err := s.SaveProfile(ctx, p); err != nil {
			t.Fatalf("save profile: %v", err)
		}
	}
	clk := clock.NewFixed(start)
	l := ledger.New(s, clk)
	return &fixture{store: s, clock: clk, ledger: l, machine: NewMachine(s, l, clk, nil)}
}

func (f *fixture) bags(t *testing.T) int {
	t.Helper()
	e, err := f.ledger.Get(context.Background(), "h1", domain.GroupOPos)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	return e.BagQuantity
}

func TestMachine_Create(t *testing.T) {
	t.Run("creates pending request and empty entry", func(t *testing.T) {
		f := newFixture(t)
		d, err := f.machine.Create(context.Background(), "donor", "h1", start)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if d.Status != domain.DonationPending || d.BloodGroup != domain.GroupOPos || d.BagQuantity != domain.DefaultBagQuantity {
			t.Fatalf("unexpected donation: %+v", d)
		}
		if got := f.bags(t); got != 0 {
			t.Fatalf("expected entry with 0 bags, got %d", got)
		}
	})

	t.Run("non donor leaves no record", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.Create(context.Background(), "plain", "h1", start)
		if !errors.Is(err, domain.ErrNotARegisteredDonor) {
			t.Fatalf("expected ErrNotARegisteredDonor, got %v", err)
		}
		list, _ := f.store.ListDonations(context.Background(), domain.DonationFilter{OwnerID: "plain"})
		if len(list) != 0 {
			t.Fatalf("expected no donations, got %d", len(list))
		}
	})

	t.Run("boundary errors", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		if _, err := f.machine.Create(ctx, "nogroup", "h1", start); !errors.Is(err, domain.ErrMissingBloodGroup) {
			t.Fatalf("expected ErrMissingBloodGroup, got %v", err)
		}
		if _, err := f.machine.Create(ctx, "ghost", "h1", start); !errors.Is(err, domain.ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
		if _, err := f.machine.Create(ctx, "donor", "nowhere", start); !errors.Is(err, domain.ErrHospitalNotFound) {
			t.Fatalf("expected ErrHospitalNotFound, got %v", err)
		}
	})

	t.Run("second request while pending", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		if _, err := f.machine.Create(ctx, "donor", "h1", start); err != nil {
			t.Fatalf("first create: %v", err)
		}
		if _, err := f.machine.Create(ctx, "donor", "h1", start); !errors.Is(err, domain.ErrPendingRequestExists) {
			t.Fatalf("expected ErrPendingRequestExists, got %v", err)
		}
	})

	t.Run("cooldown after approval", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d, _ := f.machine.Create(ctx, "donor", "h1", start)
		if _, err := f.machine.Approve(ctx, d.ID, ""); err != nil {
			t.Fatalf("approve: %v", err)
		}

		_, err := f.machine.Create(ctx, "donor", "h1", start.Add(89*24*time.Hour))
		var cooldown *domain.CooldownError
		if !errors.As(err, &cooldown) || cooldown.DaysRemaining != 1 {
			t.Fatalf("expected cooldown with 1 day, got %v", err)
		}
		if _, err := f.machine.Create(ctx, "donor", "h1", start.Add(90*24*time.Hour)); err != nil {
			t.Fatalf("expected create after 90 days, got %v", err)
		}
	})
}

func TestMachine_Approve(t *testing.T) {
	t.Run("credits once", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d, _ := f.machine.Create(ctx, "donor", "h1", start)

		got, err := f.machine.Approve(ctx, d.ID, "looks good")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != domain.DonationApproved || got.ApprovalNotes != "looks good" {
			t.Fatalf("unexpected donation: %+v", got)
		}
		if _, err := f.machine.Approve(ctx, d.ID, ""); !errors.Is(err, domain.ErrNotPending) {
			t.Fatalf("expected ErrNotPending on redelivery, got %v", err)
		}
		if b := f.bags(t); b != 1 {
			t.Fatalf("expected 1 bag, got %d", b)
		}
	})

	t.Run("existing credit counts as applied", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d, _ := f.machine.Create(ctx, "donor", "h1", start)
		e, _ := f.ledger.Get(ctx, "h1", domain.GroupOPos)
		if _, err := f.ledger.Credit(ctx, e.ID, d.ID, 1); err != nil {
			t.Fatalf("pre-credit: %v", err)
		}

		if _, err := f.machine.Approve(ctx, d.ID, ""); err != nil {
			t.Fatalf("expected approve to succeed, got %v", err)
		}
		if b := f.bags(t); b != 1 {
			t.Fatalf("expected 1 bag, got %d", b)
		}
	})

	t.Run("rejected stays rejected", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d, _ := f.machine.Create(ctx, "donor", "h1", start)
		if _, err := f.machine.Reject(ctx, d.ID, "low iron"); err != nil {
			t.Fatalf("reject: %v", err)
		}
		if _, err := f.machine.Approve(ctx, d.ID, ""); !errors.Is(err, domain.ErrNotPending) {
			t.Fatalf("expected ErrNotPending, got %v", err)
		}
		if b := f.bags(t); b != 0 {
			t.Fatalf("expected ledger unchanged, got %d bags", b)
		}
	})

	t.Run("lost race", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		d, _ := f.machine.Create(ctx, "donor", "h1", start)

		m := NewMachine(staleRepo{f.store}, f.ledger, f.clock, nil)
		if _, err := m.Approve(ctx, d.ID, ""); !errors.Is(err, domain.ErrNotPending) {
			t.Fatalf("expected ErrNotPending, got %v", err)
		}
		if b := f.bags(t); b != 0 {
			t.Fatalf("expected no credit, got %d bags", b)
		}
	})

	t.Run("unknown donation", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.machine.Approve(context.Background(), "missing", ""); !errors.Is(err, domain.ErrDonationNotFound) {
			t.Fatalf("expected ErrDonationNotFound, got %v", err)
		}
	})
}

func TestMachine_Complete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, _ := f.machine.Create(ctx, "donor", "h1", start)

	if _, err := f.machine.Complete(ctx, d.ID); !errors.Is(err, domain.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved from pending, got %v", err)
	}
	if _, err := f.machine.Approve(ctx, d.ID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	f.clock.Advance(time.Hour)
	got, err := f.machine.Complete(ctx, d.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != domain.DonationCompleted || !got.UpdatedAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected donation: %+v", got)
	}
	if b := f.bags(t); b != 1 {
		t.Fatalf("expected completion to leave 1 bag, got %d", b)
	}
	if _, err := f.machine.Complete(ctx, d.ID); !errors.Is(err, domain.ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
}
