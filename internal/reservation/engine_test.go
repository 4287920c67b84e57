package reservation

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

var now = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

type failingFlagger struct {
	calls int
}

func (f *failingFlagger) MarkRecipient(context.Context, string) error {
	f.calls++
	return errors.New("profile service down")
}

func stocked(t *testing.T, bags int) (*store.Memory, *ledger.Ledger, domain.LedgerEntry) {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	if err := s.CreateHospital(ctx, domain.Hospital{ID: "h1", Name: "City", Type: domain.HospitalGeneral, PhoneNumber1: "1", Email: "a@b.c"}); err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	if err := s.SaveProfile(ctx, domain.Profile{ID: "r1", Username: "bob"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	l := ledger.New(s, clock.NewFixed(now))
	e, err := l.GetOrCreate(ctx, "h1", domain.GroupAPos)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if bags > 0 {
		if e, err = l.Credit(ctx, e.ID, "seed", bags); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	return s, l, e
}

func TestEngine_CreateClaim(t *testing.T) {
	tests := []struct {
		name     string
		stock    int
		amount   int
		wantErr  error
		wantLeft int
	}{
		{name: "exact stock", stock: 3, amount: 3, wantLeft: 0},
		{name: "partial", stock: 5, amount: 2, wantLeft: 3},
		{name: "too many", stock: 2, amount: 3, wantErr: domain.ErrOutOfStock, wantLeft: 2},
		{name: "empty entry", stock: 0, amount: 1, wantErr: domain.ErrOutOfStock, wantLeft: 0},
		{name: "zero amount", stock: 2, amount: 0, wantErr: domain.ErrInvalidAmount, wantLeft: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, l, e := stocked(t, tt.stock)
			engine := NewEngine(s, l, s, nil)

			c, err := engine.CreateClaim(ctx, "r1", e, tt.amount, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil && (c.BagQuantity != tt.amount || c.EntryID != e.ID || c.BloodGroup != domain.GroupAPos) {
				t.Fatalf("unexpected claim: %+v", c)
			}
			got, _ := l.Get(ctx, "h1", domain.GroupAPos)
			if got.BagQuantity != tt.wantLeft {
				t.Fatalf("expected %d bags left, got %d", tt.wantLeft, got.BagQuantity)
			}
			claims, _ := s.ListClaims(ctx, "r1")
			if wantClaims := map[bool]int{true: 1, false: 0}[err == nil]; len(claims) != wantClaims {
				t.Fatalf("expected %d claims, got %d", wantClaims, len(claims))
			}
		})
	}
}

func TestEngine_FlagRecipient(t *testing.T) {
	ctx := context.Background()
	s, l, _ := stocked(t, 1)

	NewEngine(s, l, s, nil).FlagRecipient(ctx, "r1")
	p, _ := s.GetProfile(ctx, "r1")
	if !p.IsRecipient {
		t.Fatalf("expected recipient flag to be set")
	}

	flagger := &failingFlagger{}
	NewEngine(s, l, flagger, nil).FlagRecipient(ctx, "r1")
	if flagger.calls != 1 {
		t.Fatalf("expected one flag attempt, got %d", flagger.calls)
	}
}
