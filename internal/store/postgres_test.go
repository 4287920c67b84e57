package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/domain"
	"github.com/punchamoorthee/bloodbank/internal/testutil"
)

func TestPostgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	s := NewPostgres(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	setup := func(t *testing.T, ctx context.Context) (string, domain.LedgerEntry) {
		t.Helper()
		testutil.TruncateAll(t, ctx, pool)
		hospitalID := testutil.InsertHospital(t, ctx, pool, "City")
		testutil.InsertProfile(t, ctx, pool, domain.Profile{ID: "u1", Username: "alice", BloodGroup: domain.GroupOPos, IsDonor: true})
		e, err := s.GetOrCreateEntry(ctx, domain.LedgerKey{HospitalID: hospitalID, BloodGroup: domain.GroupOPos}, now)
		if err != nil {
			t.Fatalf("get or create entry: %v", err)
		}
		return hospitalID, e
	}

	insertDonation := func(t *testing.T, ctx context.Context, hospitalID string, status domain.DonationStatus) domain.Donation {
		t.Helper()
		d := domain.Donation{
			ID: uuid.NewString(), OwnerID: "u1", HospitalID: hospitalID, BloodGroup: domain.GroupOPos,
			BagQuantity: 1, Status: status, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.InsertDonation(ctx, d); err != nil {
			t.Fatalf("insert donation: %v", err)
		}
		return d
	}

	t.Run("GetOrCreateEntry is idempotent and checks the hospital", func(t *testing.T) {
		ctx := context.Background()
		_, e := setup(t, ctx)

		again, err := s.GetOrCreateEntry(ctx, e.Key(), now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if again.ID != e.ID || again.BagQuantity != 0 {
			t.Fatalf("expected the same empty entry, got %+v", again)
		}

		_, err = s.GetOrCreateEntry(ctx, domain.LedgerKey{HospitalID: uuid.NewString(), BloodGroup: domain.GroupAPos}, now)
		if !errors.Is(err, domain.ErrHospitalNotFound) {
			t.Fatalf("expected ErrHospitalNotFound, got %v", err)
		}
		_, err = s.GetOrCreateEntry(ctx, domain.LedgerKey{HospitalID: "not-a-uuid", BloodGroup: domain.GroupAPos}, now)
		if !errors.Is(err, domain.ErrHospitalNotFound) {
			t.Fatalf("expected ErrHospitalNotFound for bad id, got %v", err)
		}
	})

	t.Run("CreditEntry credits a donation once", func(t *testing.T) {
		ctx := context.Background()
		hospitalID, e := setup(t, ctx)
		d := insertDonation(t, ctx, hospitalID, domain.DonationApproved)

		err := s.WithTx(ctx, func(ctx context.Context) error {
			got, err := s.CreditEntry(ctx, e.ID, d.ID, 1, now)
			if err != nil {
				return err
			}
			if got.BagQuantity != 1 || len(got.Donations) != 1 {
				t.Fatalf("unexpected entry: %+v", got)
			}
			if _, err := s.CreditEntry(ctx, e.ID, d.ID, 1, now); !errors.Is(err, domain.ErrAlreadyCredited) {
				t.Fatalf("expected ErrAlreadyCredited, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		got, err := s.GetEntryByID(ctx, e.ID)
		if err != nil {
			t.Fatalf("get entry: %v", err)
		}
		if got.BagQuantity != 1 || got.Donations[0] != d.ID {
			t.Fatalf("unexpected entry after commit: %+v", got)
		}
	})

	t.Run("ReserveEntry refuses to go negative under contention", func(t *testing.T) {
		ctx := context.Background()
		hospitalID, e := setup(t, ctx)
		for i := 0; i < 5; i++ {
			d := insertDonation(t, ctx, hospitalID, domain.DonationApproved)
			if _, err := s.CreditEntry(ctx, e.ID, d.ID, 1, now); err != nil {
				t.Fatalf("credit: %v", err)
			}
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for _, amount := range []int{3, 4} {
			wg.Add(1)
			go func(amount int) {
				defer wg.Done()
				_, err := s.ReserveEntry(ctx, e.ID, amount, now)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}(amount)
		}
		wg.Wait()

		var ok, short int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				short++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || short != 1 {
			t.Fatalf("expected one success and one shortage, got %d and %d", ok, short)
		}
		got, _ := s.GetEntryByID(ctx, e.ID)
		if got.BagQuantity != 2 && got.BagQuantity != 1 {
			t.Fatalf("expected 2 or 1 bags left, got %d", got.BagQuantity)
		}
	})

	t.Run("InsertDonation enforces one pending request per owner", func(t *testing.T) {
		ctx := context.Background()
		hospitalID, _ := setup(t, ctx)
		first := insertDonation(t, ctx, hospitalID, domain.DonationPending)

		second := first
		second.ID = uuid.NewString()
		if err := s.InsertDonation(ctx, second); !errors.Is(err, domain.ErrPendingRequestExists) {
			t.Fatalf("expected ErrPendingRequestExists, got %v", err)
		}

		rejected := first
		rejected.Status = domain.DonationRejected
		ok, err := s.UpdateDonationStatus(ctx, rejected, domain.DonationPending)
		if err != nil || !ok {
			t.Fatalf("expected update, got %v %v", ok, err)
		}
		ok, err = s.UpdateDonationStatus(ctx, rejected, domain.DonationPending)
		if err != nil || ok {
			t.Fatalf("expected stale update to report false, got %v %v", ok, err)
		}
		if err := s.InsertDonation(ctx, second); err != nil {
			t.Fatalf("expected insert after rejection, got %v", err)
		}
	})

	t.Run("WithTx rolls back on error", func(t *testing.T) {
		ctx := context.Background()
		hospitalID, e := setup(t, ctx)
		boom := errors.New("boom")

		var donationID string
		err := s.WithTx(ctx, func(ctx context.Context) error {
			d := insertDonation(t, ctx, hospitalID, domain.DonationApproved)
			donationID = d.ID
			if _, err := s.CreditEntry(ctx, e.ID, d.ID, 1, now); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := s.GetDonation(ctx, donationID); !errors.Is(err, domain.ErrDonationNotFound) {
			t.Fatalf("expected donation rolled back, got %v", err)
		}
		got, _ := s.GetEntryByID(ctx, e.ID)
		if got.BagQuantity != 0 {
			t.Fatalf("expected no bags, got %d", got.BagQuantity)
		}
	})

	t.Run("claims and profiles", func(t *testing.T) {
		ctx := context.Background()
		hospitalID, e := setup(t, ctx)

		c := domain.Claim{ID: uuid.NewString(), OwnerID: "u1", EntryID: e.ID, BagQuantity: 2, CreatedAt: now}
		if err := s.InsertClaim(ctx, c); err != nil {
			t.Fatalf("insert claim: %v", err)
		}
		claims, err := s.ListClaims(ctx, "u1")
		if err != nil {
			t.Fatalf("list claims: %v", err)
		}
		if len(claims) != 1 || claims[0].HospitalID != hospitalID || claims[0].BloodGroup != domain.GroupOPos {
			t.Fatalf("unexpected claims: %+v", claims)
		}

		if err := s.MarkRecipient(ctx, "u1"); err != nil {
			t.Fatalf("mark recipient: %v", err)
		}
		p, err := s.GetProfile(ctx, "u1")
		if err != nil || !p.IsRecipient {
			t.Fatalf("expected recipient flag, got %+v %v", p, err)
		}
		if err := s.MarkRecipient(ctx, "ghost"); !errors.Is(err, domain.ErrProfileNotFound) {
			t.Fatalf("expected ErrProfileNotFound, got %v", err)
		}
	})
}
