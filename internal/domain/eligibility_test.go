package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCheckEligibility(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	donor := Profile{ID: "user-1", BloodGroup: GroupOPos, IsDonor: true}
	daysAgo := func(days float64) time.Time {
		return now.Add(-time.Duration(days * 24 * float64(time.Hour)))
	}

	t.Run("rejects non donor", func(t *testing.T) {
		err := CheckEligibility(Profile{ID: "user-2"}, nil, now)
		if err != ErrNotARegisteredDonor {
			t.Fatalf("expected ErrNotARegisteredDonor, got %v", err)
		}
	})

	t.Run("non donor check runs before pending check", func(t *testing.T) {
		history := []Donation{{Status: DonationPending, CreatedAt: daysAgo(1)}}
		err := CheckEligibility(Profile{ID: "user-2"}, history, now)
		if err != ErrNotARegisteredDonor {
			t.Fatalf("expected ErrNotARegisteredDonor, got %v", err)
		}
	})

	t.Run("accepts first time donor", func(t *testing.T) {
		if err := CheckEligibility(donor, nil, now); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("rejects when a request is pending", func(t *testing.T) {
		history := []Donation{
			{Status: DonationPending, CreatedAt: daysAgo(200)},
		}
		err := CheckEligibility(donor, history, now)
		if err != ErrPendingRequestExists {
			t.Fatalf("expected ErrPendingRequestExists, got %v", err)
		}
	})

	t.Run("pending check wins over cooldown", func(t *testing.T) {
		history := []Donation{
			{Status: DonationPending, CreatedAt: daysAgo(1)},
			{Status: DonationApproved, CreatedAt: daysAgo(10)},
		}
		err := CheckEligibility(donor, history, now)
		if err != ErrPendingRequestExists {
			t.Fatalf("expected ErrPendingRequestExists, got %v", err)
		}
	})

	cooldownCases := []struct {
		name      string
		age       float64
		status    DonationStatus
		wantDays  int
		wantAllow bool
	}{
		{name: "89 days ago leaves one day", age: 89, status: DonationApproved, wantDays: 1},
		{name: "89.9 days ago truncates to 89", age: 89.9, status: DonationApproved, wantDays: 1},
		{name: "exactly 90 days ago is accepted", age: 90, status: DonationApproved, wantAllow: true},
		{name: "completed donation counts", age: 30, status: DonationCompleted, wantDays: 60},
		{name: "same day donation", age: 0.5, status: DonationApproved, wantDays: 90},
		{name: "rejected donation is ignored", age: 1, status: DonationRejected, wantAllow: true},
		{name: "future-dated donation waits the full cooldown", age: -2, status: DonationApproved, wantDays: 90},
	}
	for _, tc := range cooldownCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			history := []Donation{{Status: tc.status, CreatedAt: daysAgo(tc.age)}}
			err := CheckEligibility(donor, history, now)
			if tc.wantAllow {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrCooldownActive) {
				t.Fatalf("expected ErrCooldownActive, got %v", err)
			}
			var cd *CooldownError
			if !errors.As(err, &cd) {
				t.Fatalf("expected *CooldownError, got %T", err)
			}
			if cd.DaysRemaining != tc.wantDays {
				t.Fatalf("expected %d days remaining, got %d", tc.wantDays, cd.DaysRemaining)
			}
		})
	}

	t.Run("uses most recent contributing donation regardless of order", func(t *testing.T) {
		history := []Donation{
			{Status: DonationCompleted, CreatedAt: daysAgo(400)},
			{Status: DonationApproved, CreatedAt: daysAgo(10)},
			{Status: DonationCompleted, CreatedAt: daysAgo(200)},
		}
		var cd *CooldownError
		if err := CheckEligibility(donor, history, now); !errors.As(err, &cd) {
			t.Fatalf("expected cooldown error, got %v", err)
		}
		if cd.DaysRemaining != 80 {
			t.Fatalf("expected 80 days remaining, got %d", cd.DaysRemaining)
		}
	})
}

func TestElapsedDays(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		to   time.Time
		want int
	}{
		{to: base, want: 0},
		{to: base.Add(23 * time.Hour), want: 0},
		{to: base.Add(24 * time.Hour), want: 1},
		{to: base.Add(-48 * time.Hour), want: 0},
		{to: base.AddDate(0, 0, 90), want: 90},
	}
	for _, tc := range cases {
		if got := ElapsedDays(base, tc.to); got != tc.want {
			t.Errorf("ElapsedDays(%v, %v) = %d, want %d", base, tc.to, got, tc.want)
		}
	}
}
