package domain

import "time"

// DonationCooldownDays is the minimum gap between two contributing donations.
const DonationCooldownDays = 90

// CheckEligibility decides whether the owner may open a new donation request.
// history holds the owner's previous requests in any order. The check is
// advisory: the caller must repeat it inside the owner's critical section
// before inserting.
func CheckEligibility(owner Profile, history []Donation, now time.Time) error {
	if !owner.IsDonor {
		return ErrNotARegisteredDonor
	}

	var last *Donation
	for i := range history {
		d := &history[i]
		if d.Status == DonationPending {
			return ErrPendingRequestExists
		}
		if d.Status.Contributes() && (last == nil || d.CreatedAt.After(last.CreatedAt)) {
			last = d
		}
	}

	if last != nil {
		elapsed := ElapsedDays(last.CreatedAt, now)
		if elapsed < DonationCooldownDays {
			return &CooldownError{DaysRemaining: DonationCooldownDays - elapsed}
		}
	}
	return nil
}

// ElapsedDays counts whole 24h periods between from and to. A negative gap
// (from in the future) counts as zero.
func ElapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
