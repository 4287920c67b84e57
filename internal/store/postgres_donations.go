package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

const donationColumns = `id, owner_id, hospital_id, blood_group, bag_quantity, status, approval_notes, created_at, updated_at`

func scanDonation(row pgx.Row) (domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(&d.ID, &d.OwnerID, &d.HospitalID, &d.BloodGroup, &d.BagQuantity, &d.Status, &d.ApprovalNotes, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// InsertDonation relies on the partial unique index over pending requests to
// refuse a second pending request for the same owner.
func (s *Postgres) InsertDonation(ctx context.Context, d domain.Donation) error {
	_, err := s.exec(ctx, `
INSERT INTO donations (id, owner_id, hospital_id, blood_group, bag_quantity, status, approval_notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.OwnerID, d.HospitalID, d.BloodGroup, d.BagQuantity, d.Status, d.ApprovalNotes, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPendingRequestExists
		}
		if isForeignKeyViolation(err) || isInvalidUUID(err) {
			return domain.ErrHospitalNotFound
		}
		return fmt.Errorf("insert donation: %w", err)
	}
	return nil
}

func (s *Postgres) GetDonation(ctx context.Context, id string) (domain.Donation, error) {
	return s.getDonation(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
}

// GetDonationForUpdate row-locks the donation until the transaction ends.
func (s *Postgres) GetDonationForUpdate(ctx context.Context, id string) (domain.Donation, error) {
	return s.getDonation(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1 FOR UPDATE`, id)
}

func (s *Postgres) getDonation(ctx context.Context, sql, id string) (domain.Donation, error) {
	d, err := scanDonation(s.queryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Donation{}, domain.ErrDonationNotFound
		}
		return domain.Donation{}, fmt.Errorf("get donation: %w", err)
	}
	return d, nil
}

// UpdateDonationStatus writes d's status and notes only if the stored status
// is still from. It reports false when another writer got there first.
func (s *Postgres) UpdateDonationStatus(ctx context.Context, d domain.Donation, from domain.DonationStatus) (bool, error) {
	tag, err := s.exec(ctx, `
UPDATE donations SET status = $1, approval_notes = $2, updated_at = $3
WHERE id = $4 AND status = $5`,
		d.Status, d.ApprovalNotes, d.UpdatedAt, d.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("update donation status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDonations returns matching donations, newest first.
func (s *Postgres) ListDonations(ctx context.Context, filter domain.DonationFilter) ([]domain.Donation, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+" = $"+strconv.Itoa(len(args)))
	}
	if filter.OwnerID != "" {
		add("owner_id", filter.OwnerID)
	}
	if filter.HospitalID != "" {
		add("hospital_id", filter.HospitalID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}

	sql := `SELECT ` + donationColumns + ` FROM donations`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := s.query(ctx, sql, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return []domain.Donation{}, nil
		}
		return nil, fmt.Errorf("list donations: %w", err)
	}
	defer rows.Close()

	donations := []domain.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

const claimColumns = `c.id, c.owner_id, c.entry_id, e.hospital_id, e.blood_group, c.bag_quantity, c.created_at`

func (s *Postgres) InsertClaim(ctx context.Context, c domain.Claim) error {
	_, err := s.exec(ctx, `
INSERT INTO claims (id, owner_id, entry_id, bag_quantity, created_at)
VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OwnerID, c.EntryID, c.BagQuantity, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProfileNotFound
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// ListClaims lists one owner's claims, or all claims when ownerID is empty.
func (s *Postgres) ListClaims(ctx context.Context, ownerID string) ([]domain.Claim, error) {
	sql := `SELECT ` + claimColumns + ` FROM claims c JOIN ledger_entries e ON e.id = c.entry_id`
	var args []any
	if ownerID != "" {
		sql += ` WHERE c.owner_id = $1`
		args = append(args, ownerID)
	}
	sql += ` ORDER BY c.created_at DESC, c.id`

	rows, err := s.query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := []domain.Claim{}
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.EntryID, &c.HospitalID, &c.BloodGroup, &c.BagQuantity, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}
