package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

const entryColumns = `id, hospital_id, blood_group, bag_quantity, created_at, updated_at`

func scanEntry(row pgx.Row) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.HospitalID, &e.BloodGroup, &e.BagQuantity, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// GetOrCreateEntry returns the entry for key, creating it with zero bags.
func (s *Postgres) GetOrCreateEntry(ctx context.Context, key domain.LedgerKey, now time.Time) (domain.LedgerEntry, error) {
	_, err := s.exec(ctx, `
INSERT INTO ledger_entries (id, hospital_id, blood_group, bag_quantity, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $4)
ON CONFLICT (hospital_id, blood_group) DO NOTHING`,
		uuid.NewString(), key.HospitalID, key.BloodGroup, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrHospitalNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("create ledger entry: %w", err)
	}
	return s.GetEntry(ctx, key)
}

func (s *Postgres) GetEntry(ctx context.Context, key domain.LedgerKey) (domain.LedgerEntry, error) {
	e, err := scanEntry(s.queryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE hospital_id = $1 AND blood_group = $2`,
		key.HospitalID, key.BloodGroup,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrEntryNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return s.withContributions(ctx, e)
}

func (s *Postgres) GetEntryByID(ctx context.Context, id string) (domain.LedgerEntry, error) {
	e, err := scanEntry(s.queryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrEntryNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("get ledger entry: %w", err)
	}
	return s.withContributions(ctx, e)
}

// ListEntries lists the entries of one hospital, or of every hospital when
// hospitalID is empty.
func (s *Postgres) ListEntries(ctx context.Context, hospitalID string) ([]domain.LedgerEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if hospitalID == "" {
		rows, err = s.query(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY hospital_id, blood_group`)
	} else {
		rows, err = s.query(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE hospital_id = $1 ORDER BY blood_group`, hospitalID)
	}
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrHospitalNotFound
		}
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i], err = s.withContributions(ctx, entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// CreditEntry records donationID against the entry and adds amount bags.
// The contribution row is keyed by donation, so a second credit is refused
// without aborting the surrounding transaction.
func (s *Postgres) CreditEntry(ctx context.Context, entryID, donationID string, amount int, now time.Time) (domain.LedgerEntry, error) {
	tag, err := s.exec(ctx, `
INSERT INTO ledger_contributions (donation_id, entry_id, bag_quantity, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (donation_id) DO NOTHING`,
		donationID, entryID, amount, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidUUID(err) {
			return domain.LedgerEntry{}, domain.ErrEntryNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("record contribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.LedgerEntry{}, domain.ErrAlreadyCredited
	}

	e, err := scanEntry(s.queryRow(ctx, `
UPDATE ledger_entries SET bag_quantity = bag_quantity + $1, updated_at = $2
WHERE id = $3
RETURNING `+entryColumns,
		amount, now, entryID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerEntry{}, domain.ErrEntryNotFound
		}
		return domain.LedgerEntry{}, fmt.Errorf("credit ledger entry: %w", err)
	}
	return s.withContributions(ctx, e)
}

// ReserveEntry subtracts amount bags if at least that many are in stock.
// The comparison and the decrement are one statement.
func (s *Postgres) ReserveEntry(ctx context.Context, entryID string, amount int, now time.Time) (domain.LedgerEntry, error) {
	e, err := scanEntry(s.queryRow(ctx, `
UPDATE ledger_entries SET bag_quantity = bag_quantity - $1, updated_at = $2
WHERE id = $3 AND bag_quantity >= $1
RETURNING `+entryColumns,
		amount, now, entryID,
	))
	if err == nil {
		return s.withContributions(ctx, e)
	}
	if isInvalidUUID(err) {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.LedgerEntry{}, fmt.Errorf("reserve ledger entry: %w", err)
	}

	var exists bool
	if err := s.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE id = $1)`, entryID).Scan(&exists); err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("check ledger entry: %w", err)
	}
	if !exists {
		return domain.LedgerEntry{}, domain.ErrEntryNotFound
	}
	return domain.LedgerEntry{}, domain.ErrInsufficientStock
}

func (s *Postgres) withContributions(ctx context.Context, e domain.LedgerEntry) (domain.LedgerEntry, error) {
	rows, err := s.query(ctx,
		`SELECT donation_id FROM ledger_contributions WHERE entry_id = $1 ORDER BY created_at, donation_id`, e.ID)
	if err != nil {
		return domain.LedgerEntry{}, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	e.Donations = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("scan contribution: %w", err)
		}
		e.Donations = append(e.Donations, id)
	}
	return e, rows.Err()
}
