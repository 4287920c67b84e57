package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/bloodbank/internal/domain"
)

// Postgres persists the blood bank in PostgreSQL. Atomicity comes from row
// locks, conditional updates and the constraints created by the migrations.
type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Db: pool}
}

// Open parses connString, connects and pings the database.
func Open(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close() {
	s.Db.Close()
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

func (s *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.Db, fn)
}

func (s *Postgres) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.Db.Exec(ctx, sql, args...)
}

func (s *Postgres) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.Db.QueryRow(ctx, sql, args...)
}

func (s *Postgres) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.Db.Query(ctx, sql, args...)
}

const hospitalColumns = `id, name, address, hospital_type, phone_number1, COALESCE(phone_number2, ''), COALESCE(website, ''), email, created_at, updated_at`

func scanHospital(row pgx.Row) (domain.Hospital, error) {
	var h domain.Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.Type, &h.PhoneNumber1, &h.PhoneNumber2, &h.Website, &h.Email, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

// CreateHospital inserts h; duplicate phone numbers or email are rejected.
func (s *Postgres) CreateHospital(ctx context.Context, h domain.Hospital) error {
	_, err := s.exec(ctx, `
INSERT INTO hospitals (id, name, address, hospital_type, phone_number1, phone_number2, website, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		h.ID, h.Name, h.Address, h.Type, h.PhoneNumber1, h.PhoneNumber2, h.Website, h.Email, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateHospital
		}
		return fmt.Errorf("create hospital: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateHospital(ctx context.Context, h domain.Hospital) error {
	tag, err := s.exec(ctx, `
UPDATE hospitals
SET name = $2, address = $3, hospital_type = $4, phone_number1 = $5, phone_number2 = NULLIF($6, ''),
    website = NULLIF($7, ''), email = $8, updated_at = $9
WHERE id = $1`,
		h.ID, h.Name, h.Address, h.Type, h.PhoneNumber1, h.PhoneNumber2, h.Website, h.Email, h.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateHospital
		}
		if isInvalidUUID(err) {
			return domain.ErrHospitalNotFound
		}
		return fmt.Errorf("update hospital: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHospitalNotFound
	}
	return nil
}

func (s *Postgres) GetHospital(ctx context.Context, id string) (domain.Hospital, error) {
	h, err := scanHospital(s.queryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return domain.Hospital{}, domain.ErrHospitalNotFound
		}
		return domain.Hospital{}, fmt.Errorf("get hospital: %w", err)
	}
	return h, nil
}

func (s *Postgres) ListHospitals(ctx context.Context) ([]domain.Hospital, error) {
	rows, err := s.query(ctx, `SELECT `+hospitalColumns+` FROM hospitals ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	hospitals := []domain.Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

// SaveProfile upserts the identity provider's view of a user.
func (s *Postgres) SaveProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.exec(ctx, `
INSERT INTO profiles (id, username, first_name, last_name, email, blood_group, is_donor, is_recipient)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
ON CONFLICT (id) DO UPDATE
SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
    email = EXCLUDED.email, blood_group = EXCLUDED.blood_group, is_donor = EXCLUDED.is_donor,
    is_recipient = EXCLUDED.is_recipient`,
		p.ID, p.Username, p.FirstName, p.LastName, p.Email, p.BloodGroup, p.IsDonor, p.IsRecipient,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Postgres) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var p domain.Profile
	err := s.queryRow(ctx, `
SELECT id, username, first_name, last_name, email, COALESCE(blood_group, ''), is_donor, is_recipient
FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.FirstName, &p.LastName, &p.Email, &p.BloodGroup, &p.IsDonor, &p.IsRecipient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Postgres) MarkRecipient(ctx context.Context, id string) error {
	tag, err := s.exec(ctx, `UPDATE profiles SET is_recipient = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark recipient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
