package donation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"lifeline/internal/domain"
	"lifeline/pkg/platform/sentinel"
)

// PostgresStore persists donations one row each. RequestID is nullable; a
// self-scheduled donation has no request behind it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const donationsSchema = `
CREATE TABLE IF NOT EXISTS donations (
    id             TEXT PRIMARY KEY,
    donor_id       TEXT NOT NULL,
    request_id     TEXT,
    scheduled_date TIMESTAMPTZ NOT NULL,
    status         TEXT NOT NULL,
    units          INT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_donations_donor ON donations (donor_id, scheduled_date);
CREATE INDEX IF NOT EXISTS idx_donations_request ON donations (request_id) WHERE request_id IS NOT NULL;
`

// EnsureSchema creates the table if missing. Called once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, donationsSchema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, donation *domain.Donation) error {
	var requestID sql.NullString
	if donation.RequestID != "" {
		requestID = sql.NullString{String: donation.RequestID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (id, donor_id, request_id, scheduled_date, status, units, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		donation.ID, donation.DonorID, requestID, donation.ScheduledDate,
		string(donation.Status), donation.Units, donation.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	return err
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.Donation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, donor_id, request_id, scheduled_date, status, units, created_at
		FROM donations WHERE id = $1`, id)
	return scanDonation(row)
}

func (s *PostgresStore) ListByDonor(ctx context.Context, donorID string) ([]*domain.Donation, error) {
	return s.query(ctx, `
		SELECT id, donor_id, request_id, scheduled_date, status, units, created_at
		FROM donations WHERE donor_id = $1
		ORDER BY scheduled_date, id`, donorID)
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID string) ([]*domain.Donation, error) {
	return s.query(ctx, `
		SELECT id, donor_id, request_id, scheduled_date, status, units, created_at
		FROM donations WHERE request_id = $1
		ORDER BY scheduled_date, id`, requestID)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status domain.DonationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE donations SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]*domain.Donation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (*domain.Donation, error) {
	var (
		d         domain.Donation
		requestID sql.NullString
		status    string
	)
	err := row.Scan(&d.ID, &d.DonorID, &requestID, &d.ScheduledDate, &status, &d.Units, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.RequestID = requestID.String
	d.Status = domain.DonationStatus(status)
	return &d, nil
}
