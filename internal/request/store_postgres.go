package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lifeline/internal/domain"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/sentinel"
)

// PostgresStore persists requests in a single table with the match entries
// embedded as JSONB, mirroring the aggregate ownership: entries never exist
// without their request. The version column backs optimistic concurrency.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestsSchema = `
CREATE TABLE IF NOT EXISTS blood_requests (
    id            TEXT PRIMARY KEY,
    recipient_id  TEXT NOT NULL,
    blood_type    TEXT NOT NULL,
    units         INT NOT NULL,
    urgency       TEXT NOT NULL,
    status        TEXT NOT NULL,
    lat           DOUBLE PRECISION,
    lng           DOUBLE PRECISION,
    match_entries JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL,
    expires_at    TIMESTAMPTZ NOT NULL,
    version       BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blood_requests_status ON blood_requests (status);
CREATE INDEX IF NOT EXISTS idx_blood_requests_expires ON blood_requests (expires_at) WHERE status IN ('pending','matched','in-delivery');
`

// EnsureSchema creates the table if missing. Called once at startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, requestsSchema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, req *domain.BloodRequest) error {
	entries, err := json.Marshal(req.MatchEntries)
	if err != nil {
		return fmt.Errorf("marshal match entries: %w", err)
	}
	req.Version = 1

	var lat, lng sql.NullFloat64
	if req.Location != nil {
		lat = sql.NullFloat64{Float64: req.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: req.Location.Lng, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blood_requests
			(id, recipient_id, blood_type, units, urgency, status, lat, lng, match_entries, created_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID, req.RecipientID, string(req.BloodType), req.Units, string(req.Urgency),
		string(req.Status), lat, lng, entries, req.CreatedAt, req.ExpiresAt, req.Version,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	return err
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.BloodRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient_id, blood_type, units, urgency, status, lat, lng, match_entries, created_at, expires_at, version
		FROM blood_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

// Save writes the request back, guarded by the version it was loaded with.
// Zero rows updated means another writer advanced the version first.
func (s *PostgresStore) Save(ctx context.Context, req *domain.BloodRequest) error {
	entries, err := json.Marshal(req.MatchEntries)
	if err != nil {
		return fmt.Errorf("marshal match entries: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE blood_requests
		SET status = $1, match_entries = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		string(req.Status), entries, req.ID, req.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM blood_requests WHERE id = $1)`, req.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	req.Version++
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter domain.RequestFilter) ([]*domain.BloodRequest, error) {
	query := `
		SELECT id, recipient_id, blood_type, units, urgency, status, lat, lng, match_entries, created_at, expires_at, version
		FROM blood_requests WHERE 1=1`
	var args []any
	add := func(clause, value string) {
		if value != "" {
			args = append(args, value)
			query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
		}
	}
	add("status", string(filter.Status))
	add("blood_type", string(filter.BloodType))
	add("urgency", string(filter.Urgency))
	add("recipient_id", filter.RecipientID)
	query += " ORDER BY created_at DESC, id"

	return s.queryRequests(ctx, query, args...)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.BloodRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryRequests(ctx, `
		SELECT id, recipient_id, blood_type, units, urgency, status, lat, lng, match_entries, created_at, expires_at, version
		FROM blood_requests
		WHERE expires_at < $1 AND status IN ('pending','matched','in-delivery')
		ORDER BY expires_at
		LIMIT $2`, now, limit)
}

func (s *PostgresStore) queryRequests(ctx context.Context, query string, args ...any) ([]*domain.BloodRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.BloodRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.BloodRequest, error) {
	var (
		req       domain.BloodRequest
		bloodType string
		urgency   string
		status    string
		lat, lng  sql.NullFloat64
		entries   []byte
	)
	err := row.Scan(&req.ID, &req.RecipientID, &bloodType, &req.Units, &urgency,
		&status, &lat, &lng, &entries, &req.CreatedAt, &req.ExpiresAt, &req.Version)
	if err != nil {
		return nil, err
	}
	req.BloodType = domain.BloodType(bloodType)
	req.Urgency = domain.Urgency(urgency)
	req.Status = domain.RequestStatus(status)
	if lat.Valid && lng.Valid {
		req.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
	}
	if err := json.Unmarshal(entries, &req.MatchEntries); err != nil {
		return nil, fmt.Errorf("unmarshal match entries: %w", err)
	}
	return &req, nil
}
