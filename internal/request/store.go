package request

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"lifeline/internal/domain"
)

// Store persists blood requests. Save enforces optimistic concurrency: it
// compares the request's Version against the stored one, returns
// sentinel.ErrConflict when the stored version advanced since load, and
// bumps the version on success. This serializes all read-then-write cycles
// per request id; distinct requests proceed in parallel.
type Store interface {
	Create(ctx context.Context, req *domain.BloodRequest) error
	Load(ctx context.Context, id string) (*domain.BloodRequest, error)
	Save(ctx context.Context, req *domain.BloodRequest) error
	List(ctx context.Context, filter domain.RequestFilter) ([]*domain.BloodRequest, error)

	// ListExpired returns non-terminal requests whose ExpiresAt precedes
	// now, for the background sweep.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.BloodRequest, error)
}

// DonationStore is the slice of the donation collaborator this package
// needs: creating the donation derived from an acceptance.
type DonationStore interface {
	Create(ctx context.Context, donation *domain.Donation) error
}

// DonorDirectory is the user-directory collaborator contract. Implementations
// must populate eligibility and coordinates; candidates without a coordinate
// are excluded by the match engine.
type DonorDirectory interface {
	FindCandidates(ctx context.Context, bloodTypes []domain.BloodType, excludeIDs []string) ([]domain.DonorCandidate, error)
}
