// Package donation manages scheduled donations: the ones derived from an
// accepted blood request and the ones a donor books on their own.
package donation

import (
	"context"

	"lifeline/internal/domain"
)

// Store persists donations. Donations have no concurrent writers per row, so
// unlike blood requests there is no version check here.
type Store interface {
	Create(ctx context.Context, donation *domain.Donation) error
	Load(ctx context.Context, id string) (*domain.Donation, error)
	ListByDonor(ctx context.Context, donorID string) ([]*domain.Donation, error)
	ListByRequest(ctx context.Context, requestID string) ([]*domain.Donation, error)
	SetStatus(ctx context.Context, id string, status domain.DonationStatus) error
}
