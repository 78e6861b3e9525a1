package donation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifeline/internal/domain"
	"lifeline/pkg/clock"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/sentinel"
)

// Service handles donor self-scheduling and donation history. Donations
// derived from accepted requests are created directly by the request
// lifecycle; this service never sees them being born, only listed.
type Service struct {
	store  Store
	logger *slog.Logger
	clk    clock.Clock
}

type ServiceOption func(*Service)

func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) { s.clk = c }
}

func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{store: store, logger: logger, clk: clock.Real{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleParams carries a donor's self-booked appointment.
type ScheduleParams struct {
	DonorID       string
	ScheduledDate time.Time
	Units         int
}

// Schedule books a donation appointment with no request behind it.
func (s *Service) Schedule(ctx context.Context, p ScheduleParams) (*domain.Donation, error) {
	if p.DonorID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "donor is required")
	}
	if p.ScheduledDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "scheduled date is required")
	}
	now := s.clk.Now()
	if p.ScheduledDate.Before(now) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "scheduled date is in the past")
	}
	if p.Units == 0 {
		p.Units = 1
	}
	if p.Units < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "units must be at least 1")
	}

	donation := &domain.Donation{
		ID:            uuid.NewString(),
		DonorID:       p.DonorID,
		ScheduledDate: p.ScheduledDate,
		Status:        domain.DonationScheduled,
		Units:         p.Units,
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, donation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist donation")
	}

	s.logger.InfoContext(ctx, "donation scheduled",
		"donation_id", donation.ID,
		"donor_id", donation.DonorID,
		"scheduled_date", donation.ScheduledDate,
	)
	return donation, nil
}

// History returns a donor's donations, soonest appointment first.
func (s *Service) History(ctx context.Context, donorID string) ([]*domain.Donation, error) {
	if donorID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "donor is required")
	}
	donations, err := s.store.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list donations")
	}
	return donations, nil
}

// SetStatus marks a donation completed or cancelled. Only the owning donor
// may change it, and only while it is still scheduled.
func (s *Service) SetStatus(ctx context.Context, id, donorID string, status domain.DonationStatus) (*domain.Donation, error) {
	if status != domain.DonationCompleted && status != domain.DonationCancelled {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown donation status %q", status)
	}

	donation, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load donation")
	}
	if donorID != "" && donation.DonorID != donorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "not your donation")
	}
	if donation.Status != domain.DonationScheduled {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
			"donation is already %s", donation.Status)
	}

	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update donation status")
	}
	donation.Status = status
	return donation, nil
}
