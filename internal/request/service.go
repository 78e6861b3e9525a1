package request

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lifeline/internal/domain"
	"lifeline/internal/match"
	"lifeline/internal/notify"
	"lifeline/internal/platform/metrics"
	"lifeline/pkg/clock"
	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/geo"
	"lifeline/pkg/platform/sentinel"
)

// Decision is a donor's answer to an offered request.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// maxSaveAttempts bounds the reload-and-retry loop on optimistic-concurrency
// conflicts. Contention on one request is donor responses racing each other,
// so a couple of retries is enough in practice.
const maxSaveAttempts = 3

// Service orchestrates the request lifecycle. Every read-then-write cycle on
// one request goes through the store's version check, so concurrent donor
// responses cannot overwrite each other's match entry or double-trigger the
// pending->matched transition.
type Service struct {
	store     Store
	donations DonationStore
	directory DonorDirectory
	engine    *match.Engine
	bus       notify.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	clk       clock.Clock

	donationLeadTime time.Duration
	requestTTL       time.Duration
}

// ServiceOption configures optional service policy.
type ServiceOption func(*Service)

// WithClock injects a deterministic time source.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) { s.clk = c }
}

// WithDonationLeadTime sets the offset from acceptance to the scheduled
// donation date.
func WithDonationLeadTime(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.donationLeadTime = d
		}
	}
}

// WithRequestTTL sets how long a new request stays open before expiry.
func WithRequestTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.requestTTL = d
		}
	}
}

func NewService(
	store Store,
	donations DonationStore,
	directory DonorDirectory,
	engine *match.Engine,
	bus notify.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:            store,
		donations:        donations,
		directory:        directory,
		engine:           engine,
		bus:              bus,
		logger:           logger,
		metrics:          m,
		tracer:           otel.Tracer("lifeline/request"),
		clk:              clock.Real{},
		donationLeadTime: 24 * time.Hour,
		requestTTL:       7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries a recipient's submission.
type CreateParams struct {
	RecipientID string
	BloodType   domain.BloodType
	Units       int
	Urgency     domain.Urgency
	Location    *geo.Coordinate
}

// Create persists a new request, runs the match engine over the donor pool,
// and notifies every matched donor. An empty match list is not an error; the
// request stays pending until the pool changes or it expires.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.Create")
	defer span.End()

	if p.RecipientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "recipient is required")
	}
	if !p.BloodType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidRequest, "unknown blood type %q", p.BloodType)
	}
	if p.Units < 1 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "units must be at least 1")
	}
	if p.Location == nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "location is required")
	}
	if p.Urgency == "" {
		p.Urgency = domain.UrgencyNormal
	}
	if !p.Urgency.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidRequest, "unknown urgency %q", p.Urgency)
	}

	now := s.clk.Now()
	req := &domain.BloodRequest{
		ID:          uuid.NewString(),
		RecipientID: p.RecipientID,
		BloodType:   p.BloodType,
		Units:       p.Units,
		Urgency:     p.Urgency,
		Status:      domain.RequestPending,
		Location:    p.Location,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.requestTTL),
	}

	pool, err := s.directory.FindCandidates(ctx, domain.DonorTypesFor(p.BloodType), []string{p.RecipientID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "donor directory lookup failed")
	}

	entries, err := s.engine.Match(req, pool)
	if err != nil {
		return nil, err
	}
	req.MatchEntries = entries

	if err := s.store.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist request")
	}

	s.metrics.RequestsCreated.Inc()
	s.metrics.MatchedDonors.Observe(float64(len(entries)))
	s.logger.InfoContext(ctx, "blood request created",
		"request_id", req.ID,
		"blood_type", req.BloodType,
		"urgency", req.Urgency,
		"matched_donors", len(entries),
	)

	for _, entry := range entries {
		s.bus.Publish(notify.Event{
			Type:   notify.EventRequestCreated,
			Target: notify.ToUser(entry.DonorID),
			Payload: map[string]any{
				"request_id":  req.ID,
				"blood_type":  req.BloodType,
				"urgency":     req.Urgency,
				"units":       req.Units,
				"distance_km": entry.DistanceKm,
			},
		})
	}
	s.bus.Publish(notify.Event{
		Type:   notify.EventRequestCreated,
		Target: notify.ToOps(),
		Payload: map[string]any{
			"request_id":     req.ID,
			"blood_type":     req.BloodType,
			"urgency":        req.Urgency,
			"matched_donors": len(entries),
		},
	})
	return req, nil
}

// Respond applies a donor's accept or decline to their match entry. On
// accept it derives a scheduled donation and, for the first acceptance,
// flips the request to matched. Duplicate responses are rejected, not
// silently accepted: that surfaces client bugs.
func (s *Service) Respond(ctx context.Context, requestID, donorID string, decision Decision) (*domain.BloodRequest, *domain.Donation, error) {
	ctx, span := s.tracer.Start(ctx, "request.Respond")
	defer span.End()

	if decision != DecisionAccept && decision != DecisionDecline {
		return nil, nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown decision %q", decision)
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		req, err := s.load(ctx, requestID)
		if err != nil {
			return nil, nil, err
		}
		if req.Status.Terminal() {
			return nil, nil, dErrors.Newf(dErrors.CodeInvalidTransition,
				"request is already %s", req.Status)
		}

		entry := req.Entry(donorID)
		if entry == nil {
			return nil, nil, dErrors.New(dErrors.CodeNotMatched, "donor was not offered this request")
		}
		if entry.Status != domain.MatchPending {
			return nil, nil, dErrors.Newf(dErrors.CodeAlreadyResponded,
				"donor already responded: %s", entry.Status)
		}

		now := s.clk.Now()
		entry.RespondedAt = &now
		if decision == DecisionAccept {
			entry.Status = domain.MatchAccepted
			if req.Status == domain.RequestPending {
				if err := Transition(req, domain.RequestMatched); err != nil {
					return nil, nil, err
				}
				s.metrics.Transitions.WithLabelValues(string(domain.RequestMatched)).Inc()
			}
		} else {
			entry.Status = domain.MatchDeclined
		}

		if err := s.store.Save(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.SaveConflicts.Inc()
				continue
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist response")
		}

		s.metrics.DonorResponses.WithLabelValues(string(decision)).Inc()

		if decision == DecisionDecline {
			// No external notification for declines; the ops channel still
			// sees them for dashboard counts.
			s.bus.Publish(notify.Event{
				Type:    notify.EventRequestDeclined,
				Target:  notify.ToOps(),
				Payload: map[string]any{"request_id": req.ID, "donor_id": donorID},
			})
			return req, nil, nil
		}

		donation := &domain.Donation{
			ID:            uuid.NewString(),
			DonorID:       donorID,
			RequestID:     req.ID,
			ScheduledDate: now.Add(s.donationLeadTime),
			Status:        domain.DonationScheduled,
			Units:         1,
			CreatedAt:     now,
		}
		if err := s.donations.Create(ctx, donation); err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "create donation")
		}

		s.logger.InfoContext(ctx, "donor accepted blood request",
			"request_id", req.ID,
			"donor_id", donorID,
			"donation_id", donation.ID,
		)
		s.bus.Publish(notify.Event{
			Type:   notify.EventRequestAccepted,
			Target: notify.ToUserAndOps(req.RecipientID),
			Payload: map[string]any{
				"request_id":     req.ID,
				"donor_id":       donorID,
				"scheduled_date": donation.ScheduledDate,
			},
		})
		return req, donation, nil
	}

	return nil, nil, dErrors.New(dErrors.CodeConflict, "request was concurrently modified, retry")
}

// Cancel explicitly cancels a request. Only its recipient may cancel.
func (s *Service) Cancel(ctx context.Context, requestID, actorID string) (*domain.BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.Cancel")
	defer span.End()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		req, err := s.load(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if actorID != "" && req.RecipientID != actorID {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the recipient may cancel this request")
		}
		if err := Transition(req, domain.RequestCancelled); err != nil {
			return nil, err
		}

		if err := s.store.Save(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				s.metrics.SaveConflicts.Inc()
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist cancellation")
		}

		s.metrics.Transitions.WithLabelValues(string(domain.RequestCancelled)).Inc()
		s.publishCancelled(req, "cancelled")
		return req, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "request was concurrently modified, retry")
}

// HandleDeliveryUpdate applies a courier status change to the request
// lifecycle: an assigned delivery moves matched->in-delivery, a completed
// one moves in-delivery->fulfilled. Every change fans out to the recipient
// and the operational channel.
func (s *Service) HandleDeliveryUpdate(ctx context.Context, requestID string, status domain.DeliveryStatus) (*domain.BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "request.HandleDeliveryUpdate")
	defer span.End()

	if !status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown delivery status %q", status)
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		req, err := s.load(ctx, requestID)
		if err != nil {
			return nil, err
		}

		var target domain.RequestStatus
		switch status {
		case domain.DeliveryAssigned:
			target = domain.RequestInDelivery
		case domain.DeliveryDelivered:
			target = domain.RequestFulfilled
		}

		if target != "" {
			if err := Transition(req, target); err != nil {
				return nil, err
			}
			if err := s.store.Save(ctx, req); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					s.metrics.SaveConflicts.Inc()
					continue
				}
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist delivery transition")
			}
			s.metrics.Transitions.WithLabelValues(string(target)).Inc()
		}

		s.bus.Publish(notify.Event{
			Type:   notify.EventDeliveryStatusChanged,
			Target: notify.ToUserAndOps(req.RecipientID),
			Payload: map[string]any{
				"request_id":      req.ID,
				"delivery_status": status,
				"request_status":  req.Status,
			},
		})
		return req, nil
	}
	return nil, dErrors.New(dErrors.CodeConflict, "request was concurrently modified, retry")
}

// Get returns one request, applying the lazy expiry check.
func (s *Service) Get(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	return s.load(ctx, requestID)
}

// List returns requests matching the filter. Listing does not apply lazy
// expiry; the sweep handles stale rows in bulk.
func (s *Service) List(ctx context.Context, filter domain.RequestFilter) ([]*domain.BloodRequest, error) {
	reqs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list requests")
	}
	return reqs, nil
}

// SweepExpired cancels every request past its expiry. Run periodically; the
// lazy check in load covers reads between sweeps.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx, s.clk.Now(), 100)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expired requests")
	}

	swept := 0
	for _, req := range expired {
		if err := s.expire(ctx, req); err != nil {
			// Conflicts mean someone else advanced the request; skip it.
			if !dErrors.HasCode(err, dErrors.CodeConflict) {
				s.logger.WarnContext(ctx, "failed to expire request",
					"request_id", req.ID,
					"error", err,
				)
			}
			continue
		}
		swept++
	}
	return swept, nil
}

// Run executes the expiry sweep on the given interval until ctx is
// cancelled. Wired into the errgroup in main.
func (s *Service) Run(ctx context.Context, sweepInterval time.Duration) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}

// load fetches a request and lazily applies natural expiry: an expired
// request is cancelled on first touch rather than by a live timer.
func (s *Service) load(ctx context.Context, requestID string) (*domain.BloodRequest, error) {
	req, err := s.store.Load(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "blood request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load request")
	}
	if req.Expired(s.clk.Now()) {
		if err := s.expire(ctx, req); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, err
		}
		// On conflict another writer already observed the expiry; reload to
		// return the settled state.
		if req.Status != domain.RequestCancelled {
			return s.store.Load(ctx, requestID)
		}
	}
	return req, nil
}

func (s *Service) expire(ctx context.Context, req *domain.BloodRequest) error {
	if err := Transition(req, domain.RequestCancelled); err != nil {
		return err
	}
	if err := s.store.Save(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "request was concurrently modified")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "persist expiry")
	}
	s.metrics.RequestsExpired.Inc()
	s.metrics.Transitions.WithLabelValues(string(domain.RequestCancelled)).Inc()
	s.publishCancelled(req, "expired")
	return nil
}

// publishCancelled informs the recipient, every donor still pending, and the
// ops channel that the request is closed.
func (s *Service) publishCancelled(req *domain.BloodRequest, reason string) {
	targets := []string{req.RecipientID}
	for _, entry := range req.MatchEntries {
		if entry.Status == domain.MatchPending {
			targets = append(targets, entry.DonorID)
		}
	}
	s.bus.Publish(notify.Event{
		Type:   notify.EventRequestCancelled,
		Target: notify.Target{UserIDs: targets, Ops: true},
		Payload: map[string]any{
			"request_id": req.ID,
			"reason":     reason,
		},
	})
}
