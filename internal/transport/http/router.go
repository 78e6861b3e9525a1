// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// the domain services, and encode; business rules stay out of this package.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifeline/internal/directory"
	"lifeline/internal/domain"
	"lifeline/internal/donation"
	"lifeline/internal/notify"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/platform/middleware"
	"lifeline/internal/request"
	"lifeline/pkg/geo"
)

// RequestService is the request-lifecycle surface the transport needs.
type RequestService interface {
	Create(ctx context.Context, p request.CreateParams) (*domain.BloodRequest, error)
	Respond(ctx context.Context, requestID, donorID string, decision request.Decision) (*domain.BloodRequest, *domain.Donation, error)
	Cancel(ctx context.Context, requestID, actorID string) (*domain.BloodRequest, error)
	HandleDeliveryUpdate(ctx context.Context, requestID string, status domain.DeliveryStatus) (*domain.BloodRequest, error)
	Get(ctx context.Context, requestID string) (*domain.BloodRequest, error)
	List(ctx context.Context, filter domain.RequestFilter) ([]*domain.BloodRequest, error)
}

// DonationService is the donation surface the transport needs.
type DonationService interface {
	Schedule(ctx context.Context, p donation.ScheduleParams) (*domain.Donation, error)
	History(ctx context.Context, donorID string) ([]*domain.Donation, error)
}

// DirectoryService is the donor-directory surface the transport needs.
type DirectoryService interface {
	Upsert(p directory.Profile) error
	UpdateLocation(ctx context.Context, donorID string, coord geo.Coordinate) error
	Nearby(ctx context.Context, bloodType domain.BloodType, origin geo.Coordinate, radiusKm float64) ([]directory.NearbyDonor, error)
}

// EventSource hands out live notification channels for the SSE endpoint.
type EventSource interface {
	Subscribe(userID string) (<-chan notify.Event, func())
	SubscribeOps() (<-chan notify.Event, func())
}

// Presence lets the SSE endpoint mark connected donors online.
type Presence interface {
	MarkOnline(ctx context.Context, userID string, ttl time.Duration) error
	MarkOffline(ctx context.Context, userID string) error
}

// Handler wires all endpoints over the domain services.
type Handler struct {
	requests     RequestService
	donations    DonationService
	directory    DirectoryService
	events       EventSource
	presence     Presence
	logger       *slog.Logger
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	jwtValidator middleware.JWTValidator
}

func NewHandler(
	requests RequestService,
	donations DonationService,
	dir DirectoryService,
	events EventSource,
	presence Presence,
	logger *slog.Logger,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	jwtValidator middleware.JWTValidator,
) *Handler {
	return &Handler{
		requests:     requests,
		donations:    donations,
		directory:    dir,
		events:       events,
		presence:     presence,
		logger:       logger,
		metrics:      m,
		gatherer:     gatherer,
		jwtValidator: jwtValidator,
	}
}

// Router builds the full route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Latency(h.metrics))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)

		r.Route("/blood", func(r chi.Router) {
			r.Post("/requests", h.handleCreateRequest)
			r.Get("/requests", h.handleListRequests)
			r.Get("/requests/{id}", h.handleGetRequest)
			r.Post("/requests/{id}/respond", h.handleRespond)
			r.Post("/requests/{id}/cancel", h.handleCancelRequest)

			r.Post("/donors", h.handleUpsertDonor)
			r.Put("/donors/location", h.handleUpdateLocation)
			r.Get("/donors/nearby", h.handleNearbyDonors)

			r.Post("/donations", h.handleScheduleDonation)
			r.Get("/donations", h.handleDonationHistory)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Post("/{requestID}", h.handleAssignDelivery)
			r.Patch("/{requestID}/status", h.handleDeliveryStatus)
		})
	})

	// The SSE stream sits outside the JSON/timeout group: it holds the
	// connection open and writes text/event-stream.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/events", h.handleEvents)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
