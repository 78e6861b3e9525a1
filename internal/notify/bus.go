package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifeline/internal/platform/circuit"
	"lifeline/internal/platform/metrics"
	"lifeline/pkg/clock"
)

// Sink is an external destination for events (e.g. a Kafka topic feeding the
// operational dashboard). Sends happen on a background worker, never on the
// publishing caller's path.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Close()
}

const sinkSendTimeout = 5 * time.Second

// Bus is the Publisher implementation: it delivers events to in-process hub
// subscribers synchronously (non-blocking) and queues them for the external
// sink. Sink outages trip a circuit breaker and events are dropped, never
// retried; failures are invisible to the mutating caller.
type Bus struct {
	hub     *Hub
	sink    Sink
	queue   chan Event
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
}

// Option configures a Bus.
type Option func(*Bus)

// WithSink attaches an external sink.
func WithSink(sink Sink) Option {
	return func(b *Bus) { b.sink = sink }
}

// WithClock injects a time source for OccurredAt stamps.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) { b.clock = c }
}

// WithQueueSize overrides the sink queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan Event, n)
		}
	}
}

// NewBus creates a bus over the given hub.
func NewBus(hub *Hub, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Bus {
	b := &Bus{
		hub:     hub,
		queue:   make(chan Event, 256),
		breaker: circuit.NewBreaker(5, 30*time.Second),
		logger:  logger,
		metrics: m,
		clock:   clock.Real{},
	}
	hub.SetDropHandler(m.EventsDropped.Inc)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish stamps and fans out the event. It never blocks and never fails.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock.Now()
	}

	b.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	b.hub.Deliver(event)

	if b.sink == nil {
		return
	}
	select {
	case b.queue <- event:
	default:
		b.metrics.EventsDropped.Inc()
		b.logger.Warn("sink queue full, dropping event",
			"event_type", event.Type,
			"event_id", event.ID,
		)
	}
}

// Run drains the sink queue until ctx is cancelled. Call from an errgroup in
// main when a sink is configured.
func (b *Bus) Run(ctx context.Context) error {
	if b.sink == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-b.queue:
			b.forward(ctx, event)
		}
	}
}

func (b *Bus) forward(ctx context.Context, event Event) {
	if !b.breaker.Allow() {
		b.metrics.EventsDropped.Inc()
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, sinkSendTimeout)
	defer cancel()
	if err := b.sink.Send(sendCtx, event); err != nil {
		b.breaker.RecordFailure()
		b.metrics.SinkFailures.Inc()
		b.logger.Warn("sink send failed",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err,
		)
		return
	}
	b.breaker.RecordSuccess()
}
