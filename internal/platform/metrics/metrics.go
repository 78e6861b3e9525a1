// Package metrics registers the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsCreated prometheus.Counter
	MatchedDonors   prometheus.Histogram
	DonorResponses  *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	SaveConflicts   prometheus.Counter
	RequestsExpired prometheus.Counter
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	SinkFailures    prometheus.Counter
	HandlerLatency  *prometheus.HistogramVec
}

// New creates and registers all metrics with reg. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry to avoid
// duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_blood_requests_created_total",
			Help: "Total number of blood requests created.",
		}),
		MatchedDonors: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifeline_matched_donors_per_request",
			Help:    "Number of donors matched per created request.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		DonorResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_donor_responses_total",
			Help: "Donor responses processed, labelled by decision.",
		}, []string{"decision"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_request_transitions_total",
			Help: "Request lifecycle transitions, labelled by target status.",
		}, []string{"to"}),
		SaveConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_request_save_conflicts_total",
			Help: "Optimistic-concurrency conflicts detected at save time.",
		}),
		RequestsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_blood_requests_expired_total",
			Help: "Requests cancelled by expiry (lazy check or sweep).",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_notify_events_published_total",
			Help: "Notification events published, labelled by event type.",
		}, []string{"type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_notify_events_dropped_total",
			Help: "Notification events dropped because a subscriber channel or the sink queue was full.",
		}),
		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_notify_sink_failures_total",
			Help: "Failed deliveries to the external notification sink.",
		}),
		HandlerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeline_http_request_duration_seconds",
			Help:    "HTTP handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
