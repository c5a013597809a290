// Package metrics provides Prometheus instrumentation for the webhook
// surface and the transcript pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors for the meetflow service.
type Metrics struct {
	// WebhookEvents counts inbound webhook deliveries by event type and
	// outcome (applied, noop, rejected, not_found, error).
	WebhookEvents *prometheus.CounterVec

	// PipelineStepDuration observes per-step latency.
	PipelineStepDuration *prometheus.HistogramVec

	// PipelineStepFailures counts step failures by step and category.
	PipelineStepFailures *prometheus.CounterVec

	// PipelineJobsDead reports the dead letter queue depth. A non-zero
	// value means meetings are stuck in processing.
	PipelineJobsDead prometheus.Gauge

	// QueueDepth reports the pending transcript queue depth.
	QueueDepth prometheus.Gauge

	// ResponderReplies counts responder outcomes (sent, skipped_self, failed).
	ResponderReplies *prometheus.CounterVec
}

// Outcome labels for WebhookEvents.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// New creates the meetflow collectors and registers them with the given
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meetflow",
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Inbound webhook deliveries by event type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		PipelineStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "meetflow",
				Subsystem: "pipeline",
				Name:      "step_duration_seconds",
				Help:      "Transcript pipeline step latency",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"step"},
		),
		PipelineStepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meetflow",
				Subsystem: "pipeline",
				Name:      "step_failures_total",
				Help:      "Transcript pipeline step failures by category",
			},
			[]string{"step", "category"},
		),
		PipelineJobsDead: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "meetflow",
				Subsystem: "pipeline",
				Name:      "jobs_dead",
				Help:      "Pipeline jobs sitting in the dead letter queue",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "meetflow",
				Subsystem: "pipeline",
				Name:      "queue_depth",
				Help:      "Pending transcript pipeline jobs",
			},
		),
		ResponderReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meetflow",
				Subsystem: "responder",
				Name:      "replies_total",
				Help:      "Conversational responder outcomes",
			},
			[]string{"outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.WebhookEvents,
			m.PipelineStepDuration,
			m.PipelineStepFailures,
			m.PipelineJobsDead,
			m.QueueDepth,
			m.ResponderReplies,
		)
	}
	return m
}

// NewUnregistered creates collectors without registering them, for tests.
func NewUnregistered() *Metrics {
	return New(nil)
}
