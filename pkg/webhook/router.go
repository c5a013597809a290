package webhook

import (
	"context"
	"errors"
	"fmt"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
)

// errNoop marks a delivery whose precondition did not hold. It never
// escapes Dispatch; callers see success, metrics see a noop.
var errNoop = errors.New("precondition not met")

// Router dispatches decoded events to their handlers and records a
// per-event outcome metric.
type Router struct {
	handlers *Handlers
	metrics  *metrics.Metrics
}

// NewRouter creates an event router.
func NewRouter(handlers *Handlers, m *metrics.Metrics) *Router {
	return &Router{handlers: handlers, metrics: m}
}

// Dispatch routes an event to its handler. Unrecognized event types are
// acknowledged without side effects.
func (r *Router) Dispatch(ctx context.Context, ev Event) error {
	var err error
	switch e := ev.(type) {
	case *SessionStartedEvent:
		err = r.handlers.HandleSessionStarted(ctx, e)
	case *SessionEndedEvent:
		err = r.handlers.HandleSessionEnded(ctx, e)
	case *ParticipantLeftEvent:
		err = r.handlers.HandleParticipantLeft(ctx, e)
	case *TranscriptionReadyEvent:
		err = r.handlers.HandleTranscriptionReady(ctx, e)
	case *RecordingReadyEvent:
		err = r.handlers.HandleRecordingReady(ctx, e)
	case *MessageNewEvent:
		err = r.handlers.HandleMessageNew(ctx, e)
	case *UnknownEvent:
		r.metrics.WebhookEvents.WithLabelValues(e.Type, metrics.OutcomeNoop).Inc()
		return nil
	default:
		err = fmt.Errorf("unhandled event type %s: %w", ev.EventType(), mferrors.ErrValidation)
	}

	r.metrics.WebhookEvents.WithLabelValues(ev.EventType(), outcomeFor(err)).Inc()

	if errors.Is(err, errNoop) {
		return nil
	}
	return err
}

// outcomeFor maps a handler result to a metric outcome label.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case errors.Is(err, errNoop):
		return metrics.OutcomeNoop
	case errors.Is(err, mferrors.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, mferrors.ErrValidation), errors.Is(err, mferrors.ErrUnauthenticated):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
