package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/llm"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
	"github.com/otherjamesbrown/meetflow/pkg/store"
	"github.com/otherjamesbrown/meetflow/pkg/workers"
)

// Pipeline step names, used in metrics, traces, and error categorization.
const (
	StepFetch     = "fetch"
	StepParse     = "parse"
	StepResolve   = "resolve_speakers"
	StepSummarize = "summarize"
	StepPersist   = "persist"
)

const summarizerSystemPrompt = `You are an expert summarizer. You write readable, concise, simple content. You are given a transcript of a meeting and you need to summarize it.

Use the following markdown structure:

### Overview
Provide a detailed, engaging summary of the session's content. Focus on major features, user workflows, and any key takeaways. Write in a narrative style, using full sentences. Highlight unique or powerful aspects of the product, platform, or discussion.

### Notes
Break down key content into thematic sections with timestamp ranges. Each section should summarize key points, actions, or demos in bullet format.`

const fetchTimeout = time.Minute

// Processor runs the transcript pipeline for one queue message at a time.
// It is the worker pool's message handler.
type Processor struct {
	store      store.Store
	provider   llm.Provider
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     logging.Logger
	tracer     trace.Tracer
}

// NewProcessor creates a pipeline processor.
func NewProcessor(st store.Store, provider llm.Provider, m *metrics.Metrics, logger logging.Logger) *Processor {
	return &Processor{
		store:      st,
		provider:   provider,
		httpClient: &http.Client{Timeout: fetchTimeout},
		metrics:    m,
		logger:     logger.With(logging.F("component", "pipeline")),
		tracer:     otel.Tracer("meetflow/pipeline"),
	}
}

// Handler adapts the processor to the worker pool.
func (p *Processor) Handler() workers.MessageHandler {
	return p.Process
}

// Process runs the full pipeline for a queued transcript job. Errors carry
// a retry category; the worker decides between backoff and dead letter.
func (p *Processor) Process(ctx context.Context, msg queues.Message) error {
	job, ok := msg.(*queues.ProcessingMessage)
	if !ok {
		return queues.NewPermanentError("dispatch", fmt.Sprintf("unexpected message type %s", msg.GetMessageType()), nil)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(attribute.String("meeting.id", job.MeetingID)))
	defer span.End()

	logger := p.logger.With(logging.F("meeting_id", job.MeetingID))

	meeting, err := p.store.GetMeeting(ctx, job.MeetingID)
	if err != nil {
		if mferrors.IsNotFound(err) {
			return queues.NewPermanentError(StepFetch, "meeting no longer exists", err)
		}
		return queues.NewTransientError(StepFetch, "failed to load meeting", err)
	}

	// A redelivery after a completed run must not overwrite the summary.
	if meeting.Status == store.StatusCompleted {
		logger.Info("meeting already completed, skipping")
		return nil
	}

	transcriptURL := job.TranscriptURL
	if transcriptURL == "" && meeting.TranscriptURL != nil {
		transcriptURL = *meeting.TranscriptURL
	}
	if transcriptURL == "" {
		return queues.NewPermanentError(StepFetch, "no transcript URL recorded", nil)
	}

	var raw []byte
	if err := p.step(ctx, StepFetch, func(ctx context.Context) error {
		raw, err = p.fetch(ctx, transcriptURL)
		return err
	}); err != nil {
		return err
	}

	var items []TranscriptItem
	if err := p.step(ctx, StepParse, func(ctx context.Context) error {
		parsed, parseErr := ParseTranscript(strings.NewReader(string(raw)))
		if parseErr != nil {
			return queues.NewPermanentError(StepParse, "transcript is malformed", parseErr)
		}
		items = parsed
		return nil
	}); err != nil {
		return err
	}

	var enriched []EnrichedItem
	if err := p.step(ctx, StepResolve, func(ctx context.Context) error {
		names, lookupErr := p.store.LookupSpeakers(ctx, SpeakerIDs(items))
		if lookupErr != nil {
			return queues.NewTransientError(StepResolve, "speaker lookup failed", lookupErr)
		}
		enriched = Enrich(items, names)
		return nil
	}); err != nil {
		return err
	}

	var summary string
	if err := p.step(ctx, StepSummarize, func(ctx context.Context) error {
		s, sumErr := p.summarize(ctx, enriched)
		if sumErr != nil {
			return sumErr
		}
		summary = s
		return nil
	}); err != nil {
		return err
	}

	if err := p.step(ctx, StepPersist, func(ctx context.Context) error {
		return p.persist(ctx, job.MeetingID, summary)
	}); err != nil {
		return err
	}

	logger.Info("transcript pipeline completed",
		logging.F("utterances", len(items)),
		logging.F("summary_bytes", len(summary)))
	return nil
}

// step wraps a pipeline step with a trace span, a latency observation, and
// a categorized failure counter.
func (p *Processor) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	p.metrics.PipelineStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		category := string(queues.ErrorCategoryTransient)
		if procErr, ok := err.(*queues.ProcessingError); ok {
			category = string(procErr.Category)
		}
		p.metrics.PipelineStepFailures.WithLabelValues(name, category).Inc()
	}
	return err
}

// fetch downloads the raw transcript. Server-side failures are retried;
// client-side rejections are not, a 404 today will be a 404 tomorrow.
func (p *Processor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, queues.NewPermanentError(StepFetch, "invalid transcript URL", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, queues.NewTransientError(StepFetch, "transcript download failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, queues.NewTransientError(StepFetch, fmt.Sprintf("transcript host returned HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, queues.NewPermanentError(StepFetch, fmt.Sprintf("transcript host returned HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, queues.NewTransientError(StepFetch, "failed to read transcript body", err)
	}
	return body, nil
}

// summarize sends the enriched transcript to the model and validates that a
// usable summary came back.
func (p *Processor) summarize(ctx context.Context, items []EnrichedItem) (string, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return "", queues.NewPermanentError(StepSummarize, "failed to encode transcript", err)
	}

	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarizerSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Summarize the following transcript: " + string(payload)},
		},
	})
	if err != nil {
		if llmErr, ok := err.(*llm.LLMError); ok && !llmErr.IsTransient() {
			return "", queues.NewPermanentError(StepSummarize, "completion rejected", err)
		}
		return "", queues.NewTransientError(StepSummarize, "completion failed", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", queues.NewPermanentError(StepSummarize, "model returned an empty summary", mferrors.ErrEmptyCompletion)
	}
	return summary, nil
}

// persist writes the summary and the completed status in one guarded
// update. A meeting that is no longer in processing means another run won
// the race or the meeting was cancelled; neither is an error.
func (p *Processor) persist(ctx context.Context, meetingID, summary string) error {
	completed, err := p.store.CompleteMeeting(ctx, meetingID, summary)
	if err != nil {
		return queues.NewTransientError(StepPersist, "failed to persist summary", err)
	}
	if completed {
		return nil
	}

	meeting, err := p.store.GetMeeting(ctx, meetingID)
	if err != nil {
		if mferrors.IsNotFound(err) {
			return queues.NewPermanentError(StepPersist, "meeting row disappeared", err)
		}
		return queues.NewTransientError(StepPersist, "failed to load meeting", err)
	}

	p.logger.Warn("summary not persisted, meeting left processing state",
		logging.F("meeting_id", meetingID),
		logging.F("status", string(meeting.Status)))
	return nil
}
