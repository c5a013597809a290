package webhook

import (
	"context"
	"fmt"
	"time"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/platform"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
	"github.com/otherjamesbrown/meetflow/pkg/store"
)

// Enqueuer is the narrow queue capability the webhook side needs: enqueue
// and return. Pipeline execution happens elsewhere.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg queues.Message) error
}

// Responder answers follow-up chat messages about a completed meeting.
type Responder interface {
	Respond(ctx context.Context, authorID, channelID, text string) error
}

// Handlers applies webhook events to the meeting state machine. All status
// changes go through the store's guarded conditional updates; a failed
// guard is expected out-of-order or duplicate traffic and is treated as a
// benign no-op, never an error.
type Handlers struct {
	store     store.Store
	video     platform.Video
	enqueuer  Enqueuer
	responder Responder
	logger    logging.Logger
}

// NewHandlers creates the webhook event handlers.
func NewHandlers(st store.Store, video platform.Video, enqueuer Enqueuer, responder Responder, logger logging.Logger) *Handlers {
	return &Handlers{
		store:     st,
		video:     video,
		enqueuer:  enqueuer,
		responder: responder,
		logger:    logger.With(logging.F("component", "webhook_handlers")),
	}
}

// HandleSessionStarted transitions upcoming -> active and connects the
// meeting's agent to the live call. A delivery for an already-active
// meeting is a no-op that leaves started_at untouched.
func (h *Handlers) HandleSessionStarted(ctx context.Context, ev *SessionStartedEvent) error {
	meetingID := ev.Call.Custom.MeetingID
	if meetingID == "" {
		return fmt.Errorf("missing meeting id in event: %w", mferrors.ErrValidation)
	}

	// Load first for the agent reference; the transition itself is still
	// guarded, so the read is not a correctness dependency.
	meeting, err := h.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}

	started, err := h.store.StartMeeting(ctx, meetingID, time.Now())
	if err != nil {
		return err
	}
	if !started {
		h.logger.Debug("session_started ignored, meeting not upcoming",
			logging.F("meeting_id", meetingID),
			logging.F("status", string(meeting.Status)))
		return errNoop
	}

	agent, err := h.store.GetAgent(ctx, meeting.AgentID)
	if err != nil {
		return err
	}

	if err := h.video.ConnectAssistant(ctx, meetingID, agent.ID, agent.Instructions); err != nil {
		return fmt.Errorf("failed to connect assistant to call %s: %w", meetingID, err)
	}

	h.logger.Info("meeting started",
		logging.F("meeting_id", meetingID),
		logging.F("agent_id", agent.ID))
	return nil
}

// HandleSessionEnded transitions active -> processing. An event for a
// meeting that never started (still upcoming) is a no-op.
func (h *Handlers) HandleSessionEnded(ctx context.Context, ev *SessionEndedEvent) error {
	meetingID := ev.Call.Custom.MeetingID
	if meetingID == "" {
		return fmt.Errorf("missing meeting id in event: %w", mferrors.ErrValidation)
	}

	finished, err := h.store.FinishMeeting(ctx, meetingID, time.Now())
	if err != nil {
		return err
	}
	if !finished {
		// Distinguish a benign status mismatch from a missing row; the
		// latter is a data-integrity signal.
		if _, err := h.store.GetMeeting(ctx, meetingID); err != nil {
			return err
		}
		h.logger.Debug("session_ended ignored, meeting not active",
			logging.F("meeting_id", meetingID))
		return errNoop
	}

	h.logger.Info("meeting ended", logging.F("meeting_id", meetingID))
	return nil
}

// HandleParticipantLeft forwards a terminate-session command to the video
// platform. Not a status transition.
func (h *Handlers) HandleParticipantLeft(ctx context.Context, ev *ParticipantLeftEvent) error {
	meetingID := platform.ParseCallCID(ev.CallCID)
	if meetingID == "" {
		return fmt.Errorf("missing meeting id in call cid %q: %w", ev.CallCID, mferrors.ErrValidation)
	}

	if err := h.video.EndCall(ctx, meetingID); err != nil {
		return fmt.Errorf("failed to end call %s: %w", meetingID, err)
	}
	return nil
}

// HandleTranscriptionReady records the transcript location and enqueues
// exactly one pipeline job for this delivery, regardless of current status.
func (h *Handlers) HandleTranscriptionReady(ctx context.Context, ev *TranscriptionReadyEvent) error {
	meetingID := platform.ParseCallCID(ev.CallCID)
	if meetingID == "" {
		return fmt.Errorf("missing meeting id in call cid %q: %w", ev.CallCID, mferrors.ErrValidation)
	}

	ok, err := h.store.SetTranscriptURL(ctx, meetingID, ev.CallTranscription.URL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("meeting %s: %w", meetingID, mferrors.ErrNotFound)
	}

	msg := &queues.ProcessingMessage{
		MeetingID:     meetingID,
		TranscriptURL: ev.CallTranscription.URL,
		EnqueuedAt:    time.Now(),
	}
	if err := h.enqueuer.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue pipeline job for meeting %s: %w", meetingID, err)
	}

	h.logger.Info("transcript pipeline job enqueued",
		logging.F("meeting_id", meetingID),
		logging.F("transcript_url", ev.CallTranscription.URL))
	return nil
}

// HandleRecordingReady records the recording location for any status.
func (h *Handlers) HandleRecordingReady(ctx context.Context, ev *RecordingReadyEvent) error {
	meetingID := platform.ParseCallCID(ev.CallCID)
	if meetingID == "" {
		return fmt.Errorf("missing meeting id in call cid %q: %w", ev.CallCID, mferrors.ErrValidation)
	}

	ok, err := h.store.SetRecordingURL(ctx, meetingID, ev.CallRecording.URL)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("meeting %s: %w", meetingID, mferrors.ErrNotFound)
	}
	return nil
}

// HandleMessageNew delegates to the conversational responder.
func (h *Handlers) HandleMessageNew(ctx context.Context, ev *MessageNewEvent) error {
	if ev.User.ID == "" || ev.ChannelID == "" || ev.Message.Text == "" {
		return fmt.Errorf("missing required message fields: %w", mferrors.ErrValidation)
	}
	return h.responder.Respond(ctx, ev.User.ID, ev.ChannelID, ev.Message.Text)
}
