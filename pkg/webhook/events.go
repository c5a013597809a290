// Package webhook implements the inbound webhook surface: signature
// verification, event envelope decoding, routing, and the meeting state
// machine handlers.
package webhook

import (
	"encoding/json"
	"fmt"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
)

// Event type discriminators sent by the platform.
const (
	TypeSessionStarted     = "call.session_started"
	TypeSessionEnded       = "call.session_ended"
	TypeParticipantLeft    = "call.session_participant_left"
	TypeTranscriptionReady = "call.transcription_ready"
	TypeRecordingReady     = "call.recording_ready"
	TypeMessageNew         = "message.new"
)

// Event is the decoded webhook payload. Concrete types form a closed union
// keyed by the envelope's type field; the router dispatches with an
// exhaustive type switch.
type Event interface {
	// EventType returns the wire discriminator.
	EventType() string
}

// CallCustom carries application data attached to a call at creation time.
type CallCustom struct {
	MeetingID string `json:"meetingId"`
}

// CallInfo is the call object embedded in session events.
type CallInfo struct {
	Custom CallCustom `json:"custom"`
}

// SessionStartedEvent signals the first participant joined the call.
type SessionStartedEvent struct {
	Call CallInfo `json:"call"`
}

func (e *SessionStartedEvent) EventType() string { return TypeSessionStarted }

// SessionEndedEvent signals the call session ended.
type SessionEndedEvent struct {
	Call CallInfo `json:"call"`
}

func (e *SessionEndedEvent) EventType() string { return TypeSessionEnded }

// ParticipantLeftEvent signals a participant left the session.
type ParticipantLeftEvent struct {
	CallCID string `json:"call_cid"`
}

func (e *ParticipantLeftEvent) EventType() string { return TypeParticipantLeft }

// TranscriptionReadyEvent signals the transcript artifact is available.
type TranscriptionReadyEvent struct {
	CallCID           string `json:"call_cid"`
	CallTranscription struct {
		URL string `json:"url"`
	} `json:"call_transcription"`
}

func (e *TranscriptionReadyEvent) EventType() string { return TypeTranscriptionReady }

// RecordingReadyEvent signals the recording artifact is available.
type RecordingReadyEvent struct {
	CallCID       string `json:"call_cid"`
	CallRecording struct {
		URL string `json:"url"`
	} `json:"call_recording"`
}

func (e *RecordingReadyEvent) EventType() string { return TypeRecordingReady }

// MessageNewEvent signals a new chat message on a meeting channel.
type MessageNewEvent struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	ChannelID string `json:"channel_id"`
	Message   struct {
		Text string `json:"text"`
	} `json:"message"`
}

func (e *MessageNewEvent) EventType() string { return TypeMessageNew }

// UnknownEvent is any event type this service does not handle. The platform
// sends more types than we care about; these are acknowledged as no-ops,
// never errors.
type UnknownEvent struct {
	Type string
}

func (e *UnknownEvent) EventType() string { return e.Type }

// envelope is the minimal shape needed to discriminate the payload.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses a raw webhook body into its concrete event type. A body
// that is not JSON, or has no type discriminator, is a validation error;
// an unrecognized discriminator decodes to UnknownEvent.
func Decode(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", mferrors.ErrValidation)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("missing event type: %w", mferrors.ErrValidation)
	}

	var event Event
	switch env.Type {
	case TypeSessionStarted:
		event = &SessionStartedEvent{}
	case TypeSessionEnded:
		event = &SessionEndedEvent{}
	case TypeParticipantLeft:
		event = &ParticipantLeftEvent{}
	case TypeTranscriptionReady:
		event = &TranscriptionReadyEvent{}
	case TypeRecordingReady:
		event = &RecordingReadyEvent{}
	case TypeMessageNew:
		event = &MessageNewEvent{}
	default:
		return &UnknownEvent{Type: env.Type}, nil
	}

	if err := json.Unmarshal(body, event); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", env.Type, mferrors.ErrValidation)
	}
	return event, nil
}
