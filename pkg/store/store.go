package store

import (
	"context"
	"time"
)

// Store is the narrow mutation and read contract the webhook handlers and
// transcript pipeline operate through. Guarded operations return false (with
// a nil error) when the status precondition did not hold or the row is
// absent; callers distinguish the two by loading the row when it matters.
type Store interface {
	// GetMeeting loads a meeting by id. Returns errors.ErrNotFound if absent.
	GetMeeting(ctx context.Context, id string) (*Meeting, error)

	// GetAgent loads an agent by id. Returns errors.ErrNotFound if absent.
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// StartMeeting transitions upcoming -> active, setting started_at and
	// clearing ended_at. Returns false if the meeting was not upcoming.
	StartMeeting(ctx context.Context, id string, now time.Time) (bool, error)

	// FinishMeeting transitions active -> processing, setting ended_at.
	// Returns false if the meeting was not active.
	FinishMeeting(ctx context.Context, id string, now time.Time) (bool, error)

	// SetTranscriptURL records the transcript artifact location regardless
	// of status. Returns false if the meeting row does not exist.
	SetTranscriptURL(ctx context.Context, id, url string) (bool, error)

	// SetRecordingURL records the recording artifact location regardless
	// of status. Returns false if the meeting row does not exist.
	SetRecordingURL(ctx context.Context, id, url string) (bool, error)

	// CompleteMeeting writes the summary and transitions
	// processing -> completed in one atomic statement. Returns false if the
	// meeting was not processing.
	CompleteMeeting(ctx context.Context, id, summary string) (bool, error)

	// LookupSpeakers resolves speaker ids to display names across both
	// users and agents. Ids with no match are absent from the result.
	LookupSpeakers(ctx context.Context, ids []string) (map[string]string, error)
}
