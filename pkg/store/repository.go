package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mferrors "github.com/otherjamesbrown/meetflow/pkg/errors"
	"github.com/otherjamesbrown/meetflow/pkg/logging"
)

// Repository implements Store against PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new meeting repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "meeting_repository")),
	}
}

const meetingColumns = `id, user_id, agent_id, name, status, started_at, ended_at,
	transcript_url, recording_url, summary, created_at, updated_at`

// GetMeeting loads a meeting by id.
func (r *Repository) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	var m Meeting
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.UserID, &m.AgentID, &m.Name, &m.Status,
		&m.StartedAt, &m.EndedAt,
		&m.TranscriptURL, &m.RecordingURL, &m.Summary,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("meeting %s: %w", id, mferrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meeting %s: %w", id, err)
	}
	return &m, nil
}

// GetAgent loads an agent by id.
func (r *Repository) GetAgent(ctx context.Context, id string) (*Agent, error) {
	query := `SELECT id, user_id, name, instructions, created_at, updated_at
		FROM agents WHERE id = $1`

	var a Agent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Instructions, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, mferrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	return &a, nil
}

// StartMeeting transitions upcoming -> active. The status guard in the WHERE
// clause is the sole synchronization primitive: of two concurrent deliveries
// exactly one sees a row affected, and a replay against an already-active
// meeting leaves started_at untouched.
func (r *Repository) StartMeeting(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET status = $1, started_at = $2, ended_at = NULL, updated_at = now()
		WHERE id = $3 AND status = $4`,
		StatusActive, now, id, StatusUpcoming,
	)
	if err != nil {
		return false, fmt.Errorf("failed to start meeting %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// FinishMeeting transitions active -> processing.
func (r *Repository) FinishMeeting(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET status = $1, ended_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		StatusProcessing, now, id, StatusActive,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish meeting %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetTranscriptURL records the transcript location for any status.
func (r *Repository) SetTranscriptURL(ctx context.Context, id, url string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET transcript_url = $1, updated_at = now() WHERE id = $2`,
		url, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set transcript url for meeting %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetRecordingURL records the recording location for any status.
func (r *Repository) SetRecordingURL(ctx context.Context, id, url string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings SET recording_url = $1, updated_at = now() WHERE id = $2`,
		url, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set recording url for meeting %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteMeeting writes the summary and the completed status in one
// statement, guarded on processing. The summary can therefore never exist
// without the completed status, and vice versa.
func (r *Repository) CompleteMeeting(ctx context.Context, id, summary string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE meetings
		SET status = $1, summary = $2, updated_at = now()
		WHERE id = $3 AND status = $4`,
		StatusCompleted, summary, id, StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete meeting %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// LookupSpeakers resolves speaker ids against users first, then agents.
func (r *Repository) LookupSpeakers(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user speakers: %w", err)
	}
	if err := scanNames(rows, names); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT id, name FROM agents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up agent speakers: %w", err)
	}
	if err := scanNames(rows, names); err != nil {
		return nil, err
	}

	return names, nil
}

func scanNames(rows pgx.Rows, names map[string]string) error {
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan speaker row: %w", err)
		}
		names[id] = name
	}
	return rows.Err()
}

// Verify interface compliance
var _ Store = (*Repository)(nil)
