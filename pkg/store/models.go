// Package store provides the persistence layer for meetings, agents and
// users. Every status-changing update is a single conditional statement
// guarded on the row's current status, which makes transitions safe against
// duplicate and out-of-order webhook delivery without in-process locking.
package store

import "time"

// Status is the lifecycle status of a meeting. Exactly one value holds at
// any time; the database enforces the value set with a CHECK constraint.
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusActive     Status = "active"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Meeting is a scheduled, trackable session between a user and an agent.
type Meeting struct {
	ID            string
	UserID        string
	AgentID       string
	Name          string
	Status        Status
	StartedAt     *time.Time
	EndedAt       *time.Time
	TranscriptURL *string
	RecordingURL  *string
	Summary       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Agent is a configured automated meeting participant.
type Agent struct {
	ID           string
	UserID       string
	Name         string
	Instructions string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is a human participant. Only the fields the speaker resolver and
// responder need are modeled here; account management lives elsewhere.
type User struct {
	ID    string
	Name  string
	Email string
}
