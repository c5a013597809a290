// Package queues provides the durable redis-backed queue between the
// webhook handlers and the transcript pipeline workers. The webhook side
// only enqueues and returns; workers consume with a visibility timeout,
// bounded retries with exponential backoff, and a dead letter queue for
// jobs that exhaust their attempts.
package queues

import (
	"context"
	"encoding/json"
	"time"
)

// QueueMeetingsProcessing is the queue consumed by the transcript pipeline.
const QueueMeetingsProcessing = "meetings:processing"

// MessageType identifies the type of queue message.
type MessageType string

const (
	// MessageTypeProcessing triggers the transcript pipeline for a meeting.
	MessageTypeProcessing MessageType = "meetings/processing"
)

// Message is the base interface for all queue messages.
type Message interface {
	// GetMeetingID returns the meeting the message refers to.
	GetMeetingID() string
	// GetMessageType returns the message type.
	GetMessageType() MessageType
}

// ProcessingMessage carries the transcript pipeline job payload.
type ProcessingMessage struct {
	MeetingID     string    `json:"meeting_id"`
	TranscriptURL string    `json:"transcript_url"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

func (m *ProcessingMessage) GetMeetingID() string        { return m.MeetingID }
func (m *ProcessingMessage) GetMessageType() MessageType { return MessageTypeProcessing }

// QueuedMessage wraps a message with queue metadata.
type QueuedMessage struct {
	ID           string          `json:"id"`
	Message      json.RawMessage `json:"message"`
	MessageType  MessageType     `json:"message_type"`
	RetryCount   int             `json:"retry_count"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAfter time.Time       `json:"visible_after,omitempty"`
}

// ParseMessage parses the raw message based on message type.
func (qm *QueuedMessage) ParseMessage() (Message, error) {
	switch qm.MessageType {
	case MessageTypeProcessing:
		var msg ProcessingMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

// Queue defines the interface for a durable message queue.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue adds a message to the queue and returns immediately.
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue retrieves up to maxMessages, blocking up to timeout.
	Dequeue(maxMessages int, timeout time.Duration) ([]*QueuedMessage, error)

	// Ack acknowledges successful processing of a message.
	Ack(messageID string) error

	// Nack indicates processing failure; the message is retried with
	// backoff or dead-lettered once retries are exhausted.
	Nack(messageID string) error

	// MoveToDeadLetter moves a message to the dead letter queue.
	MoveToDeadLetter(messageID string, reason string) error

	// Depth returns the current queue depth.
	Depth() (int64, error)

	// Close closes the queue.
	Close() error
}

// QueueConfig configures queue behavior.
type QueueConfig struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetentionPeriod   time.Duration `yaml:"retention_period"`
}

// DefaultQueueConfig returns the default configuration for the transcript
// pipeline queue. Summarization calls can be slow, hence the generous
// visibility timeout.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Name:              QueueMeetingsProcessing,
		VisibilityTimeout: 5 * time.Minute,
		MaxRetries:        5,
		RetentionPeriod:   24 * time.Hour,
	}
}

// Verify interface compliance
var _ Message = (*ProcessingMessage)(nil)
