package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes
const (
	keyPrefixQueue      = "queue:"      // Pending messages (sorted set by visible-after time)
	keyPrefixProcessing = "processing:" // Messages being processed
	keyPrefixMessage    = "msg:"        // Message data
	keyPrefixDLQ        = "dlq:"        // Dead letter queue
)

// RedisQueue implements Queue using redis sorted sets. Ordering is FIFO by
// visible-after time, which makes nack backoff a plain re-add with a future
// score.
type RedisQueue struct {
	client     *redis.Client
	name       string
	config     QueueConfig
	retry      RetryPolicy
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewRedisQueue creates a new redis-backed queue.
func NewRedisQueue(client *redis.Client, config QueueConfig) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	retry := DefaultRetryPolicy()
	retry.MaxRetries = config.MaxRetries
	return &RedisQueue{
		client:     client,
		name:       config.Name,
		config:     config,
		retry:      retry,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string {
	return q.name
}

// Enqueue adds a message to the queue. The message body and the queue entry
// are written in one transaction so a crash cannot strand either half.
func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	messageID := uuid.New().String()

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	now := time.Now()
	qm := &QueuedMessage{
		ID:          messageID,
		Message:     msgBytes,
		MessageType: msg.GetMessageType(),
		RetryCount:  0,
		EnqueuedAt:  now,
	}

	qmBytes, err := json.Marshal(qm)
	if err != nil {
		return fmt.Errorf("failed to marshal queued message: %w", err)
	}

	pipe := q.client.TxPipeline()
	msgKey := keyPrefixMessage + q.name + ":" + messageID
	pipe.Set(ctx, msgKey, qmBytes, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, keyPrefixQueue+q.name, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: messageID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// Dequeue retrieves messages that are visible now, blocking up to timeout.
func (q *RedisQueue) Dequeue(maxMessages int, timeout time.Duration) ([]*QueuedMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	queueKey := keyPrefixQueue + q.name
	processingKey := keyPrefixProcessing + q.name
	deadline := time.Now().Add(timeout)

	var messages []*QueuedMessage

	for time.Now().Before(deadline) && len(messages) < maxMessages {
		// Pop the oldest visible message.
		now := float64(time.Now().UnixNano())
		ids, err := q.client.ZRangeByScore(q.ctx, queueKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("%f", now),
			Count: 1,
		}).Result()
		if err != nil && err != redis.Nil {
			return messages, fmt.Errorf("failed to read queue: %w", err)
		}
		if len(ids) == 0 {
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-q.ctx.Done():
				return messages, q.ctx.Err()
			}
		}

		messageID := ids[0]
		// Claim the message; a competing worker loses this ZRem.
		removed, err := q.client.ZRem(q.ctx, queueKey, messageID).Result()
		if err != nil {
			return messages, fmt.Errorf("failed to claim message: %w", err)
		}
		if removed == 0 {
			continue
		}

		msgKey := keyPrefixMessage + q.name + ":" + messageID
		data, err := q.client.Get(q.ctx, msgKey).Bytes()
		if err == redis.Nil {
			// Message expired past retention, skip.
			continue
		}
		if err != nil {
			return messages, fmt.Errorf("failed to get message data: %w", err)
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			return messages, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		visibleAfter := time.Now().Add(q.config.VisibilityTimeout)
		qm.VisibleAfter = visibleAfter

		updatedData, _ := json.Marshal(qm)
		pipe := q.client.TxPipeline()
		pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
		pipe.ZAdd(q.ctx, processingKey, redis.Z{
			Score:  float64(visibleAfter.UnixNano()),
			Member: messageID,
		})
		if _, err := pipe.Exec(q.ctx); err != nil {
			return messages, fmt.Errorf("failed to move to processing: %w", err)
		}

		messages = append(messages, &qm)
	}

	return messages, nil
}

// Ack acknowledges successful processing of a message.
func (q *RedisQueue) Ack(messageID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, keyPrefixProcessing+q.name, messageID)
	pipe.Del(q.ctx, keyPrefixMessage+q.name+":"+messageID)
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Nack indicates processing failure. The message is re-queued with
// exponential backoff, or dead-lettered once retries are exhausted.
func (q *RedisQueue) Nack(messageID string) error {
	msgKey := keyPrefixMessage + q.name + ":" + messageID

	data, err := q.client.Get(q.ctx, msgKey).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	var qm QueuedMessage
	if err := json.Unmarshal(data, &qm); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	qm.RetryCount++
	if qm.RetryCount >= q.retry.MaxRetries {
		return q.MoveToDeadLetter(messageID, ErrMaxRetriesExceeded.Error())
	}

	qm.VisibleAfter = time.Now().Add(q.retry.CalculateBackoff(qm.RetryCount))
	updatedData, _ := json.Marshal(qm)

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, keyPrefixProcessing+q.name, messageID)
	pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
	pipe.ZAdd(q.ctx, keyPrefixQueue+q.name, redis.Z{
		Score:  float64(qm.VisibleAfter.UnixNano()),
		Member: messageID,
	})
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}
	return nil
}

// MoveToDeadLetter moves a message to the dead letter queue. Dead-lettered
// pipeline jobs leave the meeting in processing, which is the queryable
// failure state for a permanently failed run.
func (q *RedisQueue) MoveToDeadLetter(messageID string, reason string) error {
	msgKey := keyPrefixMessage + q.name + ":" + messageID

	data, err := q.client.Get(q.ctx, msgKey).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	dlqEntry := map[string]interface{}{
		"message":    string(data),
		"reason":     reason,
		"moved_at":   time.Now().Format(time.RFC3339),
		"queue_name": q.name,
	}
	dlqData, _ := json.Marshal(dlqEntry)

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, keyPrefixProcessing+q.name, messageID)
	pipe.Del(q.ctx, msgKey)
	pipe.ZAdd(q.ctx, keyPrefixDLQ+q.name, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(dlqData),
	})
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to move to DLQ: %w", err)
	}
	return nil
}

// Depth returns the current queue depth.
func (q *RedisQueue) Depth() (int64, error) {
	return q.client.ZCard(q.ctx, keyPrefixQueue+q.name).Result()
}

// DeadLetterDepth returns the number of dead-lettered messages.
func (q *RedisQueue) DeadLetterDepth() (int64, error) {
	return q.client.ZCard(q.ctx, keyPrefixDLQ+q.name).Result()
}

// RecoverStaleMessages re-queues messages whose visibility timeout expired
// (worker crashed mid-job). Should be called periodically.
func (q *RedisQueue) RecoverStaleMessages() error {
	processingKey := keyPrefixProcessing + q.name
	queueKey := keyPrefixQueue + q.name

	now := float64(time.Now().UnixNano())
	stale, err := q.client.ZRangeByScore(q.ctx, processingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale messages: %w", err)
	}

	for _, messageID := range stale {
		msgKey := keyPrefixMessage + q.name + ":" + messageID

		data, err := q.client.Get(q.ctx, msgKey).Bytes()
		if err == redis.Nil {
			q.client.ZRem(q.ctx, processingKey, messageID)
			continue
		}
		if err != nil {
			continue
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			continue
		}

		qm.RetryCount++
		if qm.RetryCount >= q.retry.MaxRetries {
			q.MoveToDeadLetter(messageID, "visibility timeout exceeded")
			continue
		}

		updatedData, _ := json.Marshal(qm)
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, processingKey, messageID)
		pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
		pipe.ZAdd(q.ctx, queueKey, redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: messageID,
		})
		pipe.Exec(q.ctx)
	}

	return nil
}

// Close closes the queue.
func (q *RedisQueue) Close() error {
	q.cancelFunc()
	return nil
}

// Verify interface compliance
var _ Queue = (*RedisQueue)(nil)
