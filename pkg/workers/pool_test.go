package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
)

// memQueue is an in-memory Queue for worker tests. It hands out each
// message once and records acks, nacks, and dead letters.
type memQueue struct {
	mu      sync.Mutex
	pending []*queues.QueuedMessage
	acked   []string
	nacked  []string
	dead    map[string]string
}

func newMemQueue() *memQueue {
	return &memQueue{dead: make(map[string]string)}
}

func (q *memQueue) push(id string, msg queues.Message) {
	raw, _ := json.Marshal(msg)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &queues.QueuedMessage{
		ID:          id,
		Message:     raw,
		MessageType: msg.GetMessageType(),
		EnqueuedAt:  time.Now(),
	})
}

func (q *memQueue) pushRaw(id string, messageType queues.MessageType, raw []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, &queues.QueuedMessage{
		ID:          id,
		Message:     raw,
		MessageType: messageType,
		EnqueuedAt:  time.Now(),
	})
}

func (q *memQueue) Name() string { return "test" }

func (q *memQueue) Enqueue(_ context.Context, msg queues.Message) error {
	q.push("generated", msg)
	return nil
}

func (q *memQueue) Dequeue(maxMessages int, timeout time.Duration) ([]*queues.QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	n := maxMessages
	if n > len(q.pending) {
		n = len(q.pending)
	}
	out := q.pending[:n]
	q.pending = q.pending[n:]
	return out, nil
}

func (q *memQueue) Ack(messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, messageID)
	return nil
}

func (q *memQueue) Nack(messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, messageID)
	return nil
}

func (q *memQueue) MoveToDeadLetter(messageID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead[messageID] = reason
	return nil
}

func (q *memQueue) Depth() (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.pending)), nil
}

func (q *memQueue) DeadLetterDepth() (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.dead)), nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) snapshot() (acked, nacked []string, dead map[string]string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	dead = make(map[string]string, len(q.dead))
	for k, v := range q.dead {
		dead[k] = v
	}
	return append([]string(nil), q.acked...), append([]string(nil), q.nacked...), dead
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Count = 1
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	cfg.MetricsInterval = 10 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorker_AcksSuccessfulMessage(t *testing.T) {
	q := newMemQueue()
	q.push("msg-1", &queues.ProcessingMessage{MeetingID: "m1"})

	var handled []string
	var mu sync.Mutex
	handler := func(ctx context.Context, msg queues.Message) error {
		mu.Lock()
		handled = append(handled, msg.GetMeetingID())
		mu.Unlock()
		return nil
	}

	w := NewWorker(testConfig(), q, handler, logging.NewNopLogger())
	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		acked, _, _ := q.snapshot()
		return len(acked) == 1
	})

	acked, nacked, dead := q.snapshot()
	assert.Equal(t, []string{"msg-1"}, acked)
	assert.Empty(t, nacked)
	assert.Empty(t, dead)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1"}, handled)
	assert.Equal(t, int64(1), w.ProcessedCount.Load())
}

func TestWorker_NacksTransientFailure(t *testing.T) {
	q := newMemQueue()
	q.push("msg-1", &queues.ProcessingMessage{MeetingID: "m1"})

	handler := func(ctx context.Context, msg queues.Message) error {
		return queues.NewTransientError("fetch", "host unreachable", errors.New("dial tcp"))
	}

	w := NewWorker(testConfig(), q, handler, logging.NewNopLogger())
	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, nacked, _ := q.snapshot()
		return len(nacked) == 1
	})

	_, nacked, dead := q.snapshot()
	assert.Equal(t, []string{"msg-1"}, nacked)
	assert.Empty(t, dead)
	assert.Equal(t, int64(1), w.FailedCount.Load())
}

func TestWorker_DeadLettersPermanentFailure(t *testing.T) {
	q := newMemQueue()
	q.push("msg-1", &queues.ProcessingMessage{MeetingID: "m1"})

	handler := func(ctx context.Context, msg queues.Message) error {
		return queues.NewPermanentError("parse", "malformed transcript", nil)
	}

	w := NewWorker(testConfig(), q, handler, logging.NewNopLogger())
	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, dead := q.snapshot()
		return len(dead) == 1
	})

	acked, nacked, dead := q.snapshot()
	assert.Empty(t, acked)
	assert.Empty(t, nacked)
	assert.Contains(t, dead["msg-1"], "malformed transcript")
}

func TestWorker_DeadLettersUnparseableMessage(t *testing.T) {
	q := newMemQueue()
	q.pushRaw("msg-1", queues.MessageType("meetings/unknown"), []byte(`{}`))

	handler := func(ctx context.Context, msg queues.Message) error {
		t.Error("handler must not run for an unparseable message")
		return nil
	}

	w := NewWorker(testConfig(), q, handler, logging.NewNopLogger())
	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, dead := q.snapshot()
		return len(dead) == 1
	})
}

func TestPool_ProcessesAllMessages(t *testing.T) {
	q := newMemQueue()
	for _, id := range []string{"msg-1", "msg-2", "msg-3", "msg-4"} {
		q.push(id, &queues.ProcessingMessage{MeetingID: id})
	}

	cfg := testConfig()
	cfg.Count = 2

	handler := func(ctx context.Context, msg queues.Message) error { return nil }

	pool := NewPool(cfg, q, handler, nil, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	waitFor(t, func() bool {
		acked, _, _ := q.snapshot()
		return len(acked) == 4
	})

	processed, failed := pool.Stats()
	require.Equal(t, int64(4), processed)
	assert.Equal(t, int64(0), failed)
}

func TestPool_ReportsQueueAndDeadLetterDepth(t *testing.T) {
	q := newMemQueue()
	q.push("msg-1", &queues.ProcessingMessage{MeetingID: "m1"})

	handler := func(ctx context.Context, msg queues.Message) error {
		return queues.NewPermanentError("parse", "malformed transcript", nil)
	}

	m := metrics.NewUnregistered()
	pool := NewPool(testConfig(), q, handler, m, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	waitFor(t, func() bool {
		return testutil.ToFloat64(m.PipelineJobsDead) == 1
	})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
}
