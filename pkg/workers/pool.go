// Package workers provides the worker pool that drains the transcript
// pipeline queue. Workers poll, run the handler, and ack or nack based on
// the error category; retry scheduling itself lives in the queue.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/meetflow/pkg/logging"
	"github.com/otherjamesbrown/meetflow/pkg/metrics"
	"github.com/otherjamesbrown/meetflow/pkg/queues"
)

// MessageHandler processes a queue message.
type MessageHandler func(ctx context.Context, msg queues.Message) error

// Config configures a worker pool.
type Config struct {
	Count             int           `yaml:"count"`
	BatchSize         int           `yaml:"batch_size"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RecoveryInterval  time.Duration `yaml:"recovery_interval"`
	MetricsInterval   time.Duration `yaml:"metrics_interval"`
}

// DefaultConfig returns the default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Count:             4,
		BatchSize:         1,
		VisibilityTimeout: 5 * time.Minute,
		PollInterval:      1 * time.Second,
		ShutdownTimeout:   60 * time.Second,
		RecoveryInterval:  time.Minute,
		MetricsInterval:   15 * time.Second,
	}
}

// Worker processes messages from the queue until stopped.
type Worker struct {
	ID      string
	Config  Config
	Queue   queues.Queue
	Handler MessageHandler

	ProcessedCount atomic.Int64
	FailedCount    atomic.Int64

	logger     logging.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWorker creates a new worker.
func NewWorker(config Config, queue queues.Queue, handler MessageHandler, logger logging.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Worker{
		ID:         id,
		Config:     config,
		Queue:      queue,
		Handler:    handler,
		logger:     logger.With(logging.F("component", "worker"), logging.F("worker_id", id)),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start begins processing messages.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processLoop()
	}()
}

// Stop gracefully stops the worker, waiting up to ShutdownTimeout for the
// in-flight message to finish.
func (w *Worker) Stop() {
	w.cancelFunc()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.Config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timed out")
	}
}

func (w *Worker) processLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			messages, err := w.Queue.Dequeue(w.Config.BatchSize, w.Config.PollInterval)
			if err != nil {
				if w.ctx.Err() != nil {
					return
				}
				w.logger.Error("dequeue failed", logging.Err(err))
				time.Sleep(w.Config.PollInterval)
				continue
			}

			for _, qm := range messages {
				if w.ctx.Err() != nil {
					return
				}
				w.processMessage(qm)
			}
		}
	}
}

func (w *Worker) processMessage(qm *queues.QueuedMessage) {
	msg, err := qm.ParseMessage()
	if err != nil {
		w.Queue.MoveToDeadLetter(qm.ID, fmt.Sprintf("parse error: %v", err))
		w.FailedCount.Add(1)
		return
	}

	// Leave headroom so the handler finishes before the message becomes
	// visible to another worker.
	timeout := w.Config.VisibilityTimeout - 10*time.Second
	if timeout <= 0 {
		timeout = w.Config.VisibilityTimeout
	}
	ctx, cancel := context.WithTimeout(w.ctx, timeout)
	defer cancel()

	if err := w.Handler(ctx, msg); err != nil {
		w.FailedCount.Add(1)
		if procErr, ok := err.(*queues.ProcessingError); ok && !procErr.IsRetryable() {
			w.logger.Error("message dead-lettered",
				logging.F("message_id", qm.ID),
				logging.F("meeting_id", msg.GetMeetingID()),
				logging.Err(err))
			w.Queue.MoveToDeadLetter(qm.ID, procErr.Error())
			return
		}
		w.logger.Warn("message failed, will retry",
			logging.F("message_id", qm.ID),
			logging.F("meeting_id", msg.GetMeetingID()),
			logging.F("retry_count", qm.RetryCount),
			logging.Err(err))
		w.Queue.Nack(qm.ID)
		return
	}

	w.Queue.Ack(qm.ID)
	w.ProcessedCount.Add(1)
}

// Pool manages a set of identical workers plus a stale-message recovery
// loop.
type Pool struct {
	Config  Config
	Queue   queues.Queue
	Handler MessageHandler

	mu      sync.Mutex
	workers []*Worker
	metrics *metrics.Metrics
	logger  logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a new worker pool. A nil metrics disables the gauge
// reporting loop.
func NewPool(config Config, queue queues.Queue, handler MessageHandler, m *metrics.Metrics, logger logging.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		Config:  config,
		Queue:   queue,
		Handler: handler,
		workers: make([]*Worker, 0, config.Count),
		metrics: m,
		logger:  logger.With(logging.F("component", "worker_pool")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts all workers and the recovery loop.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.Config.Count; i++ {
		worker := NewWorker(p.Config, p.Queue, p.Handler, p.logger)
		worker.Start()
		p.workers = append(p.workers, worker)
	}

	if recoverer, ok := p.Queue.(interface{ RecoverStaleMessages() error }); ok {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.recoveryLoop(recoverer)
		}()
	}

	if p.metrics != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.metricsLoop()
		}()
	}

	p.logger.Info("worker pool started", logging.F("workers", p.Config.Count))
}

// metricsLoop reports the pending and dead letter queue depths. Dead
// letters accumulate from permanent failures, exhausted retries, and
// visibility timeouts alike, so depth is read from the queue rather than
// counted at the call sites.
func (p *Pool) metricsLoop() {
	interval := p.Config.MetricsInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dlq, hasDLQ := p.Queue.(interface{ DeadLetterDepth() (int64, error) })

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			depth, err := p.Queue.Depth()
			if err != nil {
				p.logger.Warn("failed to read queue depth", logging.Err(err))
				continue
			}
			p.metrics.QueueDepth.Set(float64(depth))

			if !hasDLQ {
				continue
			}
			deadDepth, err := dlq.DeadLetterDepth()
			if err != nil {
				p.logger.Warn("failed to read dead letter depth", logging.Err(err))
				continue
			}
			p.metrics.PipelineJobsDead.Set(float64(deadDepth))
		}
	}
}

func (p *Pool) recoveryLoop(recoverer interface{ RecoverStaleMessages() error }) {
	interval := p.Config.RecoveryInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := recoverer.RecoverStaleMessages(); err != nil {
				p.logger.Error("stale message recovery failed", logging.Err(err))
			}
		}
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	var wg sync.WaitGroup
	for _, worker := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(worker)
	}
	wg.Wait()
	p.wg.Wait()

	p.logger.Info("worker pool stopped")
}

// Stats returns aggregate pool statistics.
func (p *Pool) Stats() (processed, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		processed += w.ProcessedCount.Load()
		failed += w.FailedCount.Load()
	}
	return processed, failed
}
