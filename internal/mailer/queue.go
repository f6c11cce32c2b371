package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/petcare-user/pkg/logger"
)

var (
	// ErrQueueFull is returned when the buffer has no room left.
	ErrQueueFull = errors.New("mail queue is full")
	// ErrQueueClosed is returned after Close has been called.
	ErrQueueClosed = errors.New("mail queue is closed")
)

// QueueConfig sizes the queue and its worker pool.
type QueueConfig struct {
	Size        int
	Workers     int
	SendTimeout time.Duration
}

// DefaultQueueConfig returns a 100 message buffer drained by 2 workers.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Size: 100, Workers: 2, SendTimeout: 30 * time.Second}
}

type job struct {
	ctx context.Context
	msg *Message
}

// Queue hands emails to a fixed pool of workers so callers never wait on the
// mail transport. Delivery failures are logged and counted, not retried.
type Queue struct {
	sender      Sender
	jobs        chan job
	workers     int
	sendTimeout time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewQueue creates a queue. Call Start to launch the workers.
func NewQueue(sender Sender, cfg QueueConfig, l *slog.Logger) *Queue {
	def := DefaultQueueConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	return &Queue{
		sender:      sender,
		jobs:        make(chan job, cfg.Size),
		workers:     cfg.Workers,
		sendTimeout: cfg.SendTimeout,
		logger:      l,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.logger.Info("mail queue started",
		slog.String("transport", q.sender.Name()),
		slog.Int("workers", q.workers),
		slog.Int("capacity", cap(q.jobs)),
	)
}

// Enqueue schedules msg for delivery without blocking. The request context's
// values are kept for logging but its cancellation is not.
func (q *Queue) Enqueue(ctx context.Context, msg *Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job{ctx: context.WithoutCancel(ctx), msg: msg}:
		mailQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		mailMessagesTotal.WithLabelValues(q.sender.Name(), "dropped").Inc()
		return ErrQueueFull
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain mail queue: %w", ctx.Err())
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		mailQueueDepth.Set(float64(len(q.jobs)))
		q.deliver(j)
	}
}

func (q *Queue) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, q.sendTimeout)
	defer cancel()

	transport := q.sender.Name()
	start := time.Now()
	err := q.sender.Send(ctx, j.msg)
	mailSendDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())

	l := logger.WithContext(j.ctx, q.logger)
	if err != nil {
		mailMessagesTotal.WithLabelValues(transport, "failed").Inc()
		l.ErrorContext(j.ctx, "mail delivery failed",
			slog.String("to", logger.MaskEmail(j.msg.To)),
			slog.String("subject", j.msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	mailMessagesTotal.WithLabelValues(transport, "sent").Inc()
	l.InfoContext(j.ctx, "mail delivered",
		slog.String("to", logger.MaskEmail(j.msg.To)),
		slog.String("subject", j.msg.Subject),
	)
}
