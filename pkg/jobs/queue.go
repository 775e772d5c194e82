package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// DiscardFunc is invoked when a job is dropped for good, either because it
// exhausted its retries or because it failed while the queue was draining.
type DiscardFunc func(Job, error)

// QueueConfig configures worker pool behaviour. RetryDelay is the first
// retry's delay; each further attempt doubles it up to MaxRetryDelay.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	OnDiscard     DiscardFunc
	Logger        *zap.Logger
}

type queueState int

const (
	stateIdle queueState = iota
	stateRunning
	stateDraining
	stateStopped
)

// Queue is an in-memory dispatcher for the fire-and-forget work the request
// path must not block on, outbound email in particular. Failed jobs are
// retried with exponential backoff; Stop drains what is already queued
// before returning.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	onDiscard  DiscardFunc
	logger     *zap.Logger

	jobs    chan Job
	quit    chan struct{}
	ctx     context.Context
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.Mutex
	state   queueState
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 8 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	q := &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryDelay,
		maxDelay:   cfg.MaxRetryDelay,
		onDiscard:  cfg.OnDiscard,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
		quit:       make(chan struct{}),
	}
	if q.onDiscard == nil {
		q.onDiscard = func(job Job, err error) {
			cfg.Logger.Sugar().Errorw("job dropped", "queue", name, "job_id", job.ID, "type", job.Type, "error", err)
		}
	}
	return q
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateIdle {
		return
	}
	q.ctx = ctx
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.state = stateRunning
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop drains the queue and waits for the workers to exit. Jobs already
// enqueued are still processed; pending retry timers are cut short and their
// jobs re-run immediately. Failures during the drain are discarded rather
// than retried.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.state != stateRunning {
		q.mu.Unlock()
		return
	}
	q.state = stateDraining
	close(q.quit)
	q.mu.Unlock()

	q.retries.Wait()

	q.mu.Lock()
	q.state = stateStopped
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue pushes a job onto the queue. Fails once Stop has begun.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != stateRunning {
		return fmt.Errorf("queue %s not accepting jobs", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	q.jobs <- job
	return nil
}

// Depth reports how many jobs are buffered and not yet picked up.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.handler(q.ctx, job); err != nil {
			q.handleFailure(job, err)
		}
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.onDiscard(job, err)
		return
	}

	select {
	case <-q.quit:
		// Draining; a retry would race the channel close.
		q.onDiscard(job, err)
		return
	default:
	}

	delay := q.backoff(job.Attempt)
	q.logger.Sugar().Warnw("job failed, retrying",
		"queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", err)

	q.retries.Add(1)
	go func(j Job, cause error) {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.quit:
		case <-timer.C:
		}
		q.requeue(j, cause)
	}(job, err)
}

// requeue differs from Enqueue in that it is still allowed during the drain,
// so a flushed retry gets one last run before the workers exit.
func (q *Queue) requeue(job Job, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == stateStopped || q.state == stateIdle {
		q.onDiscard(job, cause)
		return
	}
	q.jobs <- job
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.maxDelay {
			return q.maxDelay
		}
	}
	return delay
}
