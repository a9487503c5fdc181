package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/altcredit/internal/jobs"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/google/uuid"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

const (
	defaultWorkers    = 2
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Queue is an in-memory job publisher and consumer built on a buffered
// channel. It suits a single instance; jobs do not survive a restart.
type Queue struct {
	jobChan   chan *jobs.LoadJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers    int
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithMaxRetries sets the retry budget given to jobs that do not carry one.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

// WithBackoff sets the base retry delay. Attempt n waits n times the base.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) {
		q.backoff = d
	}
}

// WithClock replaces time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates a new in-memory job queue. bufferSize bounds how many
// jobs can wait before PublishLoad blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:    make(chan *jobs.LoadJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    defaultWorkers,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishLoad enqueues a load job, filling in its id, status and timestamps.
func (q *Queue) PublishLoad(ctx context.Context, job *jobs.LoadJob) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the workers. Each job is passed to handler.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if q.isClosed() {
		return ErrQueueClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	log := logger.FromContext(ctx)
	log.Info().Int("workers", q.workers).Msg("Job queue started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt of job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.LoadJob, handler jobs.JobHandler) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"job_id":  job.JobID,
		"source":  job.Source,
		"attempt": job.RetryCount + 1,
	})

	job.Status = jobs.JobStatusRunning
	started := q.now()
	job.StartedAt = &started
	q.save(ctx, job)

	err := handler(ctx, job)

	completed := q.now()
	job.CompletedAt = &completed

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completed.Sub(started)).Msg("Job completed")
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		backoff := time.Duration(job.RetryCount) * q.backoff
		log.Warn().Err(err).Dur("backoff", backoff).Msg("Job failed, retrying")

		// The job must not be touched after the timer is armed.
		q.save(ctx, job)
		time.AfterFunc(backoff, func() { q.retry(ctx, job, err) })
		return
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Msg("Job failed, no retries left")
	}

	q.save(ctx, job)
}

func (q *Queue) retry(ctx context.Context, job *jobs.LoadJob, cause error) {
	job.Status = jobs.JobStatusPending
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := q.PublishLoad(ctx, job); err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = fmt.Sprintf("%s (retry not enqueued: %v)", cause, err)
		q.save(context.WithoutCancel(ctx), job)
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.LoadJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// Stop closes the queue and waits for in-flight jobs until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
