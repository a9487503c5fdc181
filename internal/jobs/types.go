package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// LoadCounts is what a finished load wrote to the warehouse.
type LoadCounts struct {
	Transactions    int      `json:"transactions"`
	Products        int      `json:"products"`
	Records         int      `json:"records"`
	Archived        int      `json:"archived"`
	FailedMerchants []string `json:"failed_merchants,omitempty"`
}

// LoadJob represents a warehouse load from one source.
type LoadJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Source is the API to load from: knot or nessie.
	Source string `json:"source"`

	// Mode is append or replace.
	Mode string `json:"mode"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the last attempt failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Result is set once the job completes.
	Result *LoadCounts `json:"result,omitempty"`
}

// Publisher enqueues load jobs.
type Publisher interface {
	PublishLoad(ctx context.Context, job *LoadJob) error
	Close() error
}

// Consumer runs queued jobs through a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt failed and
// the job is retried until MaxRetries is reached.
type JobHandler func(ctx context.Context, job *LoadJob) error

// JobStore stores job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *LoadJob) error
	GetJob(ctx context.Context, jobID string) (*LoadJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*LoadJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Source string
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
