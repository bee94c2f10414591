package secondary

import (
	"context"
	"time"
)

// Job status constants.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// JobQueue defines the secondary port for the durable delayed-job queue.
// Delivery is at-least-once: a claimed job whose lease expires is handed out
// again.
type JobQueue interface {
	// Enqueue adds a job. A job whose DedupKey is already queued is ignored;
	// returns whether a row was inserted.
	Enqueue(ctx context.Context, job *JobRecord) (bool, error)

	// Claim atomically leases the earliest due job (run_at <= now), or
	// returns nil when none is due. Claiming increments Attempts.
	Claim(ctx context.Context, now time.Time, lease time.Duration) (*JobRecord, error)

	// Complete marks a claimed job done.
	Complete(ctx context.Context, id string, at time.Time) error

	// Retry returns a claimed job to pending with a new run time.
	Retry(ctx context.Context, id string, runAt time.Time, lastErr string, at time.Time) error

	// Fail marks a claimed job permanently failed.
	Fail(ctx context.Context, id string, lastErr string, at time.Time) error

	// Requeue resets a failed job to pending with a fresh attempt budget.
	Requeue(ctx context.Context, id string, runAt time.Time) error

	// GetByID retrieves a job by its ID.
	GetByID(ctx context.Context, id string) (*JobRecord, error)

	// List retrieves jobs matching the given filters, soonest first.
	List(ctx context.Context, filters JobFilters) ([]*JobRecord, error)
}

// JobRecord represents a delayed job as stored in persistence.
type JobRecord struct {
	ID          string
	Kind        string
	Payload     []byte // JSON
	DedupKey    string // Empty string means null
	Status      string
	RunAt       time.Time
	Attempts    int
	MaxAttempts int
	LockedUntil time.Time // Zero value means null
	LastError   string    // Empty string means null
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobFilters contains filter options for querying jobs.
type JobFilters struct {
	Kind   string
	Status string
	Limit  int
}

// JobScheduler defines the secondary port services use to schedule delayed
// work without knowing the queue's storage or retry policy.
type JobScheduler interface {
	// Schedule enqueues a job to run at job.RunAt. A job whose DedupKey is
	// already queued is ignored; returns whether a job was added.
	Schedule(ctx context.Context, job ScheduledJob) (bool, error)
}

// ScheduledJob describes one unit of delayed work. Payload is encoded as JSON.
type ScheduledJob struct {
	Kind     string
	DedupKey string
	RunAt    time.Time
	Payload  any
}
