// Package scheduler runs deferred and recurring work: the durable delayed-job
// scheduler that fires escalation steps, and the periodic scheduler that
// drives the detector scans.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/pulse/internal/ctxutil"
	"github.com/example/pulse/internal/metrics"
	"github.com/example/pulse/internal/ports/secondary"
)

// Handler executes one job. Returning an error wrapped with
// backoff.Permanent fails the job without further attempts.
type Handler func(ctx context.Context, payload []byte) error

// JSONHandler adapts a typed function to a Handler by decoding the payload.
// A payload that does not decode fails the job permanently.
func JSONHandler[T any](fn func(ctx context.Context, payload T) error) Handler {
	return func(ctx context.Context, payload []byte) error {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode job payload: %w", err))
		}
		return fn(ctx, v)
	}
}

// Config controls the delayed scheduler.
type Config struct {
	Workers        int
	PollInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Lease          time.Duration
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Workers:        10,
		PollInterval:   time.Second,
		MaxAttempts:    3,
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     10 * time.Minute,
		Lease:          5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = max(d.MaxBackoff, c.InitialBackoff)
	}
	if c.Lease <= 0 {
		c.Lease = d.Lease
	}
	return c
}

// Delayed is the durable delayed-job scheduler. Jobs live in a
// secondary.JobQueue; workers claim due jobs and dispatch them to the
// handler registered for their kind. Delivery is at-least-once, so handlers
// must be idempotent.
type Delayed struct {
	queue  secondary.JobQueue
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Option customizes a Delayed scheduler.
type Option func(*Delayed)

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) Option {
	return func(d *Delayed) { d.now = now }
}

// NewDelayed creates a delayed scheduler over queue.
func NewDelayed(queue secondary.JobQueue, cfg Config, logger *zap.Logger, opts ...Option) *Delayed {
	d := &Delayed{
		queue:    queue,
		cfg:      cfg.withDefaults(),
		logger:   logger.Named("jobs"),
		now:      func() time.Time { return time.Now().UTC() },
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register installs the handler for kind, replacing any previous one.
func (d *Delayed) Register(kind string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = h
}

func (d *Delayed) handler(kind string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[kind]
	return h, ok
}

// Schedule enqueues job to run at job.RunAt. Scheduling a DedupKey that is
// already queued is a no-op and returns false.
func (d *Delayed) Schedule(ctx context.Context, job secondary.ScheduledJob) (bool, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s payload: %w", job.Kind, err)
	}

	now := d.now()
	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = now
	}
	record := &secondary.JobRecord{
		ID:          uuid.NewString(),
		Kind:        job.Kind,
		Payload:     payload,
		DedupKey:    job.DedupKey,
		Status:      secondary.JobStatusPending,
		RunAt:       runAt,
		MaxAttempts: d.cfg.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	added, err := d.queue.Enqueue(ctx, record)
	if err != nil {
		return false, err
	}
	if added {
		d.logger.Debug("job scheduled",
			zap.String("job_id", record.ID),
			zap.String("kind", record.Kind),
			zap.String("dedup_key", record.DedupKey),
			zap.Time("run_at", record.RunAt))
	}
	return added, nil
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (d *Delayed) Run(ctx context.Context) error {
	d.logger.Info("delayed scheduler started",
		zap.Int("workers", d.cfg.Workers),
		zap.Duration("poll_interval", d.cfg.PollInterval))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()

	d.logger.Info("delayed scheduler stopped")
	return err
}

func (d *Delayed) work(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		processed, err := d.runOne(ctx)
		if err != nil && ctx.Err() == nil {
			d.logger.Warn("failed to claim job", zap.Error(err))
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunDue processes every job due now, including jobs that become due while
// draining, and returns how many were processed.
func (d *Delayed) RunDue(ctx context.Context) (int, error) {
	count := 0
	for {
		processed, err := d.runOne(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}

func (d *Delayed) runOne(ctx context.Context) (bool, error) {
	job, err := d.queue.Claim(ctx, d.now(), d.cfg.Lease)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	d.process(ctx, job)
	return true, nil
}

func (d *Delayed) process(ctx context.Context, job *secondary.JobRecord) {
	log := d.logger.With(
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.Int("attempt", job.Attempts))

	err := d.invoke(ctx, job)

	// Bookkeeping outlives shutdown; an unrecorded job is redelivered anyway.
	ctx = context.WithoutCancel(ctx)
	now := d.now()

	if err == nil {
		if err := d.queue.Complete(ctx, job.ID, now); err != nil {
			log.Error("failed to complete job", zap.Error(err))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "done").Inc()
		log.Debug("job done")
		return
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) || job.Attempts >= job.MaxAttempts {
		if ferr := d.queue.Fail(ctx, job.ID, err.Error(), now); ferr != nil {
			log.Error("failed to mark job failed", zap.Error(ferr))
			return
		}
		metrics.JobsProcessed.WithLabelValues(job.Kind, "failed").Inc()
		log.Error("job failed permanently", zap.Int("max_attempts", job.MaxAttempts), zap.Error(err))
		return
	}

	runAt := now.Add(d.RetryDelay(job.Attempts))
	if rerr := d.queue.Retry(ctx, job.ID, runAt, err.Error(), now); rerr != nil {
		log.Error("failed to reschedule job", zap.Error(rerr))
		return
	}
	metrics.JobsProcessed.WithLabelValues(job.Kind, "retry").Inc()
	log.Warn("job failed, will retry", zap.Time("run_at", runAt), zap.Error(err))
}

func (d *Delayed) invoke(ctx context.Context, job *secondary.JobRecord) (err error) {
	h, ok := d.handler(job.Kind)
	if !ok {
		return backoff.Permanent(fmt.Errorf("no handler registered for job kind %q", job.Kind))
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return h(ctxutil.WithJobID(ctx, job.ID), job.Payload)
}

// RetryDelay returns the wait before retrying a job that has failed
// attempts times: doubling from InitialBackoff, capped at MaxBackoff.
func (d *Delayed) RetryDelay(attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.cfg.InitialBackoff
	bo.MaxInterval = d.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	delay := bo.NextBackOff()
	for i := 1; i < attempts; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

// ListJobs lists jobs for operators.
func (d *Delayed) ListJobs(ctx context.Context, filters secondary.JobFilters) ([]*secondary.JobRecord, error) {
	return d.queue.List(ctx, filters)
}

// RetryFailed returns a failed job to the queue, due now, with a fresh
// attempt budget.
func (d *Delayed) RetryFailed(ctx context.Context, jobID string) error {
	if err := d.queue.Requeue(ctx, jobID, d.now()); err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", jobID, err)
	}
	d.logger.Info("failed job requeued", zap.String("job_id", jobID))
	return nil
}

var _ secondary.JobScheduler = (*Delayed)(nil)
