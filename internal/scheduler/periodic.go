package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/metrics"
)

// PeriodicJob is a named task run at a fixed interval.
type PeriodicJob struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Periodic runs PeriodicJobs on tickers. A job never overlaps itself: a
// tick that arrives while the previous run is still going is skipped.
type Periodic struct {
	jobs   []PeriodicJob
	logger *zap.Logger
}

// NewPeriodic creates a periodic scheduler for jobs.
func NewPeriodic(logger *zap.Logger, jobs ...PeriodicJob) *Periodic {
	return &Periodic{jobs: jobs, logger: logger.Named("periodic")}
}

// Jobs returns the configured jobs.
func (p *Periodic) Jobs() []PeriodicJob {
	return p.jobs
}

// Run starts every job and blocks until ctx is cancelled and in-flight runs
// have returned.
func (p *Periodic) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, job := range p.jobs {
		if job.Interval <= 0 {
			return fmt.Errorf("periodic job %q: interval must be positive", job.Name)
		}
	}
	for _, job := range p.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx, job)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Periodic) loop(ctx context.Context, job PeriodicJob) {
	var running atomic.Bool
	var inflight sync.WaitGroup
	defer inflight.Wait()

	log := p.logger.With(zap.String("job", job.Name))
	log.Info("periodic job started", zap.Duration("interval", job.Interval))

	trigger := func() {
		if !running.CompareAndSwap(false, true) {
			metrics.PeriodicRuns.WithLabelValues(job.Name, "skipped").Inc()
			log.Debug("previous run still in progress, skipping tick")
			return
		}
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer running.Store(false)
			p.fire(ctx, job, log)
		}()
	}

	if job.RunOnStart {
		trigger()
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("periodic job stopped")
			return
		case <-ticker.C:
			trigger()
		}
	}
}

func (p *Periodic) fire(ctx context.Context, job PeriodicJob, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PeriodicRuns.WithLabelValues(job.Name, "panic").Inc()
			log.Error("periodic job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.PeriodicRuns.WithLabelValues(job.Name, "error").Inc()
		log.Error("periodic job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	metrics.PeriodicRuns.WithLabelValues(job.Name, "ok").Inc()
	log.Debug("periodic job finished", zap.Duration("duration", time.Since(start)))
}
