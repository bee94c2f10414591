package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/pulse/internal/scheduler"
)

func runPeriodic(t *testing.T, p *scheduler.Periodic) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("periodic scheduler did not stop")
		}
	}
}

func TestPeriodic_RunsOnStartAndOnInterval(t *testing.T) {
	var runs atomic.Int32
	p := scheduler.NewPeriodic(zap.NewNop(), scheduler.PeriodicJob{
		Name:       "deadline_risk",
		Interval:   10 * time.Millisecond,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	stop := runPeriodic(t, p)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	stop()
}

func TestPeriodic_RunOnStartFiresBeforeFirstTick(t *testing.T) {
	ran := make(chan struct{}, 1)
	p := scheduler.NewPeriodic(zap.NewNop(), scheduler.PeriodicJob{
		Name:       "output_threshold",
		Interval:   time.Hour,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})

	stop := runPeriodic(t, p)
	defer stop()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestPeriodic_NeverOverlapsItself(t *testing.T) {
	var active, maxActive, runs atomic.Int32
	p := scheduler.NewPeriodic(zap.NewNop(), scheduler.PeriodicJob{
		Name:     "slow",
		Interval: 2 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			runs.Add(1)
			return nil
		},
	})

	stop := runPeriodic(t, p)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestPeriodic_SurvivesErrorsAndPanics(t *testing.T) {
	var runs atomic.Int32
	p := scheduler.NewPeriodic(zap.NewNop(), scheduler.PeriodicJob{
		Name:     "unstable",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := runs.Add(1)
			if n%2 == 0 {
				panic("scan exploded")
			}
			return errors.New("scan failed")
		},
	})

	stop := runPeriodic(t, p)
	require.Eventually(t, func() bool { return runs.Load() >= 4 }, 5*time.Second, 5*time.Millisecond)
	stop()
}

func TestPeriodic_RejectsNonPositiveInterval(t *testing.T) {
	p := scheduler.NewPeriodic(zap.NewNop(), scheduler.PeriodicJob{Name: "bad", Run: func(context.Context) error { return nil }})

	err := p.Run(context.Background())
	assert.Error(t, err)
}
