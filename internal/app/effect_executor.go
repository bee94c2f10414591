// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/effects"
	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/metrics"
	"github.com/example/pulse/internal/ports/secondary"
)

// errTransitionLost is returned by the executor when a conditional
// transition matched no row; effects after it must not run.
var errTransitionLost = errors.New("transition lost")

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// StepEffectExecutor executes the effects planned for one escalation step.
//
// Notification failures are logged and swallowed: the chain advances
// regardless. A transition that loses its race (the instance already moved
// or was resolved) stops execution with errTransitionLost, so no follow-up
// job is scheduled by the loser.
type StepEffectExecutor struct {
	instances secondary.EscalationInstanceRepository
	notifier  secondary.Notifier
	jobs      secondary.JobScheduler
	logger    *zap.Logger
}

// NewStepEffectExecutor creates an executor with injected dependencies.
func NewStepEffectExecutor(
	instances secondary.EscalationInstanceRepository,
	notifier secondary.Notifier,
	jobs secondary.JobScheduler,
	logger *zap.Logger,
) *StepEffectExecutor {
	return &StepEffectExecutor{
		instances: instances,
		notifier:  notifier,
		jobs:      jobs,
		logger:    logger,
	}
}

// Execute processes a slice of effects, executing each in sequence.
func (e *StepEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			if errors.Is(err, errTransitionLost) {
				return err
			}
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *StepEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.LogEffect:
		e.executeLog(typed)
		return nil
	case effects.NotifyEffect:
		e.executeNotify(ctx, typed)
		return nil
	case effects.TransitionEffect:
		return e.executeTransition(ctx, typed)
	case effects.ScheduleEffect:
		return e.executeSchedule(ctx, typed)
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *StepEffectExecutor) executeLog(eff effects.LogEffect) {
	fields := make([]zap.Field, 0, len(eff.Fields))
	for k, v := range eff.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch eff.Level {
	case "error":
		e.logger.Error(eff.Message, fields...)
	case "warn":
		e.logger.Warn(eff.Message, fields...)
	case "debug":
		e.logger.Debug(eff.Message, fields...)
	default:
		e.logger.Info(eff.Message, fields...)
	}
}

func (e *StepEffectExecutor) executeNotify(ctx context.Context, eff effects.NotifyEffect) {
	err := e.notifier.Notify(ctx, secondary.Notification{
		RecipientID: eff.RecipientID,
		Message:     eff.Message,
		Context:     eff.Context,
	})
	if err != nil {
		e.logger.Warn("notification delivery failed",
			zap.String("recipient", eff.RecipientID),
			zap.Error(err))
	}
}

func (e *StepEffectExecutor) executeTransition(ctx context.Context, eff effects.TransitionEffect) error {
	var (
		applied bool
		err     error
	)
	switch eff.Operation {
	case effects.TransitionAdvance:
		applied, err = e.instances.AdvanceStep(ctx, eff.InstanceID, eff.ExpectedStep, eff.At)
	case effects.TransitionComplete:
		applied, err = e.instances.CompleteFinalStep(ctx, eff.InstanceID, eff.ExpectedStep, eff.At)
		if applied {
			metrics.InstancesResolved.WithLabelValues(escalation.ReasonStepsExhausted).Inc()
		}
	default:
		return fmt.Errorf("unknown transition operation: %s", eff.Operation)
	}
	if err != nil {
		return err
	}
	if !applied {
		return errTransitionLost
	}
	return nil
}

func (e *StepEffectExecutor) executeSchedule(ctx context.Context, eff effects.ScheduleEffect) error {
	_, err := e.jobs.Schedule(ctx, secondary.ScheduledJob{
		Kind:     eff.Kind,
		DedupKey: eff.DedupKey,
		RunAt:    eff.RunAt,
		Payload:  eff.Payload,
	})
	return err
}

var _ EffectExecutor = (*StepEffectExecutor)(nil)
