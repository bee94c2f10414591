package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/metrics"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

// EscalationEngine implements the EscalationService interface: it starts
// instances, fires their steps from delayed jobs, and resolves them.
//
// Step jobs are delivered at least once. Every step firing re-reads the
// instance and applies its transition conditionally, so duplicates and
// stale jobs are no-ops.
type EscalationEngine struct {
	blockRepo    secondary.EscalationBlockRepository
	instanceRepo secondary.EscalationInstanceRepository
	members      secondary.MembershipProvider
	jobs         secondary.JobScheduler
	executor     EffectExecutor
	logger       *zap.Logger
	now          func() time.Time
}

// EngineOption customizes an EscalationEngine.
type EngineOption func(*EscalationEngine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *EscalationEngine) { e.now = now }
}

// NewEscalationEngine creates a new EscalationEngine with injected dependencies.
func NewEscalationEngine(
	blockRepo secondary.EscalationBlockRepository,
	instanceRepo secondary.EscalationInstanceRepository,
	members secondary.MembershipProvider,
	notifier secondary.Notifier,
	jobs secondary.JobScheduler,
	logger *zap.Logger,
	opts ...EngineOption,
) *EscalationEngine {
	logger = logger.Named("engine")
	e := &EscalationEngine{
		blockRepo:    blockRepo,
		instanceRepo: instanceRepo,
		members:      members,
		jobs:         jobs,
		executor:     NewStepEffectExecutor(instanceRepo, notifier, jobs, logger),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartInstance creates an instance unless one is already active for the
// dedup key, and schedules step 0 at startedAt + steps[0].delay.
func (e *EscalationEngine) StartInstance(ctx context.Context, req primary.StartInstanceRequest) (*primary.StartInstanceResult, error) {
	block, err := e.blockRepo.GetByID(ctx, req.BlockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalation block: %w", err)
	}
	if !block.Enabled {
		return nil, &primary.ValidationError{Reason: fmt.Sprintf("block %s is disabled", block.ID)}
	}
	if len(block.Steps) == 0 {
		return nil, &primary.ValidationError{Reason: fmt.Sprintf("block %s has no steps", block.ID)}
	}
	if req.TargetUserID == "" {
		return nil, fmt.Errorf("target user is required")
	}

	now := e.now()
	record := &secondary.EscalationInstanceRecord{
		ID:                uuid.NewString(),
		ProjectID:         block.ProjectID,
		EscalationBlockID: block.ID,
		TriggerType:       block.TriggerType,
		BlockerID:         req.BlockerID,
		TargetUserID:      req.TargetUserID,
		Subject:           req.Subject,
		CurrentStep:       0,
		Status:            escalation.StatusActive,
		StartedAt:         now,
	}

	created, err := e.instanceRepo.CreateIfAbsent(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation instance: %w", err)
	}

	if !created {
		metrics.InstancesDeduplicated.WithLabelValues(block.TriggerType).Inc()
		existing, err := e.instanceRepo.FindActive(ctx, block.ID, req.TargetUserID, block.TriggerType)
		if err != nil {
			return nil, fmt.Errorf("failed to load active escalation instance: %w", err)
		}
		result := &primary.StartInstanceResult{Created: false}
		if existing != nil {
			result.Instance = recordToInstance(existing)
		}
		return result, nil
	}

	metrics.InstancesCreated.WithLabelValues(block.TriggerType).Inc()
	log := e.logger.With(
		zap.String("instance_id", record.ID),
		zap.String("block_id", block.ID),
		zap.String("target_user_id", record.TargetUserID))
	log.Info("escalation instance started", zap.String("trigger_type", block.TriggerType))

	if err := e.scheduleStep(ctx, record.ID, 0, record.StartedAt, block.Steps[0], now); err != nil {
		log.Error("failed to schedule first escalation step", zap.Error(err))
		return nil, fmt.Errorf("failed to schedule first step of instance %s: %w", record.ID, err)
	}

	return &primary.StartInstanceResult{Instance: recordToInstance(record), Created: true}, nil
}

// ProcessStep fires step of an instance. Missing, resolved and stale
// instances are skipped without error.
func (e *EscalationEngine) ProcessStep(ctx context.Context, instanceID string, step int) error {
	log := e.logger.With(zap.String("instance_id", instanceID), zap.Int("step", step))

	inst, err := e.instanceRepo.GetByID(ctx, instanceID)
	if errors.Is(err, secondary.ErrNotFound) {
		log.Debug("escalation instance gone, skipping step")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load escalation instance: %w", err)
	}
	if inst.Status != escalation.StatusActive {
		log.Debug("escalation instance not active, skipping step", zap.String("status", inst.Status))
		return nil
	}

	block, err := e.blockRepo.GetByID(ctx, inst.EscalationBlockID)
	if errors.Is(err, secondary.ErrNotFound) {
		log.Debug("escalation block gone, skipping step")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load escalation block: %w", err)
	}

	now := e.now()

	// A redelivered job whose transition already applied: make sure the
	// follow-up job exists, since scheduling may have failed after the advance.
	if inst.CurrentStep == step+1 && inst.CurrentStep < len(block.Steps) {
		return e.scheduleStep(ctx, inst.ID, inst.CurrentStep, inst.StartedAt, block.Steps[inst.CurrentStep], now)
	}

	members, err := e.members.ListMembers(ctx, inst.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load project roster: %w", err)
	}

	plan := escalation.GenerateStepPlan(escalation.StepPlanInput{
		InstanceID:   inst.ID,
		Status:       inst.Status,
		CurrentStep:  inst.CurrentStep,
		ExpectedStep: step,
		StartedAt:    inst.StartedAt,
		TargetUserID: inst.TargetUserID,
		Subject:      inst.Subject,
		BlockerID:    inst.BlockerID,
		BlockID:      block.ID,
		BlockName:    block.Name,
		TriggerType:  block.TriggerType,
		Steps:        block.Steps,
		Roster:       roster.New(members),
		Now:          now,
	})

	if plan.Skip {
		log.Debug("skipping escalation step", zap.String("reason", plan.SkipReason))
		return nil
	}

	if plan.StepIndex < len(block.Steps) {
		route := block.Steps[plan.StepIndex].RouteType
		metrics.StepsFired.WithLabelValues(block.TriggerType, route).Inc()
		if plan.Notify == nil {
			metrics.RoutingFailures.WithLabelValues(route).Inc()
		}
	}

	err = e.executor.Execute(ctx, plan.Effects())
	if errors.Is(err, errTransitionLost) {
		log.Debug("escalation step already applied by another worker")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fire step %d of instance %s: %w", step, inst.ID, err)
	}

	if plan.IsFinal() {
		log.Info("escalation chain exhausted")
	} else {
		log.Info("escalation step fired")
	}
	return nil
}

// ResolveInstance resolves an active instance from outside the chain.
func (e *EscalationEngine) ResolveInstance(ctx context.Context, req primary.ResolveInstanceRequest) error {
	inst, err := e.instanceRepo.GetByID(ctx, req.InstanceID)
	if err != nil {
		return fmt.Errorf("escalation instance not found: %w", err)
	}

	guard := escalation.CanResolveInstance(escalation.ResolveContext{InstanceID: inst.ID, Status: inst.Status})
	if err := guard.Error(); err != nil {
		return err
	}

	reason := req.Reason
	if reason == "" {
		reason = escalation.ReasonManual
	}

	resolved, err := e.instanceRepo.MarkResolved(ctx, inst.ID, reason, e.now())
	if err != nil {
		return fmt.Errorf("failed to resolve escalation instance: %w", err)
	}
	if resolved {
		metrics.InstancesResolved.WithLabelValues(reason).Inc()
		e.logger.Info("escalation instance resolved",
			zap.String("instance_id", inst.ID),
			zap.String("reason", reason))
	}
	return nil
}

// ResolveForBlocker resolves every active instance tied to a blocker and
// returns how many were resolved. Pending step jobs become no-ops.
func (e *EscalationEngine) ResolveForBlocker(ctx context.Context, blockerID, reason string) (int, error) {
	if reason == "" {
		reason = escalation.ReasonBlockerResolved
	}

	active, err := e.instanceRepo.ListActiveByBlocker(ctx, blockerID)
	if err != nil {
		return 0, fmt.Errorf("failed to list escalations for blocker %s: %w", blockerID, err)
	}

	return e.resolveAll(ctx, active, reason)
}

func (e *EscalationEngine) resolveAll(ctx context.Context, records []*secondary.EscalationInstanceRecord, reason string) (int, error) {
	now := e.now()
	count := 0
	for _, r := range records {
		resolved, err := e.instanceRepo.MarkResolved(ctx, r.ID, reason, now)
		if err != nil {
			return count, fmt.Errorf("failed to resolve escalation instance %s: %w", r.ID, err)
		}
		if resolved {
			count++
			metrics.InstancesResolved.WithLabelValues(reason).Inc()
			e.logger.Info("escalation instance resolved",
				zap.String("instance_id", r.ID),
				zap.String("reason", reason))
		}
	}
	return count, nil
}

// GetInstance retrieves an instance by ID.
func (e *EscalationEngine) GetInstance(ctx context.Context, instanceID string) (*primary.EscalationInstance, error) {
	record, err := e.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return recordToInstance(record), nil
}

// ListInstances lists instances with optional filters.
func (e *EscalationEngine) ListInstances(ctx context.Context, filters primary.InstanceFilters) ([]*primary.EscalationInstance, error) {
	records, err := e.instanceRepo.List(ctx, secondary.EscalationInstanceFilters{
		ProjectID:    filters.ProjectID,
		BlockID:      filters.BlockID,
		Status:       filters.Status,
		TargetUserID: filters.TargetUserID,
		Limit:        filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation instances: %w", err)
	}

	instances := make([]*primary.EscalationInstance, len(records))
	for i, r := range records {
		instances[i] = recordToInstance(r)
	}
	return instances, nil
}

// HandleStepJob decodes a step job payload and fires the step. It is the
// delayed scheduler's handler for escalation.JobKindStep.
func (e *EscalationEngine) HandleStepJob(ctx context.Context, job escalation.StepJob) error {
	return e.ProcessStep(ctx, job.InstanceID, job.Step)
}

func (e *EscalationEngine) scheduleStep(ctx context.Context, instanceID string, index int, startedAt time.Time, step escalation.Step, now time.Time) error {
	_, err := e.jobs.Schedule(ctx, secondary.ScheduledJob{
		Kind:     escalation.JobKindStep,
		DedupKey: escalation.StepJobKey(instanceID, index),
		RunAt:    escalation.NextRunAt(startedAt, step, now),
		Payload:  escalation.StepJob{InstanceID: instanceID, Step: index},
	})
	return err
}

// Helper methods

func recordToInstance(r *secondary.EscalationInstanceRecord) *primary.EscalationInstance {
	return &primary.EscalationInstance{
		ID:                r.ID,
		ProjectID:         r.ProjectID,
		EscalationBlockID: r.EscalationBlockID,
		TriggerType:       r.TriggerType,
		BlockerID:         r.BlockerID,
		TargetUserID:      r.TargetUserID,
		Subject:           r.Subject,
		CurrentStep:       r.CurrentStep,
		Status:            r.Status,
		StartedAt:         r.StartedAt,
		LastEscalatedAt:   r.LastEscalatedAt,
		ResolvedAt:        r.ResolvedAt,
		ResolutionReason:  r.ResolutionReason,
	}
}

// Ensure EscalationEngine implements the interface
var _ primary.EscalationService = (*EscalationEngine)(nil)
