package escalation

import (
	"fmt"
	"time"

	"github.com/example/pulse/internal/core/effects"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/core/routing"
)

// JobKindStep is the delayed-job kind that fires one escalation step.
const JobKindStep = "escalation.step"

// StepJob is the payload of a JobKindStep job.
type StepJob struct {
	InstanceID string `json:"instanceId"`
	Step       int    `json:"step"`
}

// StepJobKey is the dedup key for the job firing step of instanceID.
// Enqueueing the same step twice collapses into one job.
func StepJobKey(instanceID string, step int) string {
	return fmt.Sprintf("step:%s:%d", instanceID, step)
}

// FireTime returns the absolute time a step is due: startedAt + delay.
func FireTime(startedAt time.Time, step Step) time.Time {
	return startedAt.Add(step.Delay())
}

// NextRunAt returns when a step job should run. A fire time already in the
// past is clamped to now so late steps fire immediately instead of being dropped.
func NextRunAt(startedAt time.Time, step Step, now time.Time) time.Time {
	at := FireTime(startedAt, step)
	if at.Before(now) {
		return now
	}
	return at
}

// StepPlanInput contains the inputs needed to plan one step firing.
// All values are pre-fetched by the caller - no I/O in the planner.
type StepPlanInput struct {
	InstanceID   string
	Status       string
	CurrentStep  int
	ExpectedStep int // Step index carried by the job; stale jobs are skipped
	StartedAt    time.Time
	TargetUserID string
	Subject      Subject
	BlockerID    string

	BlockID     string
	BlockName   string
	TriggerType string
	Steps       []Step

	Roster *roster.Roster
	Now    time.Time
}

// StepPlan represents the planned effects for firing one step.
type StepPlan struct {
	InstanceID string
	StepIndex  int

	// Skip is set when nothing should happen (already resolved, stale job).
	Skip       bool
	SkipReason string

	// Notify is nil when routing found no recipient.
	Notify     *effects.NotifyEffect
	Logs       []effects.LogEffect
	Transition effects.TransitionEffect
	// Schedule is nil when this is the final step.
	Schedule *effects.ScheduleEffect
}

// Effects returns all effects as a flat slice in execution order. The
// schedule effect must only be executed if the transition was applied.
func (p StepPlan) Effects() []effects.Effect {
	if p.Skip {
		return nil
	}
	result := make([]effects.Effect, 0, len(p.Logs)+3)
	for _, l := range p.Logs {
		result = append(result, l)
	}
	if p.Notify != nil {
		result = append(result, *p.Notify)
	}
	result = append(result, p.Transition)
	if p.Schedule != nil {
		result = append(result, *p.Schedule)
	}
	return result
}

// IsFinal reports whether the plan completes the chain.
func (p StepPlan) IsFinal() bool {
	return !p.Skip && p.Transition.Operation == effects.TransitionComplete
}

// GenerateStepPlan plans the firing of the instance's current step.
// This is a pure function - all input data must be pre-fetched.
//
// Routing failures do not stop the chain: the plan carries a warning log
// instead of a notification and still advances, because failing to deliver
// one step is less harmful than stalling the escalation.
func GenerateStepPlan(input StepPlanInput) StepPlan {
	plan := StepPlan{InstanceID: input.InstanceID, StepIndex: input.CurrentStep}

	if input.Status != StatusActive {
		plan.Skip = true
		plan.SkipReason = fmt.Sprintf("instance is %s", input.Status)
		return plan
	}
	if input.CurrentStep != input.ExpectedStep {
		plan.Skip = true
		plan.SkipReason = fmt.Sprintf("stale job for step %d (instance at step %d)", input.ExpectedStep, input.CurrentStep)
		return plan
	}
	if input.CurrentStep < 0 || input.CurrentStep >= len(input.Steps) {
		// The block was edited to a shorter chain; finish rather than stall.
		plan.Logs = append(plan.Logs, effects.LogEffect{
			Level:   "warn",
			Message: "step index beyond block chain, completing instance",
			Fields:  map[string]any{"step": input.CurrentStep, "steps": len(input.Steps)},
		})
		plan.Transition = effects.TransitionEffect{
			InstanceID:   input.InstanceID,
			ExpectedStep: input.CurrentStep,
			Operation:    effects.TransitionComplete,
			At:           input.Now,
		}
		return plan
	}

	step := input.Steps[input.CurrentStep]
	resolution, err := routing.Resolve(step.Route(), input.TargetUserID, input.Roster)
	if err != nil {
		plan.Logs = append(plan.Logs, effects.LogEffect{
			Level:   "warn",
			Message: "routing failed, skipping notification",
			Fields:  map[string]any{"step": input.CurrentStep, "route_type": step.RouteType, "error": err.Error()},
		})
	} else {
		if resolution.FellBack {
			plan.Logs = append(plan.Logs, effects.LogEffect{
				Level:   "info",
				Message: "target has no manager, routed to project admin",
				Fields:  map[string]any{"step": input.CurrentStep, "recipient": resolution.RecipientID},
			})
		}
		plan.Notify = &effects.NotifyEffect{
			RecipientID: resolution.RecipientID,
			Message:     MessageFor(step, input),
			Context:     notificationContext(input),
		}
	}

	last := input.CurrentStep == len(input.Steps)-1
	if last {
		plan.Transition = effects.TransitionEffect{
			InstanceID:   input.InstanceID,
			ExpectedStep: input.CurrentStep,
			Operation:    effects.TransitionComplete,
			At:           input.Now,
		}
		return plan
	}

	plan.Transition = effects.TransitionEffect{
		InstanceID:   input.InstanceID,
		ExpectedStep: input.CurrentStep,
		Operation:    effects.TransitionAdvance,
		At:           input.Now,
	}
	next := input.CurrentStep + 1
	plan.Schedule = &effects.ScheduleEffect{
		Kind:     JobKindStep,
		DedupKey: StepJobKey(input.InstanceID, next),
		RunAt:    NextRunAt(input.StartedAt, input.Steps[next], input.Now),
		Payload:  StepJob{InstanceID: input.InstanceID, Step: next},
	}
	return plan
}

// MessageFor returns the step's configured message, or a generated default.
func MessageFor(step Step, input StepPlanInput) string {
	if step.Message != "" {
		return step.Message
	}
	return DefaultMessage(input.TriggerType, input.BlockName, input.TargetUserID, input.Subject)
}

// DefaultMessage builds the notification text used when a step has none.
func DefaultMessage(triggerType, blockName, targetUserID string, subject Subject) string {
	var what string
	switch triggerType {
	case TriggerBlockerReported:
		what = fmt.Sprintf("%s reported a blocker", targetUserID)
	case TriggerDeadlineRisk:
		what = fmt.Sprintf("%s has work at risk of missing its deadline", targetUserID)
	case TriggerOutputBelowThreshold:
		what = fmt.Sprintf("%s completed fewer items than expected", targetUserID)
	default:
		what = fmt.Sprintf("%s needs attention", targetUserID)
	}
	if !subject.IsZero() {
		what += fmt.Sprintf(" (%s %s)", subject.Kind, subject.ID)
	}
	return fmt.Sprintf("[%s] %s", blockName, what)
}

func notificationContext(input StepPlanInput) map[string]string {
	ctx := map[string]string{
		"instance_id":    input.InstanceID,
		"block_id":       input.BlockID,
		"trigger_type":   input.TriggerType,
		"target_user_id": input.TargetUserID,
		"step":           fmt.Sprintf("%d", input.CurrentStep),
	}
	if !input.Subject.IsZero() {
		ctx["subject_kind"] = input.Subject.Kind
		ctx["subject_id"] = input.Subject.ID
	}
	if input.BlockerID != "" {
		ctx["blocker_id"] = input.BlockerID
	}
	return ctx
}
