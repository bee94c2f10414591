package escalation

import (
	"fmt"

	"github.com/example/pulse/internal/core/roster"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// BlockContext provides context for block create/update guards.
// SquadExists is pre-fetched by the caller and only consulted for squad targets.
type BlockContext struct {
	ProjectID           string
	Name                string
	TriggerType         string
	DeadlineWarningDays int
	OutputThreshold     int
	OutputPeriodDays    int
	Target              Target
	Steps               []Step
	SquadExists         bool
}

// CanSaveBlock evaluates whether a block definition is valid.
// Rules:
// - Project and name are required
// - Trigger type must be known, with positive parameters for its trigger
// - Target must be consistent with its type and reference an existing squad or known role
// - 1..MaxSteps steps, each valid per CanUseStep
func CanSaveBlock(ctx BlockContext) GuardResult {
	if ctx.ProjectID == "" {
		return deny("project is required")
	}
	if ctx.Name == "" {
		return deny("name is required")
	}

	switch ctx.TriggerType {
	case TriggerBlockerReported:
	case TriggerDeadlineRisk:
		if ctx.DeadlineWarningDays <= 0 {
			return deny("deadlineWarningDays must be positive for %s blocks (got %d)", ctx.TriggerType, ctx.DeadlineWarningDays)
		}
	case TriggerOutputBelowThreshold:
		if ctx.OutputThreshold <= 0 {
			return deny("outputThreshold must be positive for %s blocks (got %d)", ctx.TriggerType, ctx.OutputThreshold)
		}
		if ctx.OutputPeriodDays <= 0 {
			return deny("outputPeriodDays must be positive for %s blocks (got %d)", ctx.TriggerType, ctx.OutputPeriodDays)
		}
	default:
		return deny("unknown trigger type %q", ctx.TriggerType)
	}

	switch ctx.Target.Type {
	case TargetAll:
	case TargetSquad:
		if ctx.Target.SquadID == "" {
			return deny("targetSquadId is required for squad targets")
		}
		if !ctx.SquadExists {
			return deny("squad %s not found in project %s", ctx.Target.SquadID, ctx.ProjectID)
		}
	case TargetRole:
		if !roster.IsKnownRole(ctx.Target.Role) {
			return deny("unknown target role %q", ctx.Target.Role)
		}
	default:
		return deny("unknown target type %q", ctx.Target.Type)
	}

	if len(ctx.Steps) == 0 {
		return deny("at least one escalation step is required")
	}
	if len(ctx.Steps) > MaxSteps {
		return deny("at most %d escalation steps are allowed (got %d)", MaxSteps, len(ctx.Steps))
	}
	for i, step := range ctx.Steps {
		if r := CanUseStep(step); !r.Allowed {
			return deny("step %d: %s", i, r.Reason)
		}
	}

	return GuardResult{Allowed: true}
}

// CanUseStep evaluates whether a single step is well formed.
func CanUseStep(step Step) GuardResult {
	if step.DelayMinutes < 0 {
		return deny("delayMinutes must not be negative (got %d)", step.DelayMinutes)
	}
	switch step.RouteType {
	case RouteReportsTo:
	case RouteRole:
		if !roster.IsKnownRole(step.RouteRole) {
			return deny("unknown route role %q", step.RouteRole)
		}
	case RouteUser:
		if step.RouteUserID == "" {
			return deny("routeUserId is required for user routes")
		}
	default:
		return deny("unknown route type %q", step.RouteType)
	}
	return GuardResult{Allowed: true}
}

// ResolveContext provides context for manual resolution guards.
type ResolveContext struct {
	InstanceID string
	Status     string
}

// CanResolveInstance evaluates whether an instance can be resolved manually.
// Rules:
// - Status must be "active"
func CanResolveInstance(ctx ResolveContext) GuardResult {
	if ctx.Status != StatusActive {
		return deny("escalation instance %s is not active (current status: %s)", ctx.InstanceID, ctx.Status)
	}
	return GuardResult{Allowed: true}
}
