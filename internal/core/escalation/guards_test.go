package escalation

import (
	"strings"
	"testing"

	"github.com/example/pulse/internal/core/roster"
)

func validBlock() BlockContext {
	return BlockContext{
		ProjectID:   "PROJ-001",
		Name:        "Blocker chain",
		TriggerType: TriggerBlockerReported,
		Target:      Target{Type: TargetAll},
		Steps: []Step{
			{DelayMinutes: 0, RouteType: RouteUser, RouteUserID: "USR-001"},
			{DelayMinutes: 240, RouteType: RouteRole, RouteRole: roster.RolePM},
		},
	}
}

func TestCanSaveBlock(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*BlockContext)
		wantAllowed bool
		wantReason  string
	}{
		{"valid blocker block", func(*BlockContext) {}, true, ""},
		{"missing name", func(c *BlockContext) { c.Name = "" }, false, "name is required"},
		{"missing project", func(c *BlockContext) { c.ProjectID = "" }, false, "project is required"},
		{"unknown trigger", func(c *BlockContext) { c.TriggerType = "moon_phase" }, false, "unknown trigger type"},
		{"deadline without warning days", func(c *BlockContext) { c.TriggerType = TriggerDeadlineRisk }, false, "deadlineWarningDays"},
		{"deadline with warning days", func(c *BlockContext) {
			c.TriggerType = TriggerDeadlineRisk
			c.DeadlineWarningDays = 3
		}, true, ""},
		{"output without threshold", func(c *BlockContext) {
			c.TriggerType = TriggerOutputBelowThreshold
			c.OutputPeriodDays = 7
		}, false, "outputThreshold"},
		{"output without period", func(c *BlockContext) {
			c.TriggerType = TriggerOutputBelowThreshold
			c.OutputThreshold = 3
		}, false, "outputPeriodDays"},
		{"squad target without id", func(c *BlockContext) { c.Target = Target{Type: TargetSquad} }, false, "targetSquadId is required"},
		{"dangling squad", func(c *BlockContext) { c.Target = Target{Type: TargetSquad, SquadID: "SQD-404"} }, false, "squad SQD-404 not found"},
		{"existing squad", func(c *BlockContext) {
			c.Target = Target{Type: TargetSquad, SquadID: "SQD-001"}
			c.SquadExists = true
		}, true, ""},
		{"unknown target role", func(c *BlockContext) { c.Target = Target{Type: TargetRole, Role: "wizard"} }, false, "unknown target role"},
		{"unknown target type", func(c *BlockContext) { c.Target = Target{Type: "everyone"} }, false, "unknown target type"},
		{"empty steps", func(c *BlockContext) { c.Steps = nil }, false, "at least one escalation step"},
		{"too many steps", func(c *BlockContext) {
			c.Steps = make([]Step, MaxSteps+1)
			for i := range c.Steps {
				c.Steps[i] = Step{RouteType: RouteReportsTo}
			}
		}, false, "at most 10"},
		{"negative delay", func(c *BlockContext) { c.Steps[1].DelayMinutes = -5 }, false, "step 1: delayMinutes must not be negative"},
		{"unknown route role", func(c *BlockContext) { c.Steps[1].RouteRole = "cto" }, false, "step 1: unknown route role"},
		{"user route without user", func(c *BlockContext) { c.Steps[0].RouteUserID = "" }, false, "step 0: routeUserId is required"},
		{"unknown route type", func(c *BlockContext) { c.Steps[0].RouteType = "fax" }, false, "step 0: unknown route type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := validBlock()
			tt.mutate(&ctx)

			result := CanSaveBlock(ctx)

			if result.Allowed != tt.wantAllowed {
				t.Fatalf("Allowed = %v, want %v (reason: %s)", result.Allowed, tt.wantAllowed, result.Reason)
			}
			if !tt.wantAllowed && !strings.Contains(result.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want it to contain %q", result.Reason, tt.wantReason)
			}
			if tt.wantAllowed && result.Error() != nil {
				t.Errorf("Error() = %v, want nil", result.Error())
			}
		})
	}
}

func TestCanResolveInstance(t *testing.T) {
	if r := CanResolveInstance(ResolveContext{InstanceID: "i-1", Status: StatusActive}); !r.Allowed {
		t.Errorf("active instance should be resolvable, got %q", r.Reason)
	}
	r := CanResolveInstance(ResolveContext{InstanceID: "i-1", Status: StatusResolved})
	if r.Allowed {
		t.Fatal("resolved instance should not be resolvable")
	}
	if !strings.Contains(r.Reason, "not active") {
		t.Errorf("Reason = %q", r.Reason)
	}
}
