package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/pulse/internal/core/roster"
)

func TestInScope(t *testing.T) {
	dev := roster.Member{UserID: "dev", Role: roster.RoleMember, SquadIDs: []string{"SQD-1"}}

	assert.True(t, InScope(Target{Type: TargetAll}, dev))
	assert.True(t, InScope(Target{Type: TargetSquad, SquadID: "SQD-1"}, dev))
	assert.False(t, InScope(Target{Type: TargetSquad, SquadID: "SQD-2"}, dev))
	assert.True(t, InScope(Target{Type: TargetRole, Role: roster.RoleMember}, dev))
	assert.False(t, InScope(Target{Type: TargetRole, Role: roster.RolePM}, dev))
	assert.False(t, InScope(Target{Type: "bogus"}, dev))
}

func TestMembersInScope(t *testing.T) {
	r := roster.New([]roster.Member{
		{UserID: "a", Role: roster.RoleAdmin},
		{UserID: "b", Role: roster.RoleMember, SquadIDs: []string{"S"}},
		{UserID: "c", Role: roster.RoleMember},
	})

	assert.Len(t, MembersInScope(Target{Type: TargetAll}, r), 3)
	assert.Len(t, MembersInScope(Target{Type: TargetRole, Role: roster.RoleMember}, r), 2)
	assert.Len(t, MembersInScope(Target{Type: TargetSquad, SquadID: "S"}, r), 1)
	assert.Empty(t, MembersInScope(Target{Type: TargetSquad, SquadID: "none"}, r))

	assert.True(t, UserInScope(Target{Type: TargetAll}, "a", r))
	assert.False(t, UserInScope(Target{Type: TargetAll}, "stranger", r))
}

func TestInDeadlineWindow(t *testing.T) {
	d := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	assert.True(t, InDeadlineWindow(d.Add(2*day), d, 3), "D+2 is inside a 3-day window")
	assert.False(t, InDeadlineWindow(d.Add(4*day), d, 3), "D+4 is beyond the cutoff")
	assert.False(t, InDeadlineWindow(d.Add(-1*day), d, 3), "overdue items are not selected")
	assert.True(t, InDeadlineWindow(d, d, 3), "window start is inclusive")
	assert.True(t, InDeadlineWindow(d.Add(3*day), d, 3), "cutoff is inclusive")
}

func TestOutputThreshold(t *testing.T) {
	now := time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), OutputPeriodStart(now, 7))

	assert.True(t, BelowThreshold(2, 3))
	assert.False(t, BelowThreshold(3, 3))
	assert.False(t, BelowThreshold(4, 3))
}

func TestClearedTargets(t *testing.T) {
	got := ClearedTargets([]string{"a", "b", "c"}, map[string]bool{"b": true})
	assert.Equal(t, []string{"a", "c"}, got)
	assert.Empty(t, ClearedTargets(nil, nil))
}
