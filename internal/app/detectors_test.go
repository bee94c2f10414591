package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

const day = 24 * time.Hour

func task(id, assignee string, due time.Time) secondary.WorkItem {
	return secondary.WorkItem{Kind: escalation.SubjectTask, ID: id, ProjectID: "PROJ-001", AssigneeID: assignee, DueAt: due}
}

func addDeadlineBlock(h *harness, id string, warningDays int, target escalation.Target) {
	h.addBlock(id, escalation.TriggerDeadlineRisk, target, step(0, escalation.RouteReportsTo))
	h.blocks.blocks[id].DeadlineWarningDays = warningDays
}

func addOutputBlock(h *harness, id string, threshold, periodDays int, target escalation.Target) {
	h.addBlock(id, escalation.TriggerOutputBelowThreshold, target, step(0, escalation.RouteReportsTo))
	h.blocks.blocks[id].OutputThreshold = threshold
	h.blocks.blocks[id].OutputPeriodDays = periodDays
}

func activeTargets(h *harness) []string {
	var out []string
	for _, inst := range h.instances.all() {
		if inst.Status == escalation.StatusActive {
			out = append(out, inst.TargetUserID)
		}
	}
	return out
}

func TestScanDeadlineRisk_SelectsItemsInWindow(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.workItems.items = []secondary.WorkItem{
		task("TASK-001", "USR-004", t0.Add(2*day)),
		task("TASK-002", "USR-005", t0.Add(4*day)),
		task("TASK-003", "USR-006", t0.Add(-day)),
	}

	report, err := h.detectors.ScanDeadlineRisk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Blocks)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, []string{"USR-004"}, activeTargets(h))

	inst := h.instances.all()[0]
	assert.Equal(t, escalation.Subject{Kind: escalation.SubjectTask, ID: "TASK-001"}, inst.Subject)
	assert.Equal(t, escalation.TriggerDeadlineRisk, inst.TriggerType)
}

func TestScanDeadlineRisk_OneInstancePerAssignee(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.workItems.items = []secondary.WorkItem{
		task("TASK-001", "USR-004", t0.Add(2*day)),
		{Kind: escalation.SubjectDeliverable, ID: "DLV-001", ProjectID: "PROJ-001", AssigneeID: "USR-004", DueAt: t0.Add(day)},
		task("TASK-009", "", t0.Add(day)),
	}
	// Provider order is due date ascending.
	h.workItems.items[0], h.workItems.items[1] = h.workItems.items[1], h.workItems.items[0]

	report, err := h.detectors.ScanDeadlineRisk(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Candidates)
	require.Len(t, h.instances.all(), 1)
	assert.Equal(t, "deliverable:DLV-001", h.instances.all()[0].Subject.String())
}

func TestScanDeadlineRisk_RepeatedPassesDeduplicate(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.workItems.items = []secondary.WorkItem{task("TASK-001", "USR-004", t0.Add(2*day))}
	ctx := context.Background()

	_, err := h.detectors.ScanDeadlineRisk(ctx)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	report, err := h.detectors.ScanDeadlineRisk(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Duplicates)
	assert.Len(t, h.instances.all(), 1)
}

func TestScanDeadlineRisk_ResolvesClearedTargets(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.workItems.items = []secondary.WorkItem{
		task("TASK-001", "USR-004", t0.Add(2*day)),
		task("TASK-002", "USR-005", t0.Add(day)),
	}
	ctx := context.Background()
	_, err := h.detectors.ScanDeadlineRisk(ctx)
	require.NoError(t, err)

	// USR-005 finished the task.
	h.workItems.items = h.workItems.items[:1]
	report, err := h.detectors.ScanDeadlineRisk(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, []string{"USR-004"}, activeTargets(h))
	for _, inst := range h.instances.all() {
		if inst.TargetUserID == "USR-005" {
			assert.Equal(t, escalation.ReasonConditionCleared, inst.ResolutionReason)
		}
	}
}

func TestScanDeadlineRisk_TargetScope(t *testing.T) {
	tests := []struct {
		name   string
		target escalation.Target
		want   []string
	}{
		{"all", allMembers, []string{"USR-003", "USR-004", "USR-005"}},
		{"squad", escalation.Target{Type: escalation.TargetSquad, SquadID: "SQD-001"}, []string{"USR-003", "USR-004"}},
		{"role", escalation.Target{Type: escalation.TargetRole, Role: roster.RoleLead}, []string{"USR-003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			addDeadlineBlock(h, "EBLK-001", 3, tt.target)
			h.workItems.items = []secondary.WorkItem{
				task("TASK-001", "USR-003", t0.Add(day)),
				task("TASK-002", "USR-004", t0.Add(day)),
				task("TASK-003", "USR-005", t0.Add(day)),
			}

			_, err := h.detectors.ScanDeadlineRisk(context.Background())
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, activeTargets(h))
		})
	}
}

func TestScanDeadlineRisk_SkipsDisabledBlocks(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.blocks.blocks["EBLK-001"].Enabled = false
	h.workItems.items = []secondary.WorkItem{task("TASK-001", "USR-004", t0.Add(day))}

	report, err := h.detectors.ScanDeadlineRisk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Blocks)
	assert.Empty(t, h.instances.all())
}

func TestScanDeadlineRisk_RosterFailureIsCounted(t *testing.T) {
	h := newHarness(t)
	addDeadlineBlock(h, "EBLK-001", 3, allMembers)
	h.members.err = errBoom

	report, err := h.detectors.ScanDeadlineRisk(context.Background())
	require.NoError(t, err, "per-item failures do not abort the pass")
	assert.Equal(t, 1, report.Errors)
}

func TestScanDeadlineRisk_BlockListFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.blocks.listErr = errBoom

	_, err := h.detectors.ScanDeadlineRisk(context.Background())
	assert.ErrorIs(t, err, errBoom)
}

func TestScanOutputThreshold(t *testing.T) {
	h := newHarness(t)
	addOutputBlock(h, "EBLK-001", 3, 7, escalation.Target{Type: escalation.TargetRole, Role: roster.RoleMember})
	h.workItems.completed = map[string]int{"USR-004": 2, "USR-005": 4, "USR-006": 3}

	report, err := h.detectors.ScanOutputThreshold(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, []string{"USR-004"}, activeTargets(h))
	assert.True(t, h.instances.all()[0].Subject.IsZero())
}

func TestScanOutputThreshold_CatchingUpResolves(t *testing.T) {
	h := newHarness(t)
	addOutputBlock(h, "EBLK-001", 3, 7, escalation.Target{Type: escalation.TargetRole, Role: roster.RoleMember})
	h.workItems.completed = map[string]int{"USR-004": 2, "USR-005": 1, "USR-006": 5}
	ctx := context.Background()

	_, err := h.detectors.ScanOutputThreshold(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"USR-004", "USR-005"}, activeTargets(h))

	h.workItems.completed["USR-004"] = 3
	h.workItems.countErr["USR-005"] = errBoom
	report, err := h.detectors.ScanOutputThreshold(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, []string{"USR-005"}, activeTargets(h), "an unknown count keeps the escalation running")
}

func TestOnBlockerReported(t *testing.T) {
	h := newHarness(t)
	h.addBlock("EBLK-001", escalation.TriggerBlockerReported, escalation.Target{Type: escalation.TargetSquad, SquadID: "SQD-001"},
		step(0, escalation.RouteReportsTo))
	h.addBlock("EBLK-002", escalation.TriggerBlockerReported, allMembers, step(0, escalation.RouteReportsTo))
	addDeadlineBlock(h, "EBLK-003", 3, allMembers)
	ctx := context.Background()

	report, err := h.detectors.OnBlockerReported(ctx, &primary.Blocker{
		ID: "BLK-001", ProjectID: "PROJ-001", ReporterID: "USR-005", TaskID: "TASK-002",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Blocks)
	assert.Equal(t, 1, report.Candidates, "USR-005 is outside SQD-001")
	require.Len(t, h.instances.all(), 1)
	inst := h.instances.all()[0]
	assert.Equal(t, "EBLK-002", inst.EscalationBlockID)
	assert.Equal(t, "BLK-001", inst.BlockerID)
	assert.Equal(t, "task:TASK-002", inst.Subject.String())
}

func TestOnBlockerReported_NoBlocks(t *testing.T) {
	h := newHarness(t)

	report, err := h.detectors.OnBlockerReported(context.Background(), &primary.Blocker{
		ID: "BLK-001", ProjectID: "PROJ-001", ReporterID: "USR-004",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Blocks)
	assert.Empty(t, h.instances.all())
}
