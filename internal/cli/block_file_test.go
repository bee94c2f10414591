package cli

import (
	"strings"
	"testing"

	"github.com/example/pulse/internal/core/escalation"
)

const twoBlocks = `
project: PROJ-001
name: Blocked work
trigger: blocker_reported
steps:
  - {delayMinutes: 0, routeType: reports_to}
  - {delayMinutes: 240, routeType: role, routeRole: pm, message: still blocked}
---
id: EBLK-007
project: PROJ-001
name: Deadline watch
trigger: deadline_risk
deadlineWarningDays: 3
target:
  type: squad
  squadId: SQD-001
enabled: false
steps:
  - {delayMinutes: 0, routeType: user, routeUserId: USR-002}
`

func TestParseBlockFiles_MultiDocument(t *testing.T) {
	defs, err := parseBlockFiles(strings.NewReader(twoBlocks))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	first := defs[0].request()
	if defs[0].ID != "" {
		t.Errorf("first document should create, got id %q", defs[0].ID)
	}
	if first.Target.Type != escalation.TargetAll {
		t.Errorf("target should default to all, got %q", first.Target.Type)
	}
	if !first.Enabled {
		t.Error("enabled should default to true")
	}
	if len(first.Steps) != 2 || first.Steps[1].RouteRole != "pm" || first.Steps[1].Message != "still blocked" {
		t.Errorf("unexpected steps: %+v", first.Steps)
	}

	second := defs[1].request()
	if defs[1].ID != "EBLK-007" {
		t.Errorf("expected id EBLK-007, got %q", defs[1].ID)
	}
	if second.Enabled {
		t.Error("explicit enabled: false should be kept")
	}
	if second.DeadlineWarningDays != 3 {
		t.Errorf("expected 3 warning days, got %d", second.DeadlineWarningDays)
	}
	if second.Target.Type != escalation.TargetSquad || second.Target.SquadID != "SQD-001" {
		t.Errorf("unexpected target: %+v", second.Target)
	}
	if second.Steps[0].RouteUserID != "USR-002" {
		t.Errorf("unexpected route user: %q", second.Steps[0].RouteUserID)
	}
}

func TestParseBlockFiles_UnknownField(t *testing.T) {
	_, err := parseBlockFiles(strings.NewReader("name: x\ntrigger: deadline_risk\nwarningDays: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "document 1") {
		t.Errorf("error should name the document, got %q", err.Error())
	}
}

func TestParseBlockFiles_Empty(t *testing.T) {
	if _, err := parseBlockFiles(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}
