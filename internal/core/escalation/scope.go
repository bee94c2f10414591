package escalation

import (
	"time"

	"github.com/example/pulse/internal/core/roster"
)

// InScope reports whether member falls within a block's target scope.
// The same predicate is shared by all three trigger detectors.
func InScope(target Target, member roster.Member) bool {
	switch target.Type {
	case TargetAll:
		return true
	case TargetSquad:
		return member.InSquad(target.SquadID)
	case TargetRole:
		return member.Role == target.Role
	}
	return false
}

// MembersInScope returns the roster members matching target, in roster order.
func MembersInScope(target Target, r *roster.Roster) []roster.Member {
	var out []roster.Member
	for _, m := range r.Members() {
		if InScope(target, m) {
			out = append(out, m)
		}
	}
	return out
}

// UserInScope reports whether userID is a project member within target.
// Non-members are never in scope.
func UserInScope(target Target, userID string, r *roster.Roster) bool {
	m, ok := r.Get(userID)
	if !ok {
		return false
	}
	return InScope(target, m)
}

// DeadlineCutoff returns the end of the deadline-risk window starting at now.
func DeadlineCutoff(now time.Time, warningDays int) time.Time {
	return now.AddDate(0, 0, warningDays)
}

// InDeadlineWindow reports whether due falls in [now, now+warningDays].
// The window is forward-looking only: overdue items are not selected.
func InDeadlineWindow(due, now time.Time, warningDays int) bool {
	if due.Before(now) {
		return false
	}
	return !due.After(DeadlineCutoff(now, warningDays))
}

// OutputPeriodStart returns the start of the trailing output period ending at now.
func OutputPeriodStart(now time.Time, periodDays int) time.Time {
	return now.AddDate(0, 0, -periodDays)
}

// BelowThreshold reports whether a completed-item count is under threshold.
func BelowThreshold(completed, threshold int) bool {
	return completed < threshold
}

// ClearedTargets returns the users with an active instance who are no longer
// at risk, preserving the order of active.
func ClearedTargets(active []string, atRisk map[string]bool) []string {
	var out []string
	for _, userID := range active {
		if !atRisk[userID] {
			out = append(out, userID)
		}
	}
	return out
}
