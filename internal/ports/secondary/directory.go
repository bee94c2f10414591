package secondary

import (
	"context"
	"time"

	"github.com/example/pulse/internal/core/roster"
)

// MembershipProvider defines the secondary port for project membership,
// roles, squads and reporting lines. Owned by another subsystem.
type MembershipProvider interface {
	// ListMembers returns every member of a project with role, squads and
	// reports-to link.
	ListMembers(ctx context.Context, projectID string) ([]roster.Member, error)

	// Email returns a user's address, or "" if none is known.
	Email(ctx context.Context, userID string) (string, error)
}

// WorkItemProvider defines the secondary port for tasks and deliverables.
// Owned by another subsystem.
type WorkItemProvider interface {
	// ListOpenDueItems returns incomplete tasks and deliverables of a project
	// with a due date in [from, to].
	ListOpenDueItems(ctx context.Context, projectID string, from, to time.Time) ([]WorkItem, error)

	// CountCompleted returns how many items a user completed in [from, to].
	CountCompleted(ctx context.Context, projectID, userID string, from, to time.Time) (int, error)
}

// WorkItem is a task or deliverable as seen by the deadline-risk detector.
type WorkItem struct {
	Kind       string // escalation.SubjectTask or escalation.SubjectDeliverable
	ID         string
	ProjectID  string
	Title      string
	AssigneeID string // Empty string means unassigned
	DueAt      time.Time
}
