package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/ports/secondary"
)

// MembershipRepository implements secondary.MembershipProvider over the
// project_members, squads and users tables.
type MembershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new SQLite membership provider.
func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ListMembers returns every member of a project with role, squads and reports-to link.
func (r *MembershipRepository) ListMembers(ctx context.Context, projectID string) ([]roster.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT pm.user_id, pm.role, pm.reports_to, u.email, pm.joined_at
		FROM project_members pm
		LEFT JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = ?
		ORDER BY pm.joined_at, pm.user_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}

	var members []roster.Member
	index := map[string]int{}
	for rows.Next() {
		var (
			m         roster.Member
			reportsTo sql.NullString
			email     sql.NullString
		)
		if err := rows.Scan(&m.UserID, &m.Role, &reportsTo, &email, &m.JoinedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		m.ReportsTo = reportsTo.String
		m.Email = email.String
		m.JoinedAt = m.JoinedAt.UTC()
		index[m.UserID] = len(members)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	rows.Close()

	// Squad memberships are loaded separately; the pool holds one connection
	// and the member rows must be closed first.
	squadRows, err := r.db.QueryContext(ctx,
		`SELECT sm.squad_id, sm.user_id
		FROM squad_members sm
		JOIN squads s ON s.id = sm.squad_id
		WHERE s.project_id = ?
		ORDER BY sm.squad_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list squad members: %w", err)
	}
	defer squadRows.Close()

	for squadRows.Next() {
		var squadID, userID string
		if err := squadRows.Scan(&squadID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan squad member: %w", err)
		}
		if i, ok := index[userID]; ok {
			members[i].SquadIDs = append(members[i].SquadIDs, squadID)
		}
	}

	return members, squadRows.Err()
}

// Email returns a user's address, or "" if none is known.
func (r *MembershipRepository) Email(ctx context.Context, userID string) (string, error) {
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = ?", userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email.String, nil
}

// WorkItemRepository implements secondary.WorkItemProvider over the tasks
// and deliverables tables.
type WorkItemRepository struct {
	db *sql.DB
}

// NewWorkItemRepository creates a new SQLite work item provider.
func NewWorkItemRepository(db *sql.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

// workItemTables maps each subject kind to its table and completed status.
var workItemTables = []struct {
	kind, table, doneStatus string
}{
	{escalation.SubjectTask, "tasks", "done"},
	{escalation.SubjectDeliverable, "deliverables", "delivered"},
}

// ListOpenDueItems returns incomplete tasks and deliverables due in [from, to].
func (r *WorkItemRepository) ListOpenDueItems(ctx context.Context, projectID string, from, to time.Time) ([]secondary.WorkItem, error) {
	var items []secondary.WorkItem
	for _, t := range workItemTables {
		found, err := r.listOpenDue(ctx, t.kind, t.table, t.doneStatus, projectID, from, to)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

func (r *WorkItemRepository) listOpenDue(ctx context.Context, kind, table, doneStatus, projectID string, from, to time.Time) ([]secondary.WorkItem, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, title, assignee_id, due_at FROM %s
		WHERE project_id = ? AND status != ? AND due_at IS NOT NULL AND due_at >= ? AND due_at <= ?
		ORDER BY due_at, id`, table),
		projectID, doneStatus, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list due %s: %w", table, err)
	}
	defer rows.Close()

	var items []secondary.WorkItem
	for rows.Next() {
		var (
			item     = secondary.WorkItem{Kind: kind, ProjectID: projectID}
			assignee sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Title, &assignee, &item.DueAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		item.AssigneeID = assignee.String
		item.DueAt = item.DueAt.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountCompleted returns how many tasks and deliverables a user completed in [from, to].
func (r *WorkItemRepository) CountCompleted(ctx context.Context, projectID, userID string, from, to time.Time) (int, error) {
	total := 0
	for _, t := range workItemTables {
		var count int
		err := r.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s
			WHERE project_id = ? AND assignee_id = ? AND status = ?
			AND completed_at IS NOT NULL AND completed_at >= ? AND completed_at <= ?`, t.table),
			projectID, userID, t.doneStatus, from.UTC(), to.UTC(),
		).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("failed to count completed %s: %w", t.table, err)
		}
		total += count
	}
	return total, nil
}

// Ensure the providers implement their interfaces
var (
	_ secondary.MembershipProvider = (*MembershipRepository)(nil)
	_ secondary.WorkItemProvider   = (*WorkItemRepository)(nil)
)
