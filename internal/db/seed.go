package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with a small demo project: a team
// with a reporting line, two squads, and work items due around now.
func SeedFixtures(ctx context.Context, database *sql.DB, now time.Time) error {
	now = now.UTC()
	day := 24 * time.Hour

	if _, err := database.ExecContext(ctx,
		"INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)",
		"PROJ-001", "Apollo", now.Add(-90*day),
	); err != nil {
		return fmt.Errorf("seed projects: %w", err)
	}

	users := []struct{ id, name, email, role, reportsTo string }{
		{"USR-001", "Ada Admin", "ada@example.com", "admin", ""},
		{"USR-002", "Pat PM", "pat@example.com", "pm", "USR-001"},
		{"USR-003", "Lee Lead", "lee@example.com", "lead", "USR-002"},
		{"USR-004", "Mo Member", "mo@example.com", "member", "USR-003"},
		{"USR-005", "Nia Member", "nia@example.com", "member", "USR-003"},
		{"USR-006", "Oz Contractor", "oz@example.com", "member", ""},
	}
	for i, u := range users {
		if _, err := database.ExecContext(ctx,
			"INSERT INTO users (id, name, email) VALUES (?, ?, ?)",
			u.id, u.name, u.email,
		); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		var reportsTo sql.NullString
		if u.reportsTo != "" {
			reportsTo = sql.NullString{String: u.reportsTo, Valid: true}
		}
		if _, err := database.ExecContext(ctx,
			"INSERT INTO project_members (project_id, user_id, role, reports_to, joined_at) VALUES (?, ?, ?, ?, ?)",
			"PROJ-001", u.id, u.role, reportsTo, now.Add(-time.Duration(60-i)*day),
		); err != nil {
			return fmt.Errorf("seed project members: %w", err)
		}
	}

	squads := []struct {
		id, name string
		members  []string
	}{
		{"SQD-001", "Platform", []string{"USR-003", "USR-004"}},
		{"SQD-002", "Growth", []string{"USR-005", "USR-006"}},
	}
	for _, s := range squads {
		if _, err := database.ExecContext(ctx,
			"INSERT INTO squads (id, project_id, name) VALUES (?, ?, ?)",
			s.id, "PROJ-001", s.name,
		); err != nil {
			return fmt.Errorf("seed squads: %w", err)
		}
		for _, m := range s.members {
			if _, err := database.ExecContext(ctx,
				"INSERT INTO squad_members (squad_id, user_id) VALUES (?, ?)",
				s.id, m,
			); err != nil {
				return fmt.Errorf("seed squad members: %w", err)
			}
		}
	}

	tasks := []struct {
		id, title, assignee, status string
		due                         time.Duration
		completedAgo                time.Duration
	}{
		{"TASK-001", "Migrate billing tables", "USR-004", "in_progress", 2 * day, 0},
		{"TASK-002", "Write runbook", "USR-005", "todo", 10 * day, 0},
		{"TASK-003", "Fix login redirect", "USR-004", "done", -3 * day, 4 * day},
		{"TASK-004", "Refresh onboarding copy", "USR-006", "done", -1 * day, 2 * day},
	}
	for _, t := range tasks {
		var completedAt sql.NullTime
		if t.completedAgo > 0 {
			completedAt = sql.NullTime{Time: now.Add(-t.completedAgo), Valid: true}
		}
		if _, err := database.ExecContext(ctx,
			"INSERT INTO tasks (id, project_id, title, assignee_id, status, due_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			t.id, "PROJ-001", t.title, t.assignee, t.status, now.Add(t.due), completedAt,
		); err != nil {
			return fmt.Errorf("seed tasks: %w", err)
		}
	}

	if _, err := database.ExecContext(ctx,
		"INSERT INTO deliverables (id, project_id, title, assignee_id, status, due_at) VALUES (?, ?, ?, ?, ?, ?)",
		"DLV-001", "PROJ-001", "Q3 launch checklist", "USR-003", "in_progress", now.Add(1*day),
	); err != nil {
		return fmt.Errorf("seed deliverables: %w", err)
	}

	return nil
}
