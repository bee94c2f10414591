package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/secondary"
)

// EscalationInstanceRepository implements secondary.EscalationInstanceRepository with SQLite.
//
// The dedup invariant (one active instance per block, target user and
// trigger type) is enforced by the partial unique index
// idx_escalation_instances_active; all transitions are single conditional
// UPDATE statements.
type EscalationInstanceRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewEscalationInstanceRepository creates a new SQLite escalation instance repository.
// logWriter is optional - if nil, no activity logging is performed.
func NewEscalationInstanceRepository(db *sql.DB, logWriter secondary.LogWriter) *EscalationInstanceRepository {
	return &EscalationInstanceRepository{db: db, logWriter: logWriter}
}

const instanceColumns = `id, project_id, escalation_block_id, trigger_type, blocker_id, target_user_id, subject_kind, subject_id, current_step, status, started_at, last_escalated_at, resolved_at, resolution_reason`

// CreateIfAbsent inserts the instance unless an active one already exists
// for its dedup key. The check and the insert are one statement, so
// concurrent detector runs cannot both succeed.
func (r *EscalationInstanceRepository) CreateIfAbsent(ctx context.Context, instance *secondary.EscalationInstanceRecord) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO escalation_instances (`+instanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		instance.ID,
		instance.ProjectID,
		instance.EscalationBlockID,
		instance.TriggerType,
		nullString(instance.BlockerID),
		instance.TargetUserID,
		nullString(instance.Subject.Kind),
		nullString(instance.Subject.ID),
		instance.CurrentStep,
		instance.Status,
		instance.StartedAt.UTC(),
		nullTime(instance.LastEscalatedAt),
		nullTime(instance.ResolvedAt),
		nullString(instance.ResolutionReason),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create escalation instance: %w", err)
	}

	created, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to create escalation instance: %w", err)
	}
	if created && r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, secondary.EntityEscalationInstance, instance.ID)
	}
	return created, nil
}

// FindActive returns the active instance for the dedup key, or nil.
func (r *EscalationInstanceRepository) FindActive(ctx context.Context, blockID, targetUserID, triggerType string) (*secondary.EscalationInstanceRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM escalation_instances
		WHERE escalation_block_id = ? AND target_user_id = ? AND trigger_type = ? AND status = 'active'`,
		blockID, targetUserID, triggerType,
	)
	record, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active escalation instance: %w", err)
	}
	return record, nil
}

// GetByID retrieves an instance by its ID.
func (r *EscalationInstanceRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationInstanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM escalation_instances WHERE id = ?`, id)
	record, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation instance %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation instance: %w", err)
	}
	return record, nil
}

// List retrieves instances matching the given filters, newest first.
func (r *EscalationInstanceRepository) List(ctx context.Context, filters secondary.EscalationInstanceFilters) ([]*secondary.EscalationInstanceRecord, error) {
	query := `SELECT ` + instanceColumns + ` FROM escalation_instances WHERE 1=1`
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}
	if filters.BlockID != "" {
		query += " AND escalation_block_id = ?"
		args = append(args, filters.BlockID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.TargetUserID != "" {
		query += " AND target_user_id = ?"
		args = append(args, filters.TargetUserID)
	}
	if filters.TriggerType != "" {
		query += " AND trigger_type = ?"
		args = append(args, filters.TriggerType)
	}

	query += " ORDER BY started_at DESC, id"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.queryInstances(ctx, query, args...)
}

// ListActiveByBlocker retrieves the active instances tied to a blocker.
func (r *EscalationInstanceRepository) ListActiveByBlocker(ctx context.Context, blockerID string) ([]*secondary.EscalationInstanceRecord, error) {
	return r.queryInstances(ctx,
		`SELECT `+instanceColumns+` FROM escalation_instances WHERE blocker_id = ? AND status = 'active' ORDER BY started_at`,
		blockerID,
	)
}

// AdvanceStep moves an active instance from expectedStep to expectedStep+1.
func (r *EscalationInstanceRepository) AdvanceStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE escalation_instances
		SET current_step = current_step + 1, last_escalated_at = ?
		WHERE id = ? AND status = 'active' AND current_step = ?`,
		at.UTC(), id, expectedStep,
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance escalation instance: %w", err)
	}
	ok, err := rowsAffected(result)
	if ok && r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityEscalationInstance, id, "current_step",
			strconv.Itoa(expectedStep), strconv.Itoa(expectedStep+1))
	}
	return ok, err
}

// CompleteFinalStep resolves an active instance whose last step fired.
func (r *EscalationInstanceRepository) CompleteFinalStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE escalation_instances
		SET status = 'resolved', last_escalated_at = ?, resolved_at = ?, resolution_reason = ?
		WHERE id = ? AND status = 'active' AND current_step = ?`,
		at.UTC(), at.UTC(), escalation.ReasonStepsExhausted, id, expectedStep,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete escalation instance: %w", err)
	}
	ok, err := rowsAffected(result)
	if ok && r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityEscalationInstance, id, "status",
			escalation.StatusActive, escalation.StatusResolved+": "+escalation.ReasonStepsExhausted)
	}
	return ok, err
}

// MarkResolved resolves an active instance.
func (r *EscalationInstanceRepository) MarkResolved(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE escalation_instances
		SET status = 'resolved', resolved_at = ?, resolution_reason = ?
		WHERE id = ? AND status = 'active'`,
		at.UTC(), nullString(reason), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to resolve escalation instance: %w", err)
	}
	ok, err := rowsAffected(result)
	if ok && r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityEscalationInstance, id, "status",
			escalation.StatusActive, escalation.StatusResolved+": "+reason)
	}
	return ok, err
}

func (r *EscalationInstanceRepository) queryInstances(ctx context.Context, query string, args ...any) ([]*secondary.EscalationInstanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation instances: %w", err)
	}
	defer rows.Close()

	var instances []*secondary.EscalationInstanceRecord
	for rows.Next() {
		record, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation instance: %w", err)
		}
		instances = append(instances, record)
	}

	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*secondary.EscalationInstanceRecord, error) {
	var (
		blockerID        sql.NullString
		subjectKind      sql.NullString
		subjectID        sql.NullString
		lastEscalatedAt  sql.NullTime
		resolvedAt       sql.NullTime
		resolutionReason sql.NullString
	)

	record := &secondary.EscalationInstanceRecord{}
	err := row.Scan(
		&record.ID, &record.ProjectID, &record.EscalationBlockID, &record.TriggerType,
		&blockerID, &record.TargetUserID, &subjectKind, &subjectID, &record.CurrentStep,
		&record.Status, &record.StartedAt, &lastEscalatedAt, &resolvedAt, &resolutionReason,
	)
	if err != nil {
		return nil, err
	}

	record.BlockerID = blockerID.String
	record.Subject = escalation.Subject{Kind: subjectKind.String, ID: subjectID.String}
	record.StartedAt = record.StartedAt.UTC()
	record.LastEscalatedAt = timeOrZero(lastEscalatedAt)
	record.ResolvedAt = timeOrZero(resolvedAt)
	record.ResolutionReason = resolutionReason.String

	return record, nil
}

// Ensure EscalationInstanceRepository implements the interface
var _ secondary.EscalationInstanceRepository = (*EscalationInstanceRepository)(nil)
