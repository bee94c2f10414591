package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/secondary"
)

// EscalationBlockRepository implements secondary.EscalationBlockRepository with SQLite.
type EscalationBlockRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewEscalationBlockRepository creates a new SQLite escalation block repository.
// logWriter is optional - if nil, no activity logging is performed.
func NewEscalationBlockRepository(db *sql.DB, logWriter secondary.LogWriter) *EscalationBlockRepository {
	return &EscalationBlockRepository{db: db, logWriter: logWriter}
}

const blockColumns = `id, project_id, name, description, trigger_type, deadline_warning_days, output_threshold, output_period_days, target_type, target_squad_id, target_role, steps, enabled, created_at, updated_at`

// Create persists a new block.
func (r *EscalationBlockRepository) Create(ctx context.Context, block *secondary.EscalationBlockRecord) error {
	steps, err := json.Marshal(block.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode escalation steps: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO escalation_blocks (`+blockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		block.ID,
		block.ProjectID,
		block.Name,
		nullString(block.Description),
		block.TriggerType,
		block.DeadlineWarningDays,
		block.OutputThreshold,
		block.OutputPeriodDays,
		block.TargetType,
		nullString(block.TargetSquadID),
		nullString(block.TargetRole),
		string(steps),
		block.Enabled,
		block.CreatedAt.UTC(),
		block.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation block: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, secondary.EntityEscalationBlock, block.ID)
	}
	return nil
}

// GetByID retrieves a block by its ID.
func (r *EscalationBlockRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationBlockRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM escalation_blocks WHERE id = ?`, id)
	record, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation block: %w", err)
	}
	return record, nil
}

// Update replaces the mutable fields of an existing block.
func (r *EscalationBlockRepository) Update(ctx context.Context, block *secondary.EscalationBlockRecord) error {
	steps, err := json.Marshal(block.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode escalation steps: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE escalation_blocks SET
			name = ?, description = ?, trigger_type = ?,
			deadline_warning_days = ?, output_threshold = ?, output_period_days = ?,
			target_type = ?, target_squad_id = ?, target_role = ?,
			steps = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		block.Name,
		nullString(block.Description),
		block.TriggerType,
		block.DeadlineWarningDays,
		block.OutputThreshold,
		block.OutputPeriodDays,
		block.TargetType,
		nullString(block.TargetSquadID),
		nullString(block.TargetRole),
		string(steps),
		block.Enabled,
		block.UpdatedAt.UTC(),
		block.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation block: %w", err)
	}

	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("escalation block %s: %w", block.ID, secondary.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityEscalationBlock, block.ID, "definition", "", block.Name)
	}
	return nil
}

// Delete removes a block. Instances are removed by ON DELETE CASCADE.
func (r *EscalationBlockRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM escalation_blocks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete escalation block: %w", err)
	}

	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogDelete(ctx, secondary.EntityEscalationBlock, id)
	}
	return nil
}

// List retrieves blocks matching the given filters.
func (r *EscalationBlockRepository) List(ctx context.Context, filters secondary.EscalationBlockFilters) ([]*secondary.EscalationBlockRecord, error) {
	query := `SELECT ` + blockColumns + ` FROM escalation_blocks WHERE 1=1`
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}
	if filters.TriggerType != "" {
		query += " AND trigger_type = ?"
		args = append(args, filters.TriggerType)
	}
	if filters.EnabledOnly {
		query += " AND enabled = 1"
	}

	query += " ORDER BY project_id, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*secondary.EscalationBlockRecord
	for rows.Next() {
		record, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation block: %w", err)
		}
		blocks = append(blocks, record)
	}

	return blocks, rows.Err()
}

// SetEnabled toggles a block on or off.
func (r *EscalationBlockRepository) SetEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE escalation_blocks SET enabled = ?, updated_at = ? WHERE id = ?",
		enabled, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update escalation block: %w", err)
	}

	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityEscalationBlock, id, "enabled", strconv.FormatBool(!enabled), strconv.FormatBool(enabled))
	}
	return nil
}

// GetNextID returns the next available block ID.
func (r *EscalationBlockRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("EBLK-") + 1
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM escalation_blocks", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next escalation block ID: %w", err)
	}

	return fmt.Sprintf("EBLK-%03d", maxID+1), nil
}

// ProjectExists checks if a project exists.
func (r *EscalationBlockRepository) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", projectID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}
	return count > 0, nil
}

// SquadExists checks if a squad exists within a project.
func (r *EscalationBlockRepository) SquadExists(ctx context.Context, projectID, squadID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM squads WHERE id = ? AND project_id = ?", squadID, projectID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check squad existence: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*secondary.EscalationBlockRecord, error) {
	var (
		description   sql.NullString
		targetSquadID sql.NullString
		targetRole    sql.NullString
		steps         string
	)

	record := &secondary.EscalationBlockRecord{}
	err := row.Scan(
		&record.ID, &record.ProjectID, &record.Name, &description, &record.TriggerType,
		&record.DeadlineWarningDays, &record.OutputThreshold, &record.OutputPeriodDays,
		&record.TargetType, &targetSquadID, &targetRole, &steps, &record.Enabled,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Description = description.String
	record.TargetSquadID = targetSquadID.String
	record.TargetRole = targetRole.String
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	var decoded []escalation.Step
	if err := json.Unmarshal([]byte(steps), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode steps of escalation block %s: %w", record.ID, err)
	}
	record.Steps = decoded

	return record, nil
}

// Ensure EscalationBlockRepository implements the interface
var _ secondary.EscalationBlockRepository = (*EscalationBlockRepository)(nil)
