package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/pulse/internal/ports/secondary"
)

// BlockerRepository implements secondary.BlockerRepository with SQLite.
type BlockerRepository struct {
	db        *sql.DB
	logWriter secondary.LogWriter
}

// NewBlockerRepository creates a new SQLite blocker repository.
// logWriter is optional - if nil, no activity logging is performed.
func NewBlockerRepository(db *sql.DB, logWriter secondary.LogWriter) *BlockerRepository {
	return &BlockerRepository{db: db, logWriter: logWriter}
}

const blockerColumns = `id, project_id, reporter_id, task_id, description, status, resolution, resolved_by, created_at, updated_at, resolved_at`

// Create persists a new blocker.
func (r *BlockerRepository) Create(ctx context.Context, blocker *secondary.BlockerRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blockers (`+blockerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		blocker.ID,
		blocker.ProjectID,
		blocker.ReporterID,
		nullString(blocker.TaskID),
		blocker.Description,
		blocker.Status,
		nullString(blocker.Resolution),
		nullString(blocker.ResolvedBy),
		blocker.CreatedAt.UTC(),
		blocker.UpdatedAt.UTC(),
		nullTime(blocker.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create blocker: %w", err)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogCreate(ctx, secondary.EntityBlocker, blocker.ID)
	}
	return nil
}

// GetByID retrieves a blocker by its ID.
func (r *BlockerRepository) GetByID(ctx context.Context, id string) (*secondary.BlockerRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blockerColumns+` FROM blockers WHERE id = ?`, id)
	record, err := scanBlocker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blocker %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocker: %w", err)
	}
	return record, nil
}

// List retrieves blockers matching the given filters.
func (r *BlockerRepository) List(ctx context.Context, filters secondary.BlockerFilters) ([]*secondary.BlockerRecord, error) {
	query := `SELECT ` + blockerColumns + ` FROM blockers WHERE 1=1`
	args := []any{}

	if filters.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filters.ProjectID)
	}
	if filters.ReporterID != "" {
		query += " AND reporter_id = ?"
		args = append(args, filters.ReporterID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY created_at DESC, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blockers: %w", err)
	}
	defer rows.Close()

	var blockers []*secondary.BlockerRecord
	for rows.Next() {
		record, err := scanBlocker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocker: %w", err)
		}
		blockers = append(blockers, record)
	}

	return blockers, rows.Err()
}

// UpdateStatus changes the status of an unresolved blocker.
func (r *BlockerRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE blockers SET status = ?, updated_at = ? WHERE id = ? AND status != 'resolved'",
		status, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update blocker status: %w", err)
	}

	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("unresolved blocker %s: %w", id, secondary.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityBlocker, id, "status", "", status)
	}
	return nil
}

// Resolve marks a blocker resolved with resolution text.
func (r *BlockerRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE blockers SET status = 'resolved', resolution = ?, resolved_by = ?, resolved_at = ?, updated_at = ? WHERE id = ?",
		nullString(resolution), nullString(resolvedBy), at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve blocker: %w", err)
	}

	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("blocker %s: %w", id, secondary.ErrNotFound)
	}

	if r.logWriter != nil {
		_ = r.logWriter.LogUpdate(ctx, secondary.EntityBlocker, id, "status", "", "resolved")
	}
	return nil
}

// GetNextID returns the next available blocker ID.
func (r *BlockerRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("BLK-") + 1
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM blockers", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next blocker ID: %w", err)
	}

	return fmt.Sprintf("BLK-%03d", maxID+1), nil
}

func scanBlocker(row rowScanner) (*secondary.BlockerRecord, error) {
	var (
		taskID     sql.NullString
		resolution sql.NullString
		resolvedBy sql.NullString
		resolvedAt sql.NullTime
	)

	record := &secondary.BlockerRecord{}
	err := row.Scan(
		&record.ID, &record.ProjectID, &record.ReporterID, &taskID, &record.Description,
		&record.Status, &resolution, &resolvedBy, &record.CreatedAt, &record.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	record.TaskID = taskID.String
	record.Resolution = resolution.String
	record.ResolvedBy = resolvedBy.String
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	record.ResolvedAt = timeOrZero(resolvedAt)

	return record, nil
}

// Ensure BlockerRepository implements the interface
var _ secondary.BlockerRepository = (*BlockerRepository)(nil)
