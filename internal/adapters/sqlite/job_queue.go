package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/pulse/internal/ports/secondary"
)

// JobQueue implements secondary.JobQueue on the jobs table.
type JobQueue struct {
	db *sql.DB
}

// NewJobQueue creates a new SQLite-backed job queue.
func NewJobQueue(db *sql.DB) *JobQueue {
	return &JobQueue{db: db}
}

const jobColumns = `id, kind, payload, dedup_key, status, run_at, attempts, max_attempts, locked_until, last_error, created_at, updated_at`

// Enqueue adds a job unless one with the same dedup key exists.
func (q *JobQueue) Enqueue(ctx context.Context, job *secondary.JobRecord) (bool, error) {
	status := job.Status
	if status == "" {
		status = secondary.JobStatusPending
	}

	result, err := q.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		job.ID,
		job.Kind,
		string(job.Payload),
		nullString(job.DedupKey),
		status,
		job.RunAt.UTC(),
		job.Attempts,
		job.MaxAttempts,
		nullTime(job.LockedUntil),
		nullString(job.LastError),
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return rowsAffected(result)
}

// Claim leases the earliest due job. A running job whose lease has expired
// is due again: its worker is presumed dead.
func (q *JobQueue) Claim(ctx context.Context, now time.Time, lease time.Duration) (*secondary.JobRecord, error) {
	now = now.UTC()

	var id string
	err := q.db.QueryRowContext(ctx,
		`UPDATE jobs
		SET status = 'running', attempts = attempts + 1, locked_until = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE (status = 'pending' AND run_at <= ?)
			   OR (status = 'running' AND locked_until < ?)
			ORDER BY run_at, created_at
			LIMIT 1
		)
		RETURNING id`,
		now.Add(lease), now, now, now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return q.GetByID(ctx, id)
}

// Complete marks a claimed job done.
func (q *JobQueue) Complete(ctx context.Context, id string, at time.Time) error {
	return q.finish(ctx,
		"UPDATE jobs SET status = 'done', locked_until = NULL, updated_at = ? WHERE id = ?",
		id, at.UTC(), id,
	)
}

// Retry returns a claimed job to pending with a new run time.
func (q *JobQueue) Retry(ctx context.Context, id string, runAt time.Time, lastErr string, at time.Time) error {
	return q.finish(ctx,
		"UPDATE jobs SET status = 'pending', run_at = ?, last_error = ?, locked_until = NULL, updated_at = ? WHERE id = ?",
		id, runAt.UTC(), nullString(lastErr), at.UTC(), id,
	)
}

// Fail marks a claimed job permanently failed.
func (q *JobQueue) Fail(ctx context.Context, id string, lastErr string, at time.Time) error {
	return q.finish(ctx,
		"UPDATE jobs SET status = 'failed', last_error = ?, locked_until = NULL, updated_at = ? WHERE id = ?",
		id, nullString(lastErr), at.UTC(), id,
	)
}

// Requeue resets a failed job to pending with a fresh attempt budget.
func (q *JobQueue) Requeue(ctx context.Context, id string, runAt time.Time) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE jobs SET status = 'pending', attempts = 0, run_at = ?, updated_at = ? WHERE id = ? AND status = 'failed'",
		runAt.UTC(), runAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("failed job %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (q *JobQueue) GetByID(ctx context.Context, id string) (*secondary.JobRecord, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return record, nil
}

// List retrieves jobs matching the given filters, soonest first.
func (q *JobQueue) List(ctx context.Context, filters secondary.JobFilters) ([]*secondary.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}

	if filters.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filters.Kind)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY run_at, created_at"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*secondary.JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, record)
	}
	return jobs, rows.Err()
}

func (q *JobQueue) finish(ctx context.Context, query, id string, args ...any) error {
	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if ok, _ := rowsAffected(result); !ok {
		return fmt.Errorf("job %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

func scanJob(row rowScanner) (*secondary.JobRecord, error) {
	var (
		payload     string
		dedupKey    sql.NullString
		lockedUntil sql.NullTime
		lastError   sql.NullString
	)

	record := &secondary.JobRecord{}
	err := row.Scan(
		&record.ID, &record.Kind, &payload, &dedupKey, &record.Status, &record.RunAt,
		&record.Attempts, &record.MaxAttempts, &lockedUntil, &lastError,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Payload = []byte(payload)
	record.DedupKey = dedupKey.String
	record.RunAt = record.RunAt.UTC()
	record.LockedUntil = timeOrZero(lockedUntil)
	record.LastError = lastError.String
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()

	return record, nil
}

// Ensure JobQueue implements the interface
var _ secondary.JobQueue = (*JobQueue)(nil)
