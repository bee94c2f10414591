package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesToLatest(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "pulse.db"))
	require.NoError(t, err)
	defer database.Close()

	v, err := CurrentVersion(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)

	for _, table := range []string{"escalation_blocks", "escalation_instances", "blockers", "jobs", "activity_logs"} {
		var name string
		err := database.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunMigrations(ctx, database))

	var applied int
	require.NoError(t, database.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err = database.ExecContext(ctx,
		`INSERT INTO escalation_blocks (id, project_id, name, trigger_type, target_type, steps, enabled, created_at, updated_at)
		VALUES ('EBLK-001', 'PROJ-404', 'x', 'deadline_risk', 'all', '[]', 1, ?, ?)`, now, now)
	assert.Error(t, err, "block for a missing project should be rejected")
}

func TestSeedFixtures(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, SeedFixtures(ctx, database, time.Now()))

	var users int
	require.NoError(t, database.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users))
	assert.Equal(t, 6, users)
}
