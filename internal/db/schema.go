package db

// SchemaSQL is the complete schema for fresh Pulse installs.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(); if repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
//
// Timestamps are always written by the application in UTC so that range
// comparisons on DATETIME columns are ordered correctly.
//
// When adding new columns or tables:
//  1. Append a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Project directory (owned by the membership subsystem, read-only here)
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL CHECK(role IN ('admin', 'pm', 'lead', 'member')),
	reports_to TEXT,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (project_id, user_id),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS squads (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS squad_members (
	squad_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (squad_id, user_id),
	FOREIGN KEY (squad_id) REFERENCES squads(id) ON DELETE CASCADE
);

-- Work items (owned by the task/deliverable subsystem, read-only here)
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	assignee_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('todo', 'in_progress', 'done')) DEFAULT 'todo',
	due_at DATETIME,
	completed_at DATETIME,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS deliverables (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	title TEXT NOT NULL,
	assignee_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('planned', 'in_progress', 'delivered')) DEFAULT 'planned',
	due_at DATETIME,
	completed_at DATETIME,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

-- Blockers (reported impediments; creation triggers blocker_reported escalations)
CREATE TABLE IF NOT EXISTS blockers (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	reporter_id TEXT NOT NULL,
	task_id TEXT,
	description TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('open', 'in_progress', 'resolved')) DEFAULT 'open',
	resolution TEXT,
	resolved_by TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	resolved_at DATETIME,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

-- Escalation blocks (admin-authored trigger + step chain configuration)
CREATE TABLE IF NOT EXISTS escalation_blocks (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT,
	trigger_type TEXT NOT NULL CHECK(trigger_type IN ('blocker_reported', 'deadline_risk', 'output_below_threshold')),
	deadline_warning_days INTEGER NOT NULL DEFAULT 0,
	output_threshold INTEGER NOT NULL DEFAULT 0,
	output_period_days INTEGER NOT NULL DEFAULT 0,
	target_type TEXT NOT NULL CHECK(target_type IN ('all', 'squad', 'role')) DEFAULT 'all',
	target_squad_id TEXT,
	target_role TEXT,
	steps TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_escalation_blocks_trigger ON escalation_blocks(trigger_type, enabled);

-- Escalation instances (one running chain per block and target user)
CREATE TABLE IF NOT EXISTS escalation_instances (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	escalation_block_id TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	blocker_id TEXT,
	target_user_id TEXT NOT NULL,
	subject_kind TEXT CHECK(subject_kind IN ('task', 'deliverable')),
	subject_id TEXT,
	current_step INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL CHECK(status IN ('active', 'resolved')) DEFAULT 'active',
	started_at DATETIME NOT NULL,
	last_escalated_at DATETIME,
	resolved_at DATETIME,
	resolution_reason TEXT,
	FOREIGN KEY (escalation_block_id) REFERENCES escalation_blocks(id) ON DELETE CASCADE
);

-- At most one active instance per (block, target user, trigger type).
CREATE UNIQUE INDEX IF NOT EXISTS idx_escalation_instances_active
	ON escalation_instances(escalation_block_id, target_user_id, trigger_type)
	WHERE status = 'active';

CREATE INDEX IF NOT EXISTS idx_escalation_instances_project ON escalation_instances(project_id, status);
CREATE INDEX IF NOT EXISTS idx_escalation_instances_blocker ON escalation_instances(blocker_id);

-- Durable delayed jobs (at-least-once execution substrate)
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	dedup_key TEXT UNIQUE,
	status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'done', 'failed')) DEFAULT 'pending',
	run_at DATETIME NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	locked_until DATETIME,
	last_error TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_due ON jobs(status, run_at);
` + activityLogSQL

// activityLogSQL is shared by SchemaSQL and migration 2.
const activityLogSQL = `
-- Activity log (who changed which block, blocker or instance)
CREATE TABLE IF NOT EXISTS activity_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	actor_id TEXT,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update', 'delete')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_entity ON activity_logs(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp ON activity_logs(timestamp);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
