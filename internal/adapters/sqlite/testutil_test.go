// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/pulse/internal/adapters/sqlite"
	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/db"
	"github.com/example/pulse/internal/ports/secondary"
)

// testNow is the fixed clock used by repository tests.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", db.DSN(":memory:"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// setupSeededDB creates a test database loaded with the demo fixtures.
func setupSeededDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB := setupTestDB(t)
	if err := db.SeedFixtures(context.Background(), testDB, testNow); err != nil {
		t.Fatalf("failed to seed fixtures: %v", err)
	}
	return testDB
}

// seedProject inserts a bare project and returns its ID.
func seedProject(t *testing.T, testDB *sql.DB, id string) string {
	t.Helper()
	if id == "" {
		id = "PROJ-001"
	}
	_, err := testDB.Exec("INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)", id, "Test Project", testNow)
	if err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return id
}

// newBlockRecord builds an enabled two-step escalation block record.
func newBlockRecord(id, projectID, triggerType string) *secondary.EscalationBlockRecord {
	if id == "" {
		id = "EBLK-001"
	}
	if triggerType == "" {
		triggerType = escalation.TriggerBlockerReported
	}
	return &secondary.EscalationBlockRecord{
		ID:          id,
		ProjectID:   projectID,
		Name:        "Test Block",
		TriggerType: triggerType,
		TargetType:  escalation.TargetAll,
		Steps: []escalation.Step{
			{DelayMinutes: 0, RouteType: escalation.RouteReportsTo},
			{DelayMinutes: 60, RouteType: escalation.RouteRole, RouteRole: "admin"},
		},
		Enabled:   true,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

// seedBlock inserts an enabled escalation block and returns its ID.
func seedBlock(t *testing.T, testDB *sql.DB, id, projectID, triggerType string) string {
	t.Helper()
	record := newBlockRecord(id, projectID, triggerType)
	repo := sqlite.NewEscalationBlockRepository(testDB, nil)
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed block: %v", err)
	}
	return record.ID
}

// newInstance builds an active instance record for a block and target.
func newInstance(id, projectID, blockID, targetUserID string) *secondary.EscalationInstanceRecord {
	return &secondary.EscalationInstanceRecord{
		ID:                id,
		ProjectID:         projectID,
		EscalationBlockID: blockID,
		TriggerType:       escalation.TriggerBlockerReported,
		TargetUserID:      targetUserID,
		Status:            escalation.StatusActive,
		StartedAt:         testNow,
	}
}
