// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"

	"github.com/example/pulse/internal/core/escalation"
)

// ErrNotFound is wrapped by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// EscalationBlockRepository defines the secondary port for escalation block persistence.
type EscalationBlockRepository interface {
	// Create persists a new block.
	Create(ctx context.Context, block *EscalationBlockRecord) error

	// GetByID retrieves a block by its ID.
	GetByID(ctx context.Context, id string) (*EscalationBlockRecord, error)

	// Update replaces the mutable fields of an existing block.
	Update(ctx context.Context, block *EscalationBlockRecord) error

	// Delete removes a block; its instances are removed with it.
	Delete(ctx context.Context, id string) error

	// List retrieves blocks matching the given filters.
	List(ctx context.Context, filters EscalationBlockFilters) ([]*EscalationBlockRecord, error)

	// SetEnabled toggles a block on or off.
	SetEnabled(ctx context.Context, id string, enabled bool, at time.Time) error

	// GetNextID returns the next available block ID.
	GetNextID(ctx context.Context) (string, error)

	// ProjectExists checks if a project exists (for validation).
	ProjectExists(ctx context.Context, projectID string) (bool, error)

	// SquadExists checks if a squad exists within a project (for validation).
	SquadExists(ctx context.Context, projectID, squadID string) (bool, error)
}

// EscalationBlockRecord represents an escalation block as stored in persistence.
type EscalationBlockRecord struct {
	ID                  string
	ProjectID           string
	Name                string
	Description         string // Empty string means null
	TriggerType         string // blocker_reported, deadline_risk, output_below_threshold
	DeadlineWarningDays int
	OutputThreshold     int
	OutputPeriodDays    int
	TargetType          string // all, squad, role
	TargetSquadID       string // Empty string means null
	TargetRole          string // Empty string means null
	Steps               []escalation.Step
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EscalationBlockFilters contains filter options for querying blocks.
type EscalationBlockFilters struct {
	ProjectID   string
	TriggerType string
	EnabledOnly bool
}

// EscalationInstanceRepository defines the secondary port for instance persistence.
// Every mutation is a conditional update so that racing workers cannot
// double-apply a transition.
type EscalationInstanceRepository interface {
	// CreateIfAbsent inserts the instance unless an active instance already
	// exists for (block, target user, trigger type). Returns false, nil on a
	// duplicate; this is not an error.
	CreateIfAbsent(ctx context.Context, instance *EscalationInstanceRecord) (bool, error)

	// FindActive returns the active instance for the dedup key, or nil.
	FindActive(ctx context.Context, blockID, targetUserID, triggerType string) (*EscalationInstanceRecord, error)

	// GetByID retrieves an instance by its ID.
	GetByID(ctx context.Context, id string) (*EscalationInstanceRecord, error)

	// List retrieves instances matching the given filters, newest first.
	List(ctx context.Context, filters EscalationInstanceFilters) ([]*EscalationInstanceRecord, error)

	// AdvanceStep moves an active instance from expectedStep to expectedStep+1
	// and stamps last_escalated_at. Returns false if the instance was not
	// active at expectedStep.
	AdvanceStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error)

	// CompleteFinalStep resolves an active instance at expectedStep with
	// reason steps_exhausted and stamps last_escalated_at. Returns false if
	// the instance was not active at expectedStep.
	CompleteFinalStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error)

	// MarkResolved resolves an active instance. Returns false if it was
	// already resolved.
	MarkResolved(ctx context.Context, id, reason string, at time.Time) (bool, error)

	// ListActiveByBlocker retrieves the active instances tied to a blocker.
	ListActiveByBlocker(ctx context.Context, blockerID string) ([]*EscalationInstanceRecord, error)
}

// EscalationInstanceRecord represents an escalation instance as stored in persistence.
type EscalationInstanceRecord struct {
	ID                string
	ProjectID         string
	EscalationBlockID string
	TriggerType       string
	BlockerID         string // Empty string means null
	TargetUserID      string
	Subject           escalation.Subject // Zero value means null
	CurrentStep       int
	Status            string // active, resolved
	StartedAt         time.Time
	LastEscalatedAt   time.Time // Zero value means null
	ResolvedAt        time.Time // Zero value means null
	ResolutionReason  string    // Empty string means null
}

// EscalationInstanceFilters contains filter options for querying instances.
type EscalationInstanceFilters struct {
	ProjectID    string
	BlockID      string
	Status       string
	TargetUserID string
	TriggerType  string
	Limit        int
}

// BlockerRepository defines the secondary port for blocker persistence.
type BlockerRepository interface {
	// Create persists a new blocker.
	Create(ctx context.Context, blocker *BlockerRecord) error

	// GetByID retrieves a blocker by its ID.
	GetByID(ctx context.Context, id string) (*BlockerRecord, error)

	// List retrieves blockers matching the given filters.
	List(ctx context.Context, filters BlockerFilters) ([]*BlockerRecord, error)

	// UpdateStatus changes the status of an unresolved blocker.
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error

	// Resolve marks a blocker resolved with resolution text.
	Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) error

	// GetNextID returns the next available blocker ID.
	GetNextID(ctx context.Context) (string, error)
}

// BlockerRecord represents a blocker as stored in persistence.
type BlockerRecord struct {
	ID          string
	ProjectID   string
	ReporterID  string
	TaskID      string // Empty string means null
	Description string
	Status      string // open, in_progress, resolved
	Resolution  string // Empty string means null
	ResolvedBy  string // Empty string means null
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  time.Time // Zero value means null
}

// BlockerFilters contains filter options for querying blockers.
type BlockerFilters struct {
	ProjectID  string
	ReporterID string
	Status     string
}
