// Package primary defines the primary ports (driving adapters) of the
// application: the services the CLI, the schedulers and any API layer call.
package primary

import (
	"context"
	"time"

	"github.com/example/pulse/internal/core/escalation"
)

// EscalationBlockService defines the primary port for escalation block configuration.
type EscalationBlockService interface {
	// CreateBlock validates and persists a new block.
	CreateBlock(ctx context.Context, req BlockRequest) (*EscalationBlock, error)

	// UpdateBlock validates and replaces an existing block's definition.
	UpdateBlock(ctx context.Context, blockID string, req BlockRequest) (*EscalationBlock, error)

	// DeleteBlock removes a block and, with it, its instances.
	DeleteBlock(ctx context.Context, blockID string) error

	// GetBlock retrieves a block by ID.
	GetBlock(ctx context.Context, blockID string) (*EscalationBlock, error)

	// ListBlocks lists the blocks of a project.
	ListBlocks(ctx context.Context, projectID string) ([]*EscalationBlock, error)

	// SetBlockEnabled turns a block on or off.
	SetBlockEnabled(ctx context.Context, blockID string, enabled bool) error
}

// EscalationService defines the primary port for escalation instances:
// the state machine and its read side.
type EscalationService interface {
	// StartInstance creates an instance unless one is already active for
	// (block, target user, trigger type), and schedules its first step.
	StartInstance(ctx context.Context, req StartInstanceRequest) (*StartInstanceResult, error)

	// ProcessStep fires the given step of an instance. Idempotent.
	ProcessStep(ctx context.Context, instanceID string, step int) error

	// ResolveInstance resolves an active instance from outside the chain.
	ResolveInstance(ctx context.Context, req ResolveInstanceRequest) error

	// ResolveForBlocker resolves every active instance tied to a blocker.
	ResolveForBlocker(ctx context.Context, blockerID, reason string) (int, error)

	// GetInstance retrieves an instance by ID.
	GetInstance(ctx context.Context, instanceID string) (*EscalationInstance, error)

	// ListInstances lists instances with optional filters.
	ListInstances(ctx context.Context, filters InstanceFilters) ([]*EscalationInstance, error)
}

// DetectorService defines the primary port for the trigger detectors.
type DetectorService interface {
	// OnBlockerReported starts blocker_reported escalations for a new blocker.
	OnBlockerReported(ctx context.Context, blocker *Blocker) (*ScanReport, error)

	// ScanDeadlineRisk runs one deadline-risk pass over every enabled block.
	ScanDeadlineRisk(ctx context.Context) (*ScanReport, error)

	// ScanOutputThreshold runs one output-below-threshold pass over every enabled block.
	ScanOutputThreshold(ctx context.Context) (*ScanReport, error)
}

// EscalationBlock represents an escalation block at the port boundary.
type EscalationBlock struct {
	ID                  string
	ProjectID           string
	Name                string
	Description         string
	TriggerType         string
	DeadlineWarningDays int
	OutputThreshold     int
	OutputPeriodDays    int
	Target              escalation.Target
	Steps               []escalation.Step
	Enabled             bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BlockRequest contains the authored fields of a block.
type BlockRequest struct {
	ProjectID           string
	Name                string
	Description         string
	TriggerType         string
	DeadlineWarningDays int
	OutputThreshold     int
	OutputPeriodDays    int
	Target              escalation.Target
	Steps               []escalation.Step
	Enabled             bool
}

// EscalationInstance represents an escalation instance at the port boundary.
type EscalationInstance struct {
	ID                string
	ProjectID         string
	EscalationBlockID string
	TriggerType       string
	BlockerID         string
	TargetUserID      string
	Subject           escalation.Subject
	CurrentStep       int
	Status            string
	StartedAt         time.Time
	LastEscalatedAt   time.Time // Zero if no step has fired
	ResolvedAt        time.Time // Zero while active
	ResolutionReason  string
}

// StartInstanceRequest identifies what an instance concerns.
type StartInstanceRequest struct {
	BlockID      string
	TargetUserID string
	BlockerID    string
	Subject      escalation.Subject
}

// StartInstanceResult reports whether a new instance was created.
// Created is false when an active instance already existed; Instance is
// then the existing one.
type StartInstanceResult struct {
	Instance *EscalationInstance
	Created  bool
}

// ResolveInstanceRequest contains the parameters for resolving an instance.
type ResolveInstanceRequest struct {
	InstanceID string
	Reason     string
}

// InstanceFilters contains filter options for listing instances.
type InstanceFilters struct {
	ProjectID    string
	BlockID      string
	Status       string
	TargetUserID string
	Limit        int
}

// ScanReport summarizes one detector pass.
type ScanReport struct {
	Trigger    string
	Blocks     int
	Candidates int
	Created    int
	Duplicates int
	Resolved   int
	Errors     int
}

// ValidationError is returned for invalid block definitions. It is the only
// error class shown synchronously to block authors.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid escalation block: " + e.Reason
}
