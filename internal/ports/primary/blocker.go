package primary

import (
	"context"
	"time"
)

// BlockerService defines the primary port for the blocker lifecycle.
type BlockerService interface {
	// ReportBlocker records a blocker and starts its escalations.
	ReportBlocker(ctx context.Context, req ReportBlockerRequest) (*ReportBlockerResult, error)

	// StartWork moves an open blocker to in_progress.
	StartWork(ctx context.Context, blockerID string) error

	// ResolveBlocker resolves a blocker and every escalation tied to it.
	ResolveBlocker(ctx context.Context, req ResolveBlockerRequest) (*ResolveBlockerResult, error)

	// GetBlocker retrieves a blocker by ID.
	GetBlocker(ctx context.Context, blockerID string) (*Blocker, error)

	// ListBlockers lists blockers with optional filters.
	ListBlockers(ctx context.Context, filters BlockerFilters) ([]*Blocker, error)
}

// Blocker represents a blocker at the port boundary.
type Blocker struct {
	ID          string
	ProjectID   string
	ReporterID  string
	TaskID      string // May be empty
	Description string
	Status      string // 'open', 'in_progress', 'resolved'
	Resolution  string // May be empty
	ResolvedBy  string // May be empty
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  time.Time // Zero while unresolved
}

// ReportBlockerRequest contains the parameters for reporting a blocker.
type ReportBlockerRequest struct {
	ProjectID   string
	ReporterID  string
	TaskID      string
	Description string
}

// ReportBlockerResult contains the stored blocker and the escalation pass it triggered.
type ReportBlockerResult struct {
	Blocker    *Blocker
	Escalation *ScanReport
}

// ResolveBlockerRequest contains the parameters for resolving a blocker.
type ResolveBlockerRequest struct {
	BlockerID  string
	Resolution string
	ResolvedBy string
}

// ResolveBlockerResult reports how many escalations the resolution ended.
// When those escalations were shared with another unresolved blocker from
// the same reporter, RearmedBlocker names the blocker that was escalated
// again.
type ResolveBlockerResult struct {
	ResolvedEscalations int
	RearmedBlocker      string
	Escalation          *ScanReport
}

// BlockerFilters contains filter options for listing blockers.
type BlockerFilters struct {
	ProjectID string
	Status    string
}

// Blocker status constants
const (
	BlockerStatusOpen       = "open"
	BlockerStatusInProgress = "in_progress"
	BlockerStatusResolved   = "resolved"
)
