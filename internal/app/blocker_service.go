package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ctxutil"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

// BlockerServiceImpl implements the BlockerService interface.
//
// Reporting a blocker runs the blocker_reported detector synchronously;
// resolving it resolves every escalation tied to it.
type BlockerServiceImpl struct {
	blockerRepo secondary.BlockerRepository
	detectors   primary.DetectorService
	escalations primary.EscalationService
	logger      *zap.Logger
	now         func() time.Time
}

// NewBlockerService creates a new BlockerService with injected dependencies.
func NewBlockerService(
	blockerRepo secondary.BlockerRepository,
	detectors primary.DetectorService,
	escalations primary.EscalationService,
	logger *zap.Logger,
) *BlockerServiceImpl {
	return &BlockerServiceImpl{
		blockerRepo: blockerRepo,
		detectors:   detectors,
		escalations: escalations,
		logger:      logger.Named("blockers"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ReportBlocker records a blocker and starts its escalations. Escalation
// failures are logged; the blocker itself is always kept.
func (s *BlockerServiceImpl) ReportBlocker(ctx context.Context, req primary.ReportBlockerRequest) (*primary.ReportBlockerResult, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("project is required")
	}
	if req.ReporterID == "" {
		return nil, fmt.Errorf("reporter is required")
	}
	if req.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	id, err := s.blockerRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate blocker ID: %w", err)
	}

	now := s.now()
	record := &secondary.BlockerRecord{
		ID:          id,
		ProjectID:   req.ProjectID,
		ReporterID:  req.ReporterID,
		TaskID:      req.TaskID,
		Description: req.Description,
		Status:      primary.BlockerStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.blockerRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create blocker: %w", err)
	}

	blocker := recordToBlocker(record)
	result := &primary.ReportBlockerResult{Blocker: blocker}

	report, err := s.detectors.OnBlockerReported(ctx, blocker)
	if err != nil {
		s.logger.Error("failed to start blocker escalations", zap.String("blocker_id", id), zap.Error(err))
		return result, nil
	}
	result.Escalation = report
	return result, nil
}

// StartWork moves an open blocker to in_progress.
func (s *BlockerServiceImpl) StartWork(ctx context.Context, blockerID string) error {
	blocker, err := s.blockerRepo.GetByID(ctx, blockerID)
	if err != nil {
		return fmt.Errorf("blocker not found: %w", err)
	}
	if blocker.Status != primary.BlockerStatusOpen {
		return fmt.Errorf("blocker %s is not open (current status: %s)", blockerID, blocker.Status)
	}
	return s.blockerRepo.UpdateStatus(ctx, blockerID, primary.BlockerStatusInProgress, s.now())
}

// ResolveBlocker resolves a blocker and every escalation tied to it. If that
// ends a chain shared with another unresolved blocker from the same reporter,
// the oldest such blocker is escalated again.
func (s *BlockerServiceImpl) ResolveBlocker(ctx context.Context, req primary.ResolveBlockerRequest) (*primary.ResolveBlockerResult, error) {
	blocker, err := s.blockerRepo.GetByID(ctx, req.BlockerID)
	if err != nil {
		return nil, fmt.Errorf("blocker not found: %w", err)
	}
	if blocker.Status == primary.BlockerStatusResolved {
		return nil, fmt.Errorf("blocker %s is already resolved", req.BlockerID)
	}

	resolvedBy := ctxutil.ActorOr(ctx, req.ResolvedBy)
	if err := s.blockerRepo.Resolve(ctx, req.BlockerID, req.Resolution, resolvedBy, s.now()); err != nil {
		return nil, fmt.Errorf("failed to resolve blocker: %w", err)
	}

	count, err := s.escalations.ResolveForBlocker(ctx, req.BlockerID, escalation.ReasonBlockerResolved)
	if err != nil {
		return nil, fmt.Errorf("blocker resolved but escalations were not: %w", err)
	}

	s.logger.Info("blocker resolved",
		zap.String("blocker_id", req.BlockerID),
		zap.String("resolved_by", resolvedBy),
		zap.Int("escalations_resolved", count))

	result := &primary.ResolveBlockerResult{ResolvedEscalations: count}
	if count > 0 {
		s.rearm(ctx, blocker, result)
	}
	return result, nil
}

// rearm escalates the reporter's oldest unresolved blocker in the project.
// Later blockers from the same reporter join the running chain, which is
// keyed to the first blocker; once that chain ends they would otherwise be
// left open with nothing escalating them.
func (s *BlockerServiceImpl) rearm(ctx context.Context, resolved *secondary.BlockerRecord, result *primary.ResolveBlockerResult) {
	records, err := s.blockerRepo.List(ctx, secondary.BlockerFilters{
		ProjectID:  resolved.ProjectID,
		ReporterID: resolved.ReporterID,
	})
	if err != nil {
		s.logger.Error("failed to list remaining blockers", zap.String("reporter_id", resolved.ReporterID), zap.Error(err))
		return
	}

	var next *secondary.BlockerRecord
	for _, r := range records {
		if r.ID == resolved.ID || r.Status == primary.BlockerStatusResolved {
			continue
		}
		if next == nil || r.CreatedAt.Before(next.CreatedAt) ||
			(r.CreatedAt.Equal(next.CreatedAt) && r.ID < next.ID) {
			next = r
		}
	}
	if next == nil {
		return
	}

	report, err := s.detectors.OnBlockerReported(ctx, recordToBlocker(next))
	if err != nil {
		s.logger.Error("failed to rearm blocker escalations", zap.String("blocker_id", next.ID), zap.Error(err))
		return
	}
	result.RearmedBlocker = next.ID
	result.Escalation = report
	s.logger.Info("blocker rearmed",
		zap.String("blocker_id", next.ID),
		zap.Int("escalations_created", report.Created))
}

// GetBlocker retrieves a blocker by ID.
func (s *BlockerServiceImpl) GetBlocker(ctx context.Context, blockerID string) (*primary.Blocker, error) {
	record, err := s.blockerRepo.GetByID(ctx, blockerID)
	if err != nil {
		return nil, err
	}
	return recordToBlocker(record), nil
}

// ListBlockers lists blockers with optional filters.
func (s *BlockerServiceImpl) ListBlockers(ctx context.Context, filters primary.BlockerFilters) ([]*primary.Blocker, error) {
	records, err := s.blockerRepo.List(ctx, secondary.BlockerFilters{
		ProjectID: filters.ProjectID,
		Status:    filters.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blockers: %w", err)
	}

	blockers := make([]*primary.Blocker, len(records))
	for i, r := range records {
		blockers[i] = recordToBlocker(r)
	}
	return blockers, nil
}

// Helper methods

func recordToBlocker(r *secondary.BlockerRecord) *primary.Blocker {
	return &primary.Blocker{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		ReporterID:  r.ReporterID,
		TaskID:      r.TaskID,
		Description: r.Description,
		Status:      r.Status,
		Resolution:  r.Resolution,
		ResolvedBy:  r.ResolvedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ResolvedAt:  r.ResolvedAt,
	}
}

// Ensure BlockerServiceImpl implements the interface
var _ primary.BlockerService = (*BlockerServiceImpl)(nil)
