package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

// BlockServiceImpl implements the EscalationBlockService interface.
type BlockServiceImpl struct {
	blockRepo secondary.EscalationBlockRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewBlockService creates a new BlockService with injected dependencies.
func NewBlockService(blockRepo secondary.EscalationBlockRepository, logger *zap.Logger) *BlockServiceImpl {
	return &BlockServiceImpl{
		blockRepo: blockRepo,
		logger:    logger.Named("blocks"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateBlock validates and persists a new block.
func (s *BlockServiceImpl) CreateBlock(ctx context.Context, req primary.BlockRequest) (*primary.EscalationBlock, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	id, err := s.blockRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate escalation block ID: %w", err)
	}

	now := s.now()
	record := requestToRecord(req)
	record.ID = id
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := s.blockRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create escalation block: %w", err)
	}

	s.logger.Info("escalation block created",
		zap.String("block_id", id),
		zap.String("project_id", record.ProjectID),
		zap.String("trigger_type", record.TriggerType))
	return recordToBlock(record), nil
}

// UpdateBlock validates and replaces an existing block's definition.
// Running instances keep their current step and follow the new chain.
func (s *BlockServiceImpl) UpdateBlock(ctx context.Context, blockID string, req primary.BlockRequest) (*primary.EscalationBlock, error) {
	existing, err := s.blockRepo.GetByID(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("escalation block not found: %w", err)
	}
	if req.ProjectID != "" && req.ProjectID != existing.ProjectID {
		return nil, &primary.ValidationError{Reason: "a block cannot move between projects"}
	}
	req.ProjectID = existing.ProjectID

	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	record := requestToRecord(req)
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = s.now()

	if err := s.blockRepo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update escalation block: %w", err)
	}

	s.logger.Info("escalation block updated", zap.String("block_id", record.ID))
	return recordToBlock(record), nil
}

// DeleteBlock removes a block and, with it, its instances.
func (s *BlockServiceImpl) DeleteBlock(ctx context.Context, blockID string) error {
	if err := s.blockRepo.Delete(ctx, blockID); err != nil {
		return fmt.Errorf("failed to delete escalation block: %w", err)
	}
	s.logger.Info("escalation block deleted", zap.String("block_id", blockID))
	return nil
}

// GetBlock retrieves a block by ID.
func (s *BlockServiceImpl) GetBlock(ctx context.Context, blockID string) (*primary.EscalationBlock, error) {
	record, err := s.blockRepo.GetByID(ctx, blockID)
	if err != nil {
		return nil, err
	}
	return recordToBlock(record), nil
}

// ListBlocks lists the blocks of a project; an empty project lists all.
func (s *BlockServiceImpl) ListBlocks(ctx context.Context, projectID string) ([]*primary.EscalationBlock, error) {
	records, err := s.blockRepo.List(ctx, secondary.EscalationBlockFilters{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation blocks: %w", err)
	}

	blocks := make([]*primary.EscalationBlock, len(records))
	for i, r := range records {
		blocks[i] = recordToBlock(r)
	}
	return blocks, nil
}

// SetBlockEnabled turns a block on or off. Disabling stops new instances;
// running chains continue.
func (s *BlockServiceImpl) SetBlockEnabled(ctx context.Context, blockID string, enabled bool) error {
	if err := s.blockRepo.SetEnabled(ctx, blockID, enabled, s.now()); err != nil {
		return fmt.Errorf("failed to update escalation block: %w", err)
	}
	s.logger.Info("escalation block toggled", zap.String("block_id", blockID), zap.Bool("enabled", enabled))
	return nil
}

// validate runs the block guard after pre-fetching the referential checks.
func (s *BlockServiceImpl) validate(ctx context.Context, req primary.BlockRequest) error {
	if req.ProjectID != "" {
		exists, err := s.blockRepo.ProjectExists(ctx, req.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to validate project: %w", err)
		}
		if !exists {
			return &primary.ValidationError{Reason: fmt.Sprintf("project %s not found", req.ProjectID)}
		}
	}

	squadExists := false
	if req.Target.Type == escalation.TargetSquad && req.Target.SquadID != "" {
		var err error
		squadExists, err = s.blockRepo.SquadExists(ctx, req.ProjectID, req.Target.SquadID)
		if err != nil {
			return fmt.Errorf("failed to validate squad: %w", err)
		}
	}

	result := escalation.CanSaveBlock(escalation.BlockContext{
		ProjectID:           req.ProjectID,
		Name:                req.Name,
		TriggerType:         req.TriggerType,
		DeadlineWarningDays: req.DeadlineWarningDays,
		OutputThreshold:     req.OutputThreshold,
		OutputPeriodDays:    req.OutputPeriodDays,
		Target:              req.Target,
		Steps:               req.Steps,
		SquadExists:         squadExists,
	})
	if !result.Allowed {
		return &primary.ValidationError{Reason: result.Reason}
	}
	return nil
}

// Helper methods

func requestToRecord(req primary.BlockRequest) *secondary.EscalationBlockRecord {
	record := &secondary.EscalationBlockRecord{
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		TargetType:  req.Target.Type,
		Steps:       req.Steps,
		Enabled:     req.Enabled,
	}
	// Only the parameters of the block's own trigger are kept.
	switch req.TriggerType {
	case escalation.TriggerDeadlineRisk:
		record.DeadlineWarningDays = req.DeadlineWarningDays
	case escalation.TriggerOutputBelowThreshold:
		record.OutputThreshold = req.OutputThreshold
		record.OutputPeriodDays = req.OutputPeriodDays
	}
	switch req.Target.Type {
	case escalation.TargetSquad:
		record.TargetSquadID = req.Target.SquadID
	case escalation.TargetRole:
		record.TargetRole = req.Target.Role
	}
	return record
}

func recordToBlock(r *secondary.EscalationBlockRecord) *primary.EscalationBlock {
	return &primary.EscalationBlock{
		ID:                  r.ID,
		ProjectID:           r.ProjectID,
		Name:                r.Name,
		Description:         r.Description,
		TriggerType:         r.TriggerType,
		DeadlineWarningDays: r.DeadlineWarningDays,
		OutputThreshold:     r.OutputThreshold,
		OutputPeriodDays:    r.OutputPeriodDays,
		Target:              recordTarget(r),
		Steps:               r.Steps,
		Enabled:             r.Enabled,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func recordTarget(r *secondary.EscalationBlockRecord) escalation.Target {
	return escalation.Target{Type: r.TargetType, SquadID: r.TargetSquadID, Role: r.TargetRole}
}

// Ensure BlockServiceImpl implements the interface
var _ primary.EscalationBlockService = (*BlockServiceImpl)(nil)
