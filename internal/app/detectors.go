package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/metrics"
	"github.com/example/pulse/internal/ports/primary"
	"github.com/example/pulse/internal/ports/secondary"
)

// Detectors implements the DetectorService interface: the three trigger
// detectors that turn project conditions into escalation instances.
//
// Per-item failures are logged and counted in the ScanReport; they never
// abort a pass. Only a failure to list the blocks themselves is returned.
type Detectors struct {
	blockRepo    secondary.EscalationBlockRepository
	instanceRepo secondary.EscalationInstanceRepository
	members      secondary.MembershipProvider
	workItems    secondary.WorkItemProvider
	escalations  primary.EscalationService
	logger       *zap.Logger
	now          func() time.Time
}

// NewDetectors creates the trigger detectors with injected dependencies.
func NewDetectors(
	blockRepo secondary.EscalationBlockRepository,
	instanceRepo secondary.EscalationInstanceRepository,
	members secondary.MembershipProvider,
	workItems secondary.WorkItemProvider,
	escalations primary.EscalationService,
	logger *zap.Logger,
	opts ...DetectorOption,
) *Detectors {
	d := &Detectors{
		blockRepo:    blockRepo,
		instanceRepo: instanceRepo,
		members:      members,
		workItems:    workItems,
		escalations:  escalations,
		logger:       logger.Named("detectors"),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectorOption customizes Detectors.
type DetectorOption func(*Detectors)

// WithDetectorClock overrides the detectors' time source.
func WithDetectorClock(now func() time.Time) DetectorOption {
	return func(d *Detectors) { d.now = now }
}

// OnBlockerReported starts blocker_reported escalations for a new blocker.
// The escalation target is the blocker's reporter.
func (d *Detectors) OnBlockerReported(ctx context.Context, blocker *primary.Blocker) (*primary.ScanReport, error) {
	report := &primary.ScanReport{Trigger: escalation.TriggerBlockerReported}
	defer d.observe(report, time.Now())

	blocks, err := d.blockRepo.List(ctx, secondary.EscalationBlockFilters{
		ProjectID:   blocker.ProjectID,
		TriggerType: escalation.TriggerBlockerReported,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blocker escalation blocks: %w", err)
	}
	if len(blocks) == 0 {
		return report, nil
	}

	r, err := d.roster(ctx, blocker.ProjectID)
	if err != nil {
		d.itemError(report, "failed to load project roster", err, zap.String("project_id", blocker.ProjectID))
		return report, nil
	}

	var subject escalation.Subject
	if blocker.TaskID != "" {
		subject = escalation.Subject{Kind: escalation.SubjectTask, ID: blocker.TaskID}
	}

	for _, block := range blocks {
		report.Blocks++
		if !escalation.UserInScope(recordTarget(block), blocker.ReporterID, r) {
			continue
		}
		report.Candidates++
		d.start(ctx, report, primary.StartInstanceRequest{
			BlockID:      block.ID,
			TargetUserID: blocker.ReporterID,
			BlockerID:    blocker.ID,
			Subject:      subject,
		})
	}
	return report, nil
}

// ScanDeadlineRisk runs one deadline-risk pass over every enabled block.
// Each in-scope assignee with an incomplete item due within the warning
// window gets one instance; its subject is the earliest-due item.
// Active instances whose target no longer has such an item are resolved.
func (d *Detectors) ScanDeadlineRisk(ctx context.Context) (*primary.ScanReport, error) {
	report := &primary.ScanReport{Trigger: escalation.TriggerDeadlineRisk}
	defer d.observe(report, time.Now())

	blocks, err := d.blockRepo.List(ctx, secondary.EscalationBlockFilters{
		TriggerType: escalation.TriggerDeadlineRisk,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deadline escalation blocks: %w", err)
	}

	now := d.now()
	rosters := map[string]*roster.Roster{}

	for _, block := range blocks {
		report.Blocks++
		log := []zap.Field{zap.String("block_id", block.ID), zap.String("project_id", block.ProjectID)}

		r, err := d.cachedRoster(ctx, rosters, block.ProjectID)
		if err != nil {
			d.itemError(report, "failed to load project roster", err, log...)
			continue
		}

		items, err := d.workItems.ListOpenDueItems(ctx, block.ProjectID, now, escalation.DeadlineCutoff(now, block.DeadlineWarningDays))
		if err != nil {
			d.itemError(report, "failed to list due work items", err, log...)
			continue
		}

		target := recordTarget(block)
		atRisk := map[string]bool{}
		for _, item := range items {
			if item.AssigneeID == "" || atRisk[item.AssigneeID] {
				continue
			}
			if !escalation.InDeadlineWindow(item.DueAt, now, block.DeadlineWarningDays) {
				continue
			}
			if !escalation.UserInScope(target, item.AssigneeID, r) {
				continue
			}
			atRisk[item.AssigneeID] = true
			report.Candidates++
			d.start(ctx, report, primary.StartInstanceRequest{
				BlockID:      block.ID,
				TargetUserID: item.AssigneeID,
				Subject:      escalation.Subject{Kind: item.Kind, ID: item.ID},
			})
		}

		d.resolveCleared(ctx, report, block, atRisk)
	}
	return report, nil
}

// ScanOutputThreshold runs one output-below-threshold pass over every
// enabled block. Each in-scope member who completed fewer than the threshold
// in the trailing period gets one instance. Active instances whose target
// has caught up are resolved.
func (d *Detectors) ScanOutputThreshold(ctx context.Context) (*primary.ScanReport, error) {
	report := &primary.ScanReport{Trigger: escalation.TriggerOutputBelowThreshold}
	defer d.observe(report, time.Now())

	blocks, err := d.blockRepo.List(ctx, secondary.EscalationBlockFilters{
		TriggerType: escalation.TriggerOutputBelowThreshold,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list output escalation blocks: %w", err)
	}

	now := d.now()
	rosters := map[string]*roster.Roster{}

	for _, block := range blocks {
		report.Blocks++

		r, err := d.cachedRoster(ctx, rosters, block.ProjectID)
		if err != nil {
			d.itemError(report, "failed to load project roster", err, zap.String("block_id", block.ID))
			continue
		}

		periodStart := escalation.OutputPeriodStart(now, block.OutputPeriodDays)
		atRisk := map[string]bool{}
		for _, m := range escalation.MembersInScope(recordTarget(block), r) {
			count, err := d.workItems.CountCompleted(ctx, block.ProjectID, m.UserID, periodStart, now)
			if err != nil {
				// Unknown output: keep any running escalation rather than clear it.
				atRisk[m.UserID] = true
				d.itemError(report, "failed to count completed work", err,
					zap.String("block_id", block.ID), zap.String("user_id", m.UserID))
				continue
			}
			if !escalation.BelowThreshold(count, block.OutputThreshold) {
				continue
			}
			atRisk[m.UserID] = true
			report.Candidates++
			d.start(ctx, report, primary.StartInstanceRequest{BlockID: block.ID, TargetUserID: m.UserID})
		}

		d.resolveCleared(ctx, report, block, atRisk)
	}
	return report, nil
}

func (d *Detectors) start(ctx context.Context, report *primary.ScanReport, req primary.StartInstanceRequest) {
	result, err := d.escalations.StartInstance(ctx, req)
	if err != nil {
		d.itemError(report, "failed to start escalation", err,
			zap.String("block_id", req.BlockID), zap.String("target_user_id", req.TargetUserID))
		return
	}
	if result.Created {
		report.Created++
	} else {
		report.Duplicates++
	}
}

// resolveCleared resolves the block's active instances whose target is no
// longer at risk.
func (d *Detectors) resolveCleared(ctx context.Context, report *primary.ScanReport, block *secondary.EscalationBlockRecord, atRisk map[string]bool) {
	active, err := d.instanceRepo.List(ctx, secondary.EscalationInstanceFilters{
		BlockID: block.ID,
		Status:  escalation.StatusActive,
	})
	if err != nil {
		d.itemError(report, "failed to list active escalations", err, zap.String("block_id", block.ID))
		return
	}

	byUser := make(map[string]string, len(active))
	users := make([]string, 0, len(active))
	for _, inst := range active {
		byUser[inst.TargetUserID] = inst.ID
		users = append(users, inst.TargetUserID)
	}

	for _, userID := range escalation.ClearedTargets(users, atRisk) {
		err := d.escalations.ResolveInstance(ctx, primary.ResolveInstanceRequest{
			InstanceID: byUser[userID],
			Reason:     escalation.ReasonConditionCleared,
		})
		if err != nil {
			d.itemError(report, "failed to resolve cleared escalation", err,
				zap.String("block_id", block.ID), zap.String("target_user_id", userID))
			continue
		}
		report.Resolved++
	}
}

func (d *Detectors) roster(ctx context.Context, projectID string) (*roster.Roster, error) {
	members, err := d.members.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return roster.New(members), nil
}

func (d *Detectors) cachedRoster(ctx context.Context, cache map[string]*roster.Roster, projectID string) (*roster.Roster, error) {
	if r, ok := cache[projectID]; ok {
		return r, nil
	}
	r, err := d.roster(ctx, projectID)
	if err != nil {
		return nil, err
	}
	cache[projectID] = r
	return r, nil
}

func (d *Detectors) itemError(report *primary.ScanReport, msg string, err error, fields ...zap.Field) {
	report.Errors++
	metrics.DetectorItemErrors.WithLabelValues(report.Trigger).Inc()
	d.logger.Warn(msg, append(fields, zap.String("trigger_type", report.Trigger), zap.Error(err))...)
}

func (d *Detectors) observe(report *primary.ScanReport, started time.Time) {
	metrics.DetectorScanDuration.WithLabelValues(report.Trigger).Observe(time.Since(started).Seconds())
	d.logger.Info("detector pass finished",
		zap.String("trigger_type", report.Trigger),
		zap.Int("blocks", report.Blocks),
		zap.Int("candidates", report.Candidates),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("resolved", report.Resolved),
		zap.Int("errors", report.Errors))
}

// Ensure Detectors implements the interface
var _ primary.DetectorService = (*Detectors)(nil)
