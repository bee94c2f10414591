package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/pulse/internal/core/escalation"
	"github.com/example/pulse/internal/core/roster"
	"github.com/example/pulse/internal/ports/secondary"
)

// t0 is the fixed start of every test clock.
var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ============================================================================
// Mock repositories
// ============================================================================

// mockBlockRepository implements secondary.EscalationBlockRepository for testing.
type mockBlockRepository struct {
	blocks   map[string]*secondary.EscalationBlockRecord
	projects map[string]bool
	squads   map[string]bool // "project/squad"
	nextID   int
	listErr  error
}

func newMockBlockRepository() *mockBlockRepository {
	return &mockBlockRepository{
		blocks:   make(map[string]*secondary.EscalationBlockRecord),
		projects: map[string]bool{"PROJ-001": true},
		squads:   map[string]bool{"PROJ-001/SQD-001": true, "PROJ-001/SQD-002": true},
		nextID:   1,
	}
}

func (m *mockBlockRepository) Create(ctx context.Context, block *secondary.EscalationBlockRecord) error {
	copied := *block
	m.blocks[block.ID] = &copied
	return nil
}

func (m *mockBlockRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationBlockRecord, error) {
	if b, ok := m.blocks[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
}

func (m *mockBlockRepository) Update(ctx context.Context, block *secondary.EscalationBlockRecord) error {
	if _, ok := m.blocks[block.ID]; !ok {
		return fmt.Errorf("escalation block %s: %w", block.ID, secondary.ErrNotFound)
	}
	copied := *block
	m.blocks[block.ID] = &copied
	return nil
}

func (m *mockBlockRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.blocks[id]; !ok {
		return fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
	}
	delete(m.blocks, id)
	return nil
}

func (m *mockBlockRepository) List(ctx context.Context, filters secondary.EscalationBlockFilters) ([]*secondary.EscalationBlockRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*secondary.EscalationBlockRecord
	for _, b := range m.blocks {
		if filters.ProjectID != "" && b.ProjectID != filters.ProjectID {
			continue
		}
		if filters.TriggerType != "" && b.TriggerType != filters.TriggerType {
			continue
		}
		if filters.EnabledOnly && !b.Enabled {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockBlockRepository) SetEnabled(ctx context.Context, id string, enabled bool, at time.Time) error {
	b, ok := m.blocks[id]
	if !ok {
		return fmt.Errorf("escalation block %s: %w", id, secondary.ErrNotFound)
	}
	b.Enabled = enabled
	b.UpdatedAt = at
	return nil
}

func (m *mockBlockRepository) GetNextID(ctx context.Context) (string, error) {
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("EBLK-%03d", id), nil
}

func (m *mockBlockRepository) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	return m.projects[projectID], nil
}

func (m *mockBlockRepository) SquadExists(ctx context.Context, projectID, squadID string) (bool, error) {
	return m.squads[projectID+"/"+squadID], nil
}

// mockInstanceRepository implements secondary.EscalationInstanceRepository
// for testing, with the same dedup and conditional-update semantics as the
// SQLite adapter.
type mockInstanceRepository struct {
	mu        sync.Mutex
	instances map[string]*secondary.EscalationInstanceRecord
	order     []string
}

func newMockInstanceRepository() *mockInstanceRepository {
	return &mockInstanceRepository{instances: make(map[string]*secondary.EscalationInstanceRecord)}
}

func (m *mockInstanceRepository) CreateIfAbsent(ctx context.Context, instance *secondary.EscalationInstanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.instances {
		if existing.Status == escalation.StatusActive &&
			existing.EscalationBlockID == instance.EscalationBlockID &&
			existing.TargetUserID == instance.TargetUserID &&
			existing.TriggerType == instance.TriggerType {
			return false, nil
		}
	}
	copied := *instance
	m.instances[instance.ID] = &copied
	m.order = append(m.order, instance.ID)
	return true, nil
}

func (m *mockInstanceRepository) FindActive(ctx context.Context, blockID, targetUserID, triggerType string) (*secondary.EscalationInstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		i := m.instances[id]
		if i.Status == escalation.StatusActive && i.EscalationBlockID == blockID &&
			i.TargetUserID == targetUserID && i.TriggerType == triggerType {
			copied := *i
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationInstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.instances[id]; ok {
		copied := *i
		return &copied, nil
	}
	return nil, fmt.Errorf("escalation instance %s: %w", id, secondary.ErrNotFound)
}

func (m *mockInstanceRepository) List(ctx context.Context, filters secondary.EscalationInstanceFilters) ([]*secondary.EscalationInstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.EscalationInstanceRecord
	for _, id := range m.order {
		i := m.instances[id]
		if filters.ProjectID != "" && i.ProjectID != filters.ProjectID {
			continue
		}
		if filters.BlockID != "" && i.EscalationBlockID != filters.BlockID {
			continue
		}
		if filters.Status != "" && i.Status != filters.Status {
			continue
		}
		if filters.TargetUserID != "" && i.TargetUserID != filters.TargetUserID {
			continue
		}
		if filters.TriggerType != "" && i.TriggerType != filters.TriggerType {
			continue
		}
		copied := *i
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockInstanceRepository) AdvanceStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.instances[id]
	if !ok || i.Status != escalation.StatusActive || i.CurrentStep != expectedStep {
		return false, nil
	}
	i.CurrentStep++
	i.LastEscalatedAt = at
	return true, nil
}

func (m *mockInstanceRepository) CompleteFinalStep(ctx context.Context, id string, expectedStep int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.instances[id]
	if !ok || i.Status != escalation.StatusActive || i.CurrentStep != expectedStep {
		return false, nil
	}
	i.Status = escalation.StatusResolved
	i.LastEscalatedAt = at
	i.ResolvedAt = at
	i.ResolutionReason = escalation.ReasonStepsExhausted
	return true, nil
}

func (m *mockInstanceRepository) MarkResolved(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.instances[id]
	if !ok || i.Status != escalation.StatusActive {
		return false, nil
	}
	i.Status = escalation.StatusResolved
	i.ResolvedAt = at
	i.ResolutionReason = reason
	return true, nil
}

func (m *mockInstanceRepository) ListActiveByBlocker(ctx context.Context, blockerID string) ([]*secondary.EscalationInstanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.EscalationInstanceRecord
	for _, id := range m.order {
		i := m.instances[id]
		if i.BlockerID == blockerID && i.Status == escalation.StatusActive {
			copied := *i
			result = append(result, &copied)
		}
	}
	return result, nil
}

// all returns every instance in creation order.
func (m *mockInstanceRepository) all() []*secondary.EscalationInstanceRecord {
	list, _ := m.List(context.Background(), secondary.EscalationInstanceFilters{})
	return list
}

// mockBlockerRepository implements secondary.BlockerRepository for testing.
type mockBlockerRepository struct {
	blockers map[string]*secondary.BlockerRecord
	nextID   int
}

func newMockBlockerRepository() *mockBlockerRepository {
	return &mockBlockerRepository{blockers: make(map[string]*secondary.BlockerRecord), nextID: 1}
}

func (m *mockBlockerRepository) Create(ctx context.Context, blocker *secondary.BlockerRecord) error {
	copied := *blocker
	m.blockers[blocker.ID] = &copied
	return nil
}

func (m *mockBlockerRepository) GetByID(ctx context.Context, id string) (*secondary.BlockerRecord, error) {
	if b, ok := m.blockers[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, fmt.Errorf("blocker %s: %w", id, secondary.ErrNotFound)
}

func (m *mockBlockerRepository) List(ctx context.Context, filters secondary.BlockerFilters) ([]*secondary.BlockerRecord, error) {
	var result []*secondary.BlockerRecord
	for _, b := range m.blockers {
		if filters.ProjectID != "" && b.ProjectID != filters.ProjectID {
			continue
		}
		if filters.ReporterID != "" && b.ReporterID != filters.ReporterID {
			continue
		}
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		copied := *b
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockBlockerRepository) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	b, ok := m.blockers[id]
	if !ok || b.Status == "resolved" {
		return fmt.Errorf("unresolved blocker %s: %w", id, secondary.ErrNotFound)
	}
	b.Status = status
	b.UpdatedAt = at
	return nil
}

func (m *mockBlockerRepository) Resolve(ctx context.Context, id, resolution, resolvedBy string, at time.Time) error {
	b, ok := m.blockers[id]
	if !ok {
		return fmt.Errorf("blocker %s: %w", id, secondary.ErrNotFound)
	}
	b.Status = "resolved"
	b.Resolution = resolution
	b.ResolvedBy = resolvedBy
	b.ResolvedAt = at
	return nil
}

func (m *mockBlockerRepository) GetNextID(ctx context.Context) (string, error) {
	id := m.nextID
	m.nextID++
	return fmt.Sprintf("BLK-%03d", id), nil
}

// ============================================================================
// Mock collaborators
// ============================================================================

// mockMembership implements secondary.MembershipProvider for testing.
type mockMembership struct {
	members map[string][]roster.Member
	err     error
}

// newMockMembership returns the standard test team of PROJ-001:
//
//	USR-001 admin
//	USR-002 pm      -> USR-001
//	USR-003 lead    -> USR-002   (SQD-001)
//	USR-004 member  -> USR-003   (SQD-001)
//	USR-005 member  -> USR-003   (SQD-002)
//	USR-006 member  (no manager) (SQD-002)
func newMockMembership() *mockMembership {
	joined := func(i int) time.Time { return t0.AddDate(0, 0, -60+i) }
	return &mockMembership{members: map[string][]roster.Member{
		"PROJ-001": {
			{UserID: "USR-001", Role: roster.RoleAdmin, JoinedAt: joined(0)},
			{UserID: "USR-002", Role: roster.RolePM, ReportsTo: "USR-001", JoinedAt: joined(1)},
			{UserID: "USR-003", Role: roster.RoleLead, ReportsTo: "USR-002", SquadIDs: []string{"SQD-001"}, JoinedAt: joined(2)},
			{UserID: "USR-004", Role: roster.RoleMember, ReportsTo: "USR-003", SquadIDs: []string{"SQD-001"}, JoinedAt: joined(3)},
			{UserID: "USR-005", Role: roster.RoleMember, ReportsTo: "USR-003", SquadIDs: []string{"SQD-002"}, JoinedAt: joined(4)},
			{UserID: "USR-006", Role: roster.RoleMember, SquadIDs: []string{"SQD-002"}, JoinedAt: joined(5)},
		},
	}}
}

func (m *mockMembership) ListMembers(ctx context.Context, projectID string) ([]roster.Member, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.members[projectID], nil
}

func (m *mockMembership) Email(ctx context.Context, userID string) (string, error) {
	return userID + "@example.com", nil
}

// mockWorkItems implements secondary.WorkItemProvider for testing.
type mockWorkItems struct {
	items     []secondary.WorkItem
	completed map[string]int
	countErr  map[string]error
}

func newMockWorkItems() *mockWorkItems {
	return &mockWorkItems{completed: map[string]int{}, countErr: map[string]error{}}
}

func (m *mockWorkItems) ListOpenDueItems(ctx context.Context, projectID string, from, to time.Time) ([]secondary.WorkItem, error) {
	var result []secondary.WorkItem
	for _, item := range m.items {
		if item.ProjectID != projectID || item.DueAt.Before(from) || item.DueAt.After(to) {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

func (m *mockWorkItems) CountCompleted(ctx context.Context, projectID, userID string, from, to time.Time) (int, error) {
	if err := m.countErr[userID]; err != nil {
		return 0, err
	}
	return m.completed[userID], nil
}

// recordingNotifier implements secondary.Notifier, recording every call.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []secondary.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.RecipientID)
	}
	return out
}

// fakeScheduler implements secondary.JobScheduler in memory with dedup keys.
type fakeScheduler struct {
	mu      sync.Mutex
	pending []secondary.ScheduledJob
	keys    map[string]bool
	err     error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{keys: map[string]bool{}}
}

func (s *fakeScheduler) Schedule(ctx context.Context, job secondary.ScheduledJob) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if job.DedupKey != "" && s.keys[job.DedupKey] {
		return false, nil
	}
	s.keys[job.DedupKey] = true
	s.pending = append(s.pending, job)
	return true, nil
}

// takeDue removes and returns the jobs due at now, earliest first.
func (s *fakeScheduler) takeDue(now time.Time) []secondary.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.pending, func(i, j int) bool { return s.pending[i].RunAt.Before(s.pending[j].RunAt) })
	var due, rest []secondary.ScheduledJob
	for _, j := range s.pending {
		if !j.RunAt.After(now) {
			due = append(due, j)
		} else {
			rest = append(rest, j)
		}
	}
	s.pending = rest
	return due
}

func (s *fakeScheduler) pendingJobs() []secondary.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]secondary.ScheduledJob(nil), s.pending...)
}

// ============================================================================
// Harness
// ============================================================================

// harness wires the real services over the mocks with a shared clock.
type harness struct {
	clock     *testClock
	blocks    *mockBlockRepository
	instances *mockInstanceRepository
	blockers  *mockBlockerRepository
	members   *mockMembership
	workItems *mockWorkItems
	notifier  *recordingNotifier
	jobs      *fakeScheduler

	engine         *EscalationEngine
	detectors      *Detectors
	blockService   *BlockServiceImpl
	blockerService *BlockerServiceImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     newTestClock(),
		blocks:    newMockBlockRepository(),
		instances: newMockInstanceRepository(),
		blockers:  newMockBlockerRepository(),
		members:   newMockMembership(),
		workItems: newMockWorkItems(),
		notifier:  &recordingNotifier{},
		jobs:      newFakeScheduler(),
	}
	logger := zap.NewNop()
	h.engine = NewEscalationEngine(h.blocks, h.instances, h.members, h.notifier, h.jobs, logger, WithClock(h.clock.Now))
	h.detectors = NewDetectors(h.blocks, h.instances, h.members, h.workItems, h.engine, logger, WithDetectorClock(h.clock.Now))
	h.blockService = NewBlockService(h.blocks, logger)
	h.blockService.now = h.clock.Now
	h.blockerService = NewBlockerService(h.blockers, h.detectors, h.engine, logger)
	h.blockerService.now = h.clock.Now
	return h
}

// addBlock stores an enabled block and returns its ID.
func (h *harness) addBlock(id, triggerType string, target escalation.Target, steps ...escalation.Step) string {
	h.blocks.blocks[id] = &secondary.EscalationBlockRecord{
		ID:            id,
		ProjectID:     "PROJ-001",
		Name:          "Block " + id,
		TriggerType:   triggerType,
		TargetType:    target.Type,
		TargetSquadID: target.SquadID,
		TargetRole:    target.Role,
		Steps:         steps,
		Enabled:       true,
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
	return id
}

// runDue fires every step job due at the current clock, including jobs
// scheduled while running, and returns how many ran.
func (h *harness) runDue(t *testing.T) int {
	t.Helper()
	ran := 0
	for {
		due := h.jobs.takeDue(h.clock.Now())
		if len(due) == 0 {
			return ran
		}
		for _, job := range due {
			payload, ok := job.Payload.(escalation.StepJob)
			if !ok {
				t.Fatalf("unexpected payload %T for job %s", job.Payload, job.Kind)
			}
			if err := h.engine.HandleStepJob(context.Background(), payload); err != nil {
				t.Fatalf("step job %s failed: %v", job.DedupKey, err)
			}
			ran++
		}
	}
}

func step(delay int, routeType string) escalation.Step {
	return escalation.Step{DelayMinutes: delay, RouteType: routeType}
}

func roleStep(delay int, role string) escalation.Step {
	return escalation.Step{DelayMinutes: delay, RouteType: escalation.RouteRole, RouteRole: role}
}

var errBoom = errors.New("boom")
