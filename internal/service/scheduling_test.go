package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reactor-planner/internal/planner"
	"reactor-planner/internal/storage"
)

type MockPlanStorage struct {
	mock.Mock
}

func (m *MockPlanStorage) GetBlocks(ctx context.Context) ([]storage.ProductionBlock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ProductionBlock), args.Error(1)
}

func (m *MockPlanStorage) GetBlock(ctx context.Context, id string) (storage.ProductionBlock, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.ProductionBlock), args.Error(1)
}

func (m *MockPlanStorage) ListBlocks(ctx context.Context, f storage.BlockFilter) ([]storage.ProductionBlock, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ProductionBlock), args.Error(1)
}

func (m *MockPlanStorage) GetReactors(ctx context.Context, activeOnly bool) ([]storage.Reactor, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Reactor), args.Error(1)
}

func (m *MockPlanStorage) GetHolidays(ctx context.Context) ([]storage.Holiday, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Holiday), args.Error(1)
}

func (m *MockPlanStorage) GetMaintenanceWindows(ctx context.Context, reactorID string) ([]storage.MaintenanceWindow, error) {
	args := m.Called(ctx, reactorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.MaintenanceWindow), args.Error(1)
}

func (m *MockPlanStorage) SaveBlock(ctx context.Context, b storage.ProductionBlock, expectedVersion int64) (storage.ProductionBlock, error) {
	args := m.Called(ctx, b, expectedVersion)
	if fn, ok := args.Get(0).(func(storage.ProductionBlock, int64) storage.ProductionBlock); ok {
		return fn(b, expectedVersion), args.Error(1)
	}
	return args.Get(0).(storage.ProductionBlock), args.Error(1)
}

func (m *MockPlanStorage) ReplaceBlock(ctx context.Context, originalID string, expectedVersion int64, siblings []storage.ProductionBlock) error {
	args := m.Called(ctx, originalID, expectedVersion, siblings)
	return args.Error(0)
}

// bumpVersion behaves like a successful versioned write.
func bumpVersion(b storage.ProductionBlock, expected int64) storage.ProductionBlock {
	b.Version = expected + 1
	return b
}

var (
	monday   = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	reactors = []storage.Reactor{
		{Name: "R1", Capacity: 1000, DailyTarget: 1000, IsActive: true},
		{Name: "R2", DailyTarget: 2000, IsActive: true},
	}
)

func ptr[T any](v T) *T { return &v }

func noon(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func pending(id string, units float64) storage.ProductionBlock {
	return storage.ProductionBlock{
		ID:           id,
		OrderNumber:  "ORD-" + id,
		ArticleCode:  "ART-1",
		Units:        units,
		UnitsOrdered: units,
		Status:       storage.StatusPending,
		Version:      3,
	}
}

func newTestService(t *testing.T, blocks ...storage.ProductionBlock) (*SchedulingService, *MockPlanStorage) {
	t.Helper()

	m := new(MockPlanStorage)
	m.On("GetBlocks", mock.Anything).Return(blocks, nil)
	m.On("GetReactors", mock.Anything, false).Return(reactors, nil)
	m.On("GetHolidays", mock.Anything).Return([]storage.Holiday{}, nil)
	m.On("GetMaintenanceWindows", mock.Anything, "").Return([]storage.MaintenanceWindow{}, nil)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewSchedulingService(log, m, Policy{HorizonDays: 5})
	svc.now = func() time.Time { return monday }

	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
	return svc, m
}

func TestSchedulingService_LoadFailure(t *testing.T) {
	m := new(MockPlanStorage)
	m.On("GetBlocks", mock.Anything).Return([]storage.ProductionBlock{}, nil)
	m.On("GetReactors", mock.Anything, false).Return(reactors, nil)
	m.On("GetHolidays", mock.Anything).Return(nil, errors.New("connection refused"))
	m.On("GetMaintenanceWindows", mock.Anything, "").Return([]storage.MaintenanceWindow{}, nil)

	svc := NewSchedulingService(slog.New(slog.NewTextHandler(io.Discard, nil)), m, Policy{})

	_, err := svc.Assign(context.Background(), "a", AssignRequest{Date: monday, Reactor: "R1", Shift: storage.ShiftMorning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	m.AssertNotCalled(t, "SaveBlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulingService_AssignPersistsWithVersion(t *testing.T) {
	svc, m := newTestService(t, pending("a", 800))
	m.On("SaveBlock", mock.Anything, mock.MatchedBy(func(b storage.ProductionBlock) bool {
		return b.ID == "a" && b.Status == storage.StatusPlanned && *b.PlannedReactor == "R1"
	}), int64(3)).Return(bumpVersion, nil).Once()

	res, err := svc.Assign(context.Background(), "a", AssignRequest{
		Date:    noon(2026, 3, 4),
		Reactor: "R1",
		Shift:   storage.ShiftMorning,
	})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, int64(4), res.Block.Version)
	assert.Equal(t, noon(2026, 3, 4), *res.Block.PlannedDate)
	m.AssertExpectations(t)
}

func TestSchedulingService_AssignConflictsPending(t *testing.T) {
	svc, m := newTestService(t, pending("a", 1500))

	_, err := svc.Assign(context.Background(), "a", AssignRequest{
		Date:    noon(2026, 3, 4),
		Reactor: "R1",
		Shift:   storage.ShiftMorning,
	})

	var conflicts *planner.ConflictsPendingError
	require.ErrorAs(t, err, &conflicts)
	assert.Equal(t, planner.ConflictCapacity, conflicts.Conflicts[0].Tag)
	m.AssertNotCalled(t, "SaveBlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulingService_AssignSamePlacementSkipsWrite(t *testing.T) {
	b := pending("a", 500)
	b.Status = storage.StatusPlanned
	b.PlannedDate = ptr(noon(2026, 3, 4))
	b.PlannedReactor = ptr("R2")
	b.PlannedShift = ptr(storage.ShiftNight)
	svc, m := newTestService(t, b)

	res, err := svc.Assign(context.Background(), "a", AssignRequest{
		Date:    time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC),
		Reactor: "R2",
		Shift:   storage.ShiftNight,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	m.AssertNotCalled(t, "SaveBlock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulingService_VersionConflictPropagates(t *testing.T) {
	svc, m := newTestService(t, pending("a", 500))
	m.On("SaveBlock", mock.Anything, mock.Anything, int64(3)).
		Return(storage.ProductionBlock{}, fmt.Errorf("storage.mysql.SaveBlock: a: %w", storage.ErrVersionConflict))

	_, err := svc.Assign(context.Background(), "a", AssignRequest{Date: noon(2026, 3, 4), Reactor: "R2", Shift: storage.ShiftMorning})
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func TestSchedulingService_UnassignPendingIsNoop(t *testing.T) {
	svc, m := newTestService(t, pending("a", 500))

	b, err := svc.Unassign(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPending, b.Status)
	m.AssertNotCalled(t, "SaveBlock", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.Unassign(context.Background(), "zzz")
	assert.ErrorIs(t, err, planner.ErrNotFound)
}

func TestSchedulingService_RecordProduction(t *testing.T) {
	b := pending("a", 500)
	b.Status = storage.StatusPlanned
	b.PlannedDate = ptr(noon(2026, 3, 2))
	b.PlannedReactor = ptr("R1")
	b.PlannedShift = ptr(storage.ShiftMorning)
	svc, m := newTestService(t, b, pending("p", 100))
	m.On("SaveBlock", mock.Anything, mock.Anything, int64(3)).Return(bumpVersion, nil).Once()

	saved, err := svc.RecordProduction(context.Background(), "a", planner.Production{RealKg: 498, RealDuration: 95, MarkProduced: true})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusProduced, saved.Status)
	assert.Equal(t, 498.0, *saved.RealKg)

	_, err = svc.RecordProduction(context.Background(), "p", planner.Production{RealKg: 1})
	assert.ErrorIs(t, err, planner.ErrInvalidTransition)
	m.AssertNumberOfCalls(t, "SaveBlock", 1)
}

func TestSchedulingService_Split(t *testing.T) {
	svc, m := newTestService(t, pending("big", 4500))
	m.On("ReplaceBlock", mock.Anything, "big", int64(3), mock.MatchedBy(func(s []storage.ProductionBlock) bool {
		var total float64
		for _, b := range s {
			total += b.Units
		}
		return len(s) == 3 && total == 4500
	})).Return(nil).Once()

	siblings, err := svc.Split(context.Background(), "big")
	require.NoError(t, err)
	require.Len(t, siblings, 3)
	assert.Equal(t, "new-1", siblings[0].ID)
	assert.Equal(t, "T3", siblings[2].BatchLabel)
	m.AssertExpectations(t)
}

func TestSchedulingService_SplitUnderThreshold(t *testing.T) {
	svc, m := newTestService(t, pending("small", 1200))

	_, err := svc.Split(context.Background(), "small")
	assert.ErrorIs(t, err, planner.ErrNotSplitEligible)
	m.AssertNotCalled(t, "ReplaceBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulingService_AutoPlanDefaultsToAllPending(t *testing.T) {
	planned := pending("done", 100)
	planned.Status = storage.StatusPlanned
	planned.PlannedDate = ptr(noon(2026, 3, 2))
	planned.PlannedReactor = ptr("R1")
	planned.PlannedShift = ptr(storage.ShiftMorning)

	svc, m := newTestService(t, pending("a", 800), pending("b", 800), planned)

	p, err := svc.AutoPlan(context.Background(), nil, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, p.HorizonDays)
	assert.Equal(t, 2, p.Planned)
	assert.Empty(t, p.Skipped)
	m.AssertNotCalled(t, "SaveBlock", mock.Anything, mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "ReplaceBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulingService_AutoPlanLogsExhaustedCapacity(t *testing.T) {
	svc, _ := newTestService(t, pending("huge", 5000))

	var buf bytes.Buffer
	svc.log = slog.New(slog.NewTextHandler(&buf, nil))

	p, err := svc.AutoPlan(context.Background(), nil, 1)
	require.NoError(t, err)

	require.NotEmpty(t, p.Unplaced)
	assert.ErrorIs(t, p.Err(), planner.ErrCapacityExhausted)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "capacity exhausted within horizon")
}

func TestSchedulingService_CommitProposal(t *testing.T) {
	late := pending("late", 600)
	late.Deadline = ptr(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	svc, m := newTestService(t, pending("a", 800), pending("big", 2500), late)

	proposal, err := svc.AutoPlan(context.Background(), []string{"a", "big", "late"}, 0)
	require.NoError(t, err)
	require.Len(t, proposal.SplitPlans, 1)

	m.On("SaveBlock", mock.Anything, mock.Anything, int64(3)).Return(bumpVersion, nil)
	m.On("ReplaceBlock", mock.Anything, "big", int64(3), mock.MatchedBy(func(s []storage.ProductionBlock) bool {
		for _, b := range s {
			if b.Status != storage.StatusPlanned {
				return false
			}
		}
		return len(s) == len(proposal.SplitPlans[0].Sizes)
	})).Return(nil).Once()

	res, err := svc.Commit(context.Background(), proposal)
	require.NoError(t, err)

	assert.Empty(t, res.Failed)
	assert.Len(t, res.Committed, 2+len(proposal.SplitPlans[0].Sizes))
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "late", res.Conflicts[0].BlockID)
	assert.Equal(t, planner.ConflictDeadline, res.Conflicts[0].Conflicts[0].Tag)
	m.AssertNumberOfCalls(t, "SaveBlock", 2)
	m.AssertExpectations(t)
}

func TestSchedulingService_CommitReportsPerBlockFailures(t *testing.T) {
	taken := pending("taken", 300)
	taken.Status = storage.StatusPlanned
	taken.PlannedDate = ptr(noon(2026, 3, 3))
	taken.PlannedReactor = ptr("R2")
	taken.PlannedShift = ptr(storage.ShiftNight)

	svc, m := newTestService(t, pending("a", 300), taken)
	m.On("SaveBlock", mock.Anything, mock.MatchedBy(func(b storage.ProductionBlock) bool { return b.ID == "a" }), int64(3)).
		Return(storage.ProductionBlock{}, storage.ErrVersionConflict).Once()

	proposal := planner.Proposal{Entries: []planner.ProposalEntry{
		{BlockID: "a", PlannedDate: noon(2026, 3, 2), PlannedReactor: "R1", PlannedShift: storage.ShiftMorning},
		{BlockID: "taken", PlannedDate: noon(2026, 3, 2), PlannedReactor: "R1", PlannedShift: storage.ShiftAfternoon},
		{BlockID: "ghost", PlannedDate: noon(2026, 3, 2), PlannedReactor: "R1", PlannedShift: storage.ShiftNight},
	}}

	res, err := svc.Commit(context.Background(), proposal)
	require.NoError(t, err)

	assert.Empty(t, res.Committed)
	require.Len(t, res.Failed, 3)
	assert.ErrorIs(t, res.Failed[0], storage.ErrVersionConflict)
	assert.ErrorIs(t, res.Failed[1], planner.ErrInvalidTransition)
	assert.ErrorIs(t, res.Failed[2], planner.ErrNotFound)
}

func TestSchedulingService_ListSiblings(t *testing.T) {
	svc, m := newTestService(t)

	t1, t2 := pending("x", 1500), pending("y", 1500)
	t1.OrderNumber, t1.BatchLabel = "ORD-1", "T2"
	t2.OrderNumber, t2.BatchLabel = "ORD-1", "T1"
	m.On("ListBlocks", mock.Anything, storage.BlockFilter{OrderNumber: "ORD-1", ArticleCode: "ART-1"}).
		Return([]storage.ProductionBlock{t1, t2}, nil)

	g, err := svc.ListSiblings(context.Background(), "ORD-1", "ART-1")
	require.NoError(t, err)
	require.Len(t, g.Blocks, 2)
	assert.Equal(t, "T1", g.Blocks[0].BatchLabel)
	assert.Equal(t, 2, g.Summary.Batches)
	assert.Equal(t, 3000.0, g.Summary.PendingUnits)
}

func TestSchedulingService_MonthlyCapacity(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.MonthlyCapacity(context.Background(), 2026, time.March)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 22, got[0].WorkingDays)

	_, err = svc.MonthlyCapacity(context.Background(), 2026, 13)
	assert.ErrorIs(t, err, planner.ErrInvalidArgument)
}
