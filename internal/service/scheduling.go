package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reactor-planner/internal/planner"
	"reactor-planner/internal/storage"
)

type PlanStorage interface {
	GetBlocks(ctx context.Context) ([]storage.ProductionBlock, error)
	GetBlock(ctx context.Context, id string) (storage.ProductionBlock, error)
	ListBlocks(ctx context.Context, f storage.BlockFilter) ([]storage.ProductionBlock, error)
	GetReactors(ctx context.Context, activeOnly bool) ([]storage.Reactor, error)
	GetHolidays(ctx context.Context) ([]storage.Holiday, error)
	GetMaintenanceWindows(ctx context.Context, reactorID string) ([]storage.MaintenanceWindow, error)
	SaveBlock(ctx context.Context, b storage.ProductionBlock, expectedVersion int64) (storage.ProductionBlock, error)
	ReplaceBlock(ctx context.Context, originalID string, expectedVersion int64, siblings []storage.ProductionBlock) error
}

// Policy is the planning configuration the service applies to every call.
type Policy struct {
	Location     *time.Location
	Split        planner.SplitPolicy
	HorizonDays  int
	SkipWeekends bool
	Compare      planner.ReactorComparator
}

type SchedulingService struct {
	log     *slog.Logger
	storage PlanStorage
	policy  Policy

	now   func() time.Time
	newID planner.IDFunc
}

func NewSchedulingService(log *slog.Logger, storage PlanStorage, policy Policy) *SchedulingService {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.Split.MaxBatch <= 0 {
		policy.Split = planner.DefaultSplitPolicy()
	}
	if policy.Compare == nil {
		policy.Compare = planner.LeastSlack
	}
	return &SchedulingService{
		log:     log,
		storage: storage,
		policy:  policy,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

type snapshot struct {
	store *planner.Store
	cal   planner.Calendar
}

func (s snapshot) engine() *planner.Engine {
	return planner.NewEngine(s.store, s.cal)
}

// loadSnapshot reads blocks and reference data in parallel and builds the
// in-memory state one operation runs against.
func (s *SchedulingService) loadSnapshot(ctx context.Context) (snapshot, error) {
	const op = "service.scheduling.loadSnapshot"

	var (
		blocks      []storage.ProductionBlock
		reactors    []storage.Reactor
		holidays    []storage.Holiday
		maintenance []storage.MaintenanceWindow
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		blocks, err = s.storage.GetBlocks(gCtx)
		if err != nil {
			return fmt.Errorf("blocks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		reactors, err = s.storage.GetReactors(gCtx, false)
		if err != nil {
			return fmt.Errorf("reactors: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		holidays, err = s.storage.GetHolidays(gCtx)
		if err != nil {
			return fmt.Errorf("holidays: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		maintenance, err = s.storage.GetMaintenanceWindows(gCtx, "")
		if err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	store, err := planner.NewStore(blocks)
	if err != nil {
		return snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug("snapshot loaded",
		slog.Int("blocks", len(blocks)),
		slog.Int("reactors", len(reactors)),
		slog.Int("holidays", len(holidays)),
		slog.Int("maintenance_windows", len(maintenance)),
	)

	return snapshot{
		store: store,
		cal: planner.Calendar{
			Reactors:    reactors,
			Holidays:    holidays,
			Maintenance: maintenance,
			Today:       s.now().In(s.policy.Location),
			Location:    s.policy.Location,
		},
	}, nil
}

type AssignRequest struct {
	Date        time.Time
	Reactor     string
	Shift       storage.Shift
	Acknowledge bool
}

// Assign places one block and persists it. Identical re-submissions return
// the stored block without writing.
func (s *SchedulingService) Assign(ctx context.Context, id string, req AssignRequest) (planner.AssignResult, error) {
	const op = "service.scheduling.Assign"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return planner.AssignResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := snap.engine().Assign(id, req.Date, req.Reactor, req.Shift, req.Acknowledge)
	if err != nil {
		var pending *planner.ConflictsPendingError
		if errors.As(err, &pending) {
			s.log.Warn("assignment needs acknowledgement",
				slog.String("block_id", id),
				slog.Any("conflicts", conflictTags(pending.Conflicts)),
			)
		}
		return planner.AssignResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !res.Changed {
		return res, nil
	}

	saved, err := s.storage.SaveBlock(ctx, res.Block, res.Block.Version)
	if err != nil {
		return planner.AssignResult{}, fmt.Errorf("%s: %w", op, err)
	}
	res.Block = saved

	s.log.Info("block assigned",
		slog.String("block_id", id),
		slog.String("reactor", req.Reactor),
		slog.String("shift", string(req.Shift)),
		slog.Int("acknowledged_conflicts", len(res.Conflicts)),
	)
	return res, nil
}

func (s *SchedulingService) Unassign(ctx context.Context, id string) (storage.ProductionBlock, error) {
	const op = "service.scheduling.Unassign"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	b, changed, err := snap.engine().Unassign(id)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return b, nil
	}

	saved, err := s.storage.SaveBlock(ctx, b, b.Version)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

func (s *SchedulingService) RecordProduction(ctx context.Context, id string, p planner.Production) (storage.ProductionBlock, error) {
	const op = "service.scheduling.RecordProduction"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	b, err := snap.engine().RecordProduction(id, p)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := s.storage.SaveBlock(ctx, b, b.Version)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("production recorded",
		slog.String("block_id", id),
		slog.Float64("real_kg", p.RealKg),
		slog.Bool("produced", saved.Status == storage.StatusProduced),
	)
	return saved, nil
}

// Split replaces a block with sub-batches using the configured policy.
func (s *SchedulingService) Split(ctx context.Context, id string) ([]storage.ProductionBlock, error) {
	const op = "service.scheduling.Split"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	orig, err := snap.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	siblings, err := snap.engine().Split(id, s.policy.Split, s.newID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.ReplaceBlock(ctx, id, orig.Version, siblings); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("block split",
		slog.String("block_id", id),
		slog.Int("batches", len(siblings)),
		slog.Float64("units", orig.Units),
	)
	return siblings, nil
}

// AutoPlan builds a proposal for ids, or for every pending block when ids is
// empty. horizonDays <= 0 uses the configured horizon. Nothing is persisted.
func (s *SchedulingService) AutoPlan(ctx context.Context, ids []string, horizonDays int) (planner.Proposal, error) {
	const op = "service.scheduling.AutoPlan"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return planner.Proposal{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(ids) == 0 {
		for _, b := range snap.store.List(storage.BlockFilter{Status: storage.StatusPending}) {
			ids = append(ids, b.ID)
		}
	}
	if horizonDays <= 0 {
		horizonDays = s.policy.HorizonDays
	}

	p, err := planner.AutoPlan(ctx, snap.store, snap.cal, ids, planner.PlanOptions{
		Start:        snap.cal.Today,
		HorizonDays:  horizonDays,
		Split:        s.policy.Split,
		SkipWeekends: s.policy.SkipWeekends,
		Compare:      s.policy.Compare,
	})
	if err != nil {
		return planner.Proposal{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("auto-plan proposal built",
		slog.Int("targets", len(ids)),
		slog.Int("planned", p.Planned),
		slog.Int("splits", p.Splits),
		slog.Int("unplaced", len(p.Unplaced)),
		slog.Int("skipped", len(p.Skipped)),
	)
	if err := p.Err(); err != nil {
		s.log.Warn("auto-plan left work unplaced", slog.String("error", err.Error()))
	}
	return p, nil
}

type CommitFailure struct {
	BlockID string `json:"block_id"`
	Reason  string `json:"reason"`
	err     error
}

func (f CommitFailure) Error() string { return f.BlockID + ": " + f.Reason }

func (f CommitFailure) Unwrap() error { return f.err }

type CommitConflict struct {
	BlockID    string             `json:"block_id"`
	BatchLabel string             `json:"batch_label"`
	Conflicts  []planner.Conflict `json:"conflicts"`
}

type CommitResult struct {
	Committed []storage.ProductionBlock `json:"committed"`
	Failed    []CommitFailure           `json:"failed"`
	Conflicts []CommitConflict          `json:"conflicts"`
}

// Commit applies a reviewed proposal. Each block commits on its own: a block
// that fails is reported and the rest go ahead. Conflicts found while
// applying are acknowledged and reported.
func (s *SchedulingService) Commit(ctx context.Context, p planner.Proposal) (CommitResult, error) {
	const op = "service.scheduling.Commit"

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return CommitResult{}, fmt.Errorf("%s: %w", op, err)
	}
	e := snap.engine()

	var order []string
	byBlock := make(map[string][]planner.ProposalEntry)
	for _, ent := range p.Entries {
		if _, ok := byBlock[ent.BlockID]; !ok {
			order = append(order, ent.BlockID)
		}
		byBlock[ent.BlockID] = append(byBlock[ent.BlockID], ent)
	}

	var res CommitResult
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}

		saved, conflicts, err := s.commitBlock(ctx, e, p, id, byBlock[id])
		if err != nil {
			s.log.Warn("proposal entry not committed", slog.String("block_id", id), slog.String("error", err.Error()))
			res.Failed = append(res.Failed, CommitFailure{BlockID: id, Reason: err.Error(), err: err})
			continue
		}
		res.Committed = append(res.Committed, saved...)
		res.Conflicts = append(res.Conflicts, conflicts...)
	}

	s.log.Info("proposal committed",
		slog.Int("blocks", len(order)),
		slog.Int("committed", len(res.Committed)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (s *SchedulingService) commitBlock(ctx context.Context, e *planner.Engine, p planner.Proposal, id string, entries []planner.ProposalEntry) ([]storage.ProductionBlock, []CommitConflict, error) {
	orig, err := e.Store().Get(id)
	if err != nil {
		return nil, nil, err
	}
	if orig.Status != storage.StatusPending {
		return nil, nil, fmt.Errorf("%w: block %s is %s, not pending", planner.ErrInvalidTransition, id, orig.Status)
	}

	plan, split := p.SplitPlanFor(id)
	if !split {
		if len(entries) != 1 {
			return nil, nil, fmt.Errorf("%w: block %s has %d entries and no split plan", planner.ErrInvalidArgument, id, len(entries))
		}
		ent := entries[0]
		r, err := e.Assign(id, ent.PlannedDate, ent.PlannedReactor, ent.PlannedShift, true)
		if err != nil {
			return nil, nil, err
		}
		saved, err := s.storage.SaveBlock(ctx, r.Block, orig.Version)
		if err != nil {
			return nil, nil, err
		}
		var conflicts []CommitConflict
		if len(r.Conflicts) > 0 {
			conflicts = append(conflicts, CommitConflict{BlockID: id, BatchLabel: saved.BatchLabel, Conflicts: r.Conflicts})
		}
		return []storage.ProductionBlock{saved}, conflicts, nil
	}

	siblings, err := e.SplitInto(id, plan.Sizes, s.newID)
	if err != nil {
		return nil, nil, err
	}

	var conflicts []CommitConflict
	for _, ent := range entries {
		k := slices.Index(plan.Labels, ent.BatchLabel)
		if k < 0 || k >= len(siblings) {
			return nil, nil, fmt.Errorf("%w: batch %s is not in the split plan of %s", planner.ErrInvalidArgument, ent.BatchLabel, id)
		}
		r, err := e.Assign(siblings[k].ID, ent.PlannedDate, ent.PlannedReactor, ent.PlannedShift, true)
		if err != nil {
			return nil, nil, err
		}
		siblings[k] = r.Block
		if len(r.Conflicts) > 0 {
			conflicts = append(conflicts, CommitConflict{BlockID: r.Block.ID, BatchLabel: r.Block.BatchLabel, Conflicts: r.Conflicts})
		}
	}

	if err := s.storage.ReplaceBlock(ctx, id, orig.Version, siblings); err != nil {
		return nil, nil, err
	}
	return siblings, conflicts, nil
}

func (s *SchedulingService) GetBlock(ctx context.Context, id string) (storage.ProductionBlock, error) {
	const op = "service.scheduling.GetBlock"

	b, err := s.storage.GetBlock(ctx, id)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// ListBlocks returns the blocks matching f ordered by planned date.
func (s *SchedulingService) ListBlocks(ctx context.Context, f storage.BlockFilter) ([]storage.ProductionBlock, error) {
	const op = "service.scheduling.ListBlocks"

	blocks, err := s.storage.ListBlocks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store, err := planner.NewStore(blocks)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return store.List(f), nil
}

type SiblingGroup struct {
	Summary planner.GroupSummary      `json:"summary"`
	Blocks  []storage.ProductionBlock `json:"blocks"`
}

func (s *SchedulingService) ListSiblings(ctx context.Context, orderNumber, articleCode string) (SiblingGroup, error) {
	const op = "service.scheduling.ListSiblings"

	blocks, err := s.storage.ListBlocks(ctx, storage.BlockFilter{OrderNumber: orderNumber, ArticleCode: articleCode})
	if err != nil {
		return SiblingGroup{}, fmt.Errorf("%s: %w", op, err)
	}

	store, err := planner.NewStore(blocks)
	if err != nil {
		return SiblingGroup{}, fmt.Errorf("%s: %w", op, err)
	}

	siblings := store.Siblings(orderNumber, articleCode)
	return SiblingGroup{Summary: planner.Rollup(siblings), Blocks: siblings}, nil
}

func (s *SchedulingService) GetReactors(ctx context.Context, activeOnly bool) ([]storage.Reactor, error) {
	const op = "service.scheduling.GetReactors"

	reactors, err := s.storage.GetReactors(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reactors, nil
}

func (s *SchedulingService) GetHolidays(ctx context.Context) ([]storage.Holiday, error) {
	const op = "service.scheduling.GetHolidays"

	holidays, err := s.storage.GetHolidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return holidays, nil
}

func (s *SchedulingService) GetMaintenanceWindows(ctx context.Context, reactorID string) ([]storage.MaintenanceWindow, error) {
	const op = "service.scheduling.GetMaintenanceWindows"

	windows, err := s.storage.GetMaintenanceWindows(ctx, reactorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return windows, nil
}

func (s *SchedulingService) MonthlyCapacity(ctx context.Context, year int, month time.Month) ([]planner.ReactorCapacity, error) {
	const op = "service.scheduling.MonthlyCapacity"

	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%s: %w: month %d", op, planner.ErrInvalidArgument, month)
	}

	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return planner.MonthlyCapacity(snap.cal, year, month, snap.store.All()), nil
}

func conflictTags(conflicts []planner.Conflict) []string {
	out := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, string(c.Tag))
	}
	return out
}
