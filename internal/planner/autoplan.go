package planner

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"reactor-planner/internal/storage"
)

// Candidate is one reactor that can take a block on the day being filled.
type Candidate struct {
	Reactor   storage.Reactor
	Remaining float64 // ledger room before placing the block
	Slack     float64 // ledger room left after placing it
}

// ReactorComparator orders candidates for the same day; the first one wins.
type ReactorComparator func(a, b Candidate) int

// LeastSlack packs tightly and keeps big openings for big jobs later.
func LeastSlack(a, b Candidate) int { return cmp.Compare(a.Slack, b.Slack) }

// MostSlack spreads load across reactors.
func MostSlack(a, b Candidate) int { return cmp.Compare(b.Slack, a.Slack) }

func ComparatorByName(name string) (ReactorComparator, error) {
	switch name {
	case "", "least_slack":
		return LeastSlack, nil
	case "most_slack":
		return MostSlack, nil
	}
	return nil, fmt.Errorf("%w: unknown tie-break %q", ErrInvalidArgument, name)
}

type PlanOptions struct {
	Start        time.Time // first day of the horizon, Calendar.Today when zero
	HorizonDays  int
	Split        SplitPolicy
	SkipWeekends bool
	Compare      ReactorComparator
}

type ProposalEntry struct {
	BlockID        string        `json:"block_id"`
	OrderNumber    string        `json:"order_num"`
	ArticleCode    string        `json:"article_code"`
	BatchLabel     string        `json:"batch_label"`
	Units          float64       `json:"units"`
	PlannedDate    time.Time     `json:"planned_date"`
	PlannedReactor string        `json:"planned_reactor"`
	PlannedShift   storage.Shift `json:"planned_shift"`
	Split          bool          `json:"split"`
	CreatedSplits  int           `json:"created_splits"` // batches the block is split into, 0 if not split
}

// SplitPlan tells the commit step how to split a block before placing its pieces.
type SplitPlan struct {
	BlockID string    `json:"block_id"`
	Sizes   []float64 `json:"sizes"`
	Labels  []string  `json:"labels"`
}

type UnplacedBlock struct {
	BlockID    string  `json:"block_id"`
	BatchLabel string  `json:"batch_label"`
	Units      float64 `json:"units"`
	Reason     string  `json:"reason"`
}

type SkippedTarget struct {
	BlockID string `json:"block_id"`
	Reason  string `json:"reason"`
}

// Proposal is an unsaved bulk placement for a human to review, edit and commit.
type Proposal struct {
	HorizonStart time.Time       `json:"horizon_start"`
	HorizonDays  int             `json:"horizon_days"`
	Entries      []ProposalEntry `json:"entries"`
	SplitPlans   []SplitPlan     `json:"split_plans"`
	Unplaced     []UnplacedBlock `json:"unplaced"`
	Skipped      []SkippedTarget `json:"skipped"`
	Planned      int             `json:"planned"`
	Splits       int             `json:"splits"`
}

func (p Proposal) Exhausted() bool { return len(p.Unplaced) > 0 }

// Err reports ErrCapacityExhausted when something was left unplaced. The
// proposal itself is still valid for what it did place.
func (p Proposal) Err() error {
	if !p.Exhausted() {
		return nil
	}
	return fmt.Errorf("%w: %d pieces unplaced", ErrCapacityExhausted, len(p.Unplaced))
}

func (p Proposal) SplitPlanFor(blockID string) (SplitPlan, bool) {
	for _, sp := range p.SplitPlans {
		if sp.BlockID == blockID {
			return sp, true
		}
	}
	return SplitPlan{}, false
}

type slot struct {
	reactor string
	day     int
}

type ledger struct {
	days     []Day
	reactors []storage.Reactor
	room     map[slot]float64
	shifts   map[slot]int
	maxFit   float64
}

// newLedger seeds every (reactor, day) of the horizon with its daily room and
// then takes off what planned and produced blocks already hold there.
func newLedger(cal Calendar, store *Store, start Day, horizon int, skipWeekends bool) *ledger {
	l := &ledger{
		room:   make(map[slot]float64),
		shifts: make(map[slot]int),
	}
	for i := 0; i < horizon; i++ {
		l.days = append(l.days, start.AddDays(i))
	}

	reactors := cal.ActiveReactors()
	slices.SortFunc(reactors, func(a, b storage.Reactor) int { return cmp.Compare(a.Name, b.Name) })

	for _, r := range reactors {
		seed := r.DailyTarget
		if seed <= 0 {
			seed = r.Capacity
		}
		// no target and no capacity: manual-only resource
		if seed <= 0 {
			continue
		}
		l.reactors = append(l.reactors, r)

		fit := seed
		if r.Capacity > 0 {
			fit = min(fit, r.Capacity)
		}
		l.maxFit = max(l.maxFit, fit)

		for i, d := range l.days {
			_, holiday := cal.IsHoliday(d)
			_, maintenance := cal.InMaintenance(r.Name, d)
			if holiday || maintenance || (skipWeekends && IsWeekend(d)) {
				l.room[slot{r.Name, i}] = 0
				continue
			}
			l.room[slot{r.Name, i}] = seed
		}
	}

	index := make(map[Day]int, len(l.days))
	for i, d := range l.days {
		index[d] = i
	}
	for _, b := range store.All() {
		if b.Status == storage.StatusPending || b.PlannedDate == nil || b.PlannedReactor == nil {
			continue
		}
		i, ok := index[DayOf(*b.PlannedDate, cal.loc())]
		if !ok {
			continue
		}
		s := slot{*b.PlannedReactor, i}
		room, ok := l.room[s]
		if !ok {
			continue
		}
		l.room[s] = max(0, room-b.Units)
		l.shifts[s]++
	}
	return l
}

// place finds the earliest day with room for units and takes it.
func (l *ledger) place(units float64, compare ReactorComparator) (int, storage.Reactor, storage.Shift, bool) {
	for i := range l.days {
		var cands []Candidate
		for _, r := range l.reactors {
			if r.Capacity > 0 && r.Capacity < units {
				continue
			}
			room := l.room[slot{r.Name, i}]
			if room < units {
				continue
			}
			cands = append(cands, Candidate{Reactor: r, Remaining: room, Slack: room - units})
		}
		if len(cands) == 0 {
			continue
		}

		slices.SortStableFunc(cands, func(a, b Candidate) int {
			return cmp.Or(compare(a, b), cmp.Compare(a.Reactor.Name, b.Reactor.Name))
		})
		best := cands[0].Reactor
		s := slot{best.Name, i}
		l.room[s] -= units
		shift := storage.Shifts[l.shifts[s]%len(storage.Shifts)]
		l.shifts[s]++
		return i, best, shift, true
	}
	return 0, storage.Reactor{}, "", false
}

// AutoPlan proposes placements for the pending blocks among targetIDs with a
// deterministic earliest-deadline-first greedy pass. It reads the store and
// never writes to it; cancelling ctx discards the work.
func AutoPlan(ctx context.Context, store *Store, cal Calendar, targetIDs []string, opts PlanOptions) (Proposal, error) {
	if opts.HorizonDays <= 0 {
		return Proposal{}, fmt.Errorf("%w: horizon must be at least one day", ErrInvalidArgument)
	}
	if opts.Compare == nil {
		opts.Compare = LeastSlack
	}
	if opts.Split.MaxBatch <= 0 {
		opts.Split = DefaultSplitPolicy()
	}
	start := opts.Start
	if start.IsZero() {
		start = cal.Today
	}
	startDay := DayOf(start, cal.loc())

	p := Proposal{
		HorizonStart: startDay.At(12, cal.loc()),
		HorizonDays:  opts.HorizonDays,
	}

	var targets []storage.ProductionBlock
	seen := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		b, err := store.Get(id)
		if err != nil {
			p.Skipped = append(p.Skipped, SkippedTarget{BlockID: id, Reason: "not found"})
			continue
		}
		if b.Status != storage.StatusPending {
			p.Skipped = append(p.Skipped, SkippedTarget{BlockID: id, Reason: "status " + string(b.Status)})
			continue
		}
		targets = append(targets, b)
	}

	slices.SortStableFunc(targets, byDeadline)

	l := newLedger(cal, store, startDay, opts.HorizonDays, opts.SkipWeekends)
	labels := newLabeler(store)

	for _, b := range targets {
		if err := ctx.Err(); err != nil {
			return Proposal{}, err
		}

		if i, r, shift, ok := l.place(b.Units, opts.Compare); ok {
			p.Entries = append(p.Entries, ProposalEntry{
				BlockID:        b.ID,
				OrderNumber:    b.OrderNumber,
				ArticleCode:    b.ArticleCode,
				BatchLabel:     b.BatchLabel,
				Units:          b.Units,
				PlannedDate:    l.days[i].At(12, cal.loc()),
				PlannedReactor: r.Name,
				PlannedShift:   shift,
			})
			continue
		}

		sizes := BatchSizes(b.Units, min(opts.Split.MaxBatch, l.maxFit))
		if len(sizes) < 2 {
			p.Unplaced = append(p.Unplaced, UnplacedBlock{
				BlockID:    b.ID,
				BatchLabel: b.BatchLabel,
				Units:      b.Units,
				Reason:     "no reactor has room within the horizon",
			})
			continue
		}

		plan := SplitPlan{BlockID: b.ID, Sizes: sizes, Labels: labels.take(b, len(sizes))}
		p.SplitPlans = append(p.SplitPlans, plan)
		p.Splits++

		for k, units := range sizes {
			i, r, shift, ok := l.place(units, opts.Compare)
			if !ok {
				p.Unplaced = append(p.Unplaced, UnplacedBlock{
					BlockID:    b.ID,
					BatchLabel: plan.Labels[k],
					Units:      units,
					Reason:     "no reactor has room for this batch within the horizon",
				})
				continue
			}
			p.Entries = append(p.Entries, ProposalEntry{
				BlockID:        b.ID,
				OrderNumber:    b.OrderNumber,
				ArticleCode:    b.ArticleCode,
				BatchLabel:     plan.Labels[k],
				Units:          units,
				PlannedDate:    l.days[i].At(12, cal.loc()),
				PlannedReactor: r.Name,
				PlannedShift:   shift,
				Split:          true,
				CreatedSplits:  len(sizes),
			})
		}
	}

	p.Planned = len(p.Entries)
	return p, nil
}

func byDeadline(a, b storage.ProductionBlock) int {
	switch {
	case a.Deadline == nil && b.Deadline != nil:
		return 1
	case a.Deadline != nil && b.Deadline == nil:
		return -1
	case a.Deadline != nil && b.Deadline != nil:
		da, db := DateOnly(*a.Deadline), DateOnly(*b.Deadline)
		if da.Before(db) {
			return -1
		}
		if db.Before(da) {
			return 1
		}
	}
	return cmp.Or(
		cmp.Compare(a.OrderNumber, b.OrderNumber),
		cmp.Compare(a.ArticleCode, b.ArticleCode),
		cmp.Compare(a.ID, b.ID),
	)
}

// labeler hands out batch labels the same way SplitInto will, keeping track
// of labels already promised to earlier splits in the same proposal.
type labeler struct {
	store    *Store
	reserved map[[2]string]int
}

func newLabeler(store *Store) *labeler {
	return &labeler{store: store, reserved: make(map[[2]string]int)}
}

func (l *labeler) take(b storage.ProductionBlock, n int) []string {
	key := [2]string{b.OrderNumber, b.ArticleCode}

	next := l.store.nextBatchIndex(b)
	next = max(next, l.reserved[key])

	out := make([]string, n)
	for i := range out {
		out[i] = batchLabel(next + i)
	}
	l.reserved[key] = next + n
	return out
}
