package planner

import (
	"fmt"
	"math"
	"slices"
	"time"

	"reactor-planner/internal/storage"
)

const (
	DefaultSplitThreshold = 2000
	DefaultMaxBatch       = 2000
)

// SplitPolicy decides when a block may be split and how large each batch is.
type SplitPolicy struct {
	Threshold float64 // blocks above this many units are split-eligible
	MaxBatch  float64 // upper bound for one batch
}

func DefaultSplitPolicy() SplitPolicy {
	return SplitPolicy{Threshold: DefaultSplitThreshold, MaxBatch: DefaultMaxBatch}
}

func (p SplitPolicy) Eligible(b storage.ProductionBlock) bool {
	if b.Status != storage.StatusPending && b.Status != storage.StatusPlanned {
		return false
	}
	return b.Units > p.Threshold
}

// BatchSizes divides units into the fewest batches of at most maxBatch.
// Every batch gets floor(units/n) and the whole units left over go one each
// to the first batches; a fractional rest lands on the last one. The sizes
// always add up to units exactly and none exceeds maxBatch.
func BatchSizes(units, maxBatch float64) []float64 {
	if units <= 0 || maxBatch <= 0 {
		return nil
	}
	if units <= maxBatch {
		return []float64{units}
	}

	for n := int(math.Ceil(units / maxBatch)); ; n++ {
		each := math.Floor(units / float64(n))
		if each <= 0 {
			return []float64{units}
		}

		sizes := make([]float64, n)
		for i := range sizes {
			sizes[i] = each
		}
		rest := units - each*float64(n)
		for i := 0; rest >= 1; i++ {
			sizes[i]++
			rest--
		}
		sizes[n-1] += rest

		if slices.Max(sizes) <= maxBatch {
			return sizes
		}
	}
}

// IDFunc produces ids for new sibling blocks.
type IDFunc func() string

// Split replaces a split-eligible block with sibling batches sized by policy.
func (e *Engine) Split(id string, policy SplitPolicy, newID IDFunc) ([]storage.ProductionBlock, error) {
	b, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if b.Status == storage.StatusProduced {
		return nil, fmt.Errorf("%w: block %s is already produced", ErrInvalidTransition, id)
	}
	if !policy.Eligible(b) {
		return nil, fmt.Errorf("%w: %s has %.0f units, threshold is %.0f", ErrNotSplitEligible, id, b.Units, policy.Threshold)
	}
	return e.SplitInto(id, BatchSizes(b.Units, policy.MaxBatch), newID)
}

// SplitInto replaces a block with one sibling per entry of sizes. The
// original id stops resolving; the sibling group (same order number and
// article) represents the work from now on. Siblings keep the original's
// status and placement.
func (e *Engine) SplitInto(id string, sizes []float64, newID IDFunc) ([]storage.ProductionBlock, error) {
	b, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if b.Status == storage.StatusProduced {
		return nil, fmt.Errorf("%w: block %s is already produced", ErrInvalidTransition, id)
	}
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: a split needs at least two batches", ErrInvalidArgument)
	}

	var total float64
	for _, u := range sizes {
		if u <= 0 {
			return nil, fmt.Errorf("%w: batch sizes must be > 0", ErrInvalidArgument)
		}
		total += u
	}
	if math.Abs(total-b.Units) > 1e-9 {
		return nil, fmt.Errorf("%w: batches add up to %v, block has %v units", ErrInvalidArgument, total, b.Units)
	}

	next := e.store.nextBatchIndex(b)

	siblings := make([]storage.ProductionBlock, 0, len(sizes))
	for i, units := range sizes {
		s := b.Clone()
		s.ID = newID()
		s.BatchLabel = batchLabel(next + i)
		s.Units = units
		s.Version = 0
		s.UpdatedAt = time.Time{}
		siblings = append(siblings, s)
	}

	if err := e.store.Replace(id, siblings); err != nil {
		return nil, err
	}
	return siblings, nil
}

// GroupSummary rolls up a sibling group for detail and reporting views.
type GroupSummary struct {
	OrderNumber     string     `json:"order_num"`
	ArticleCode     string     `json:"article_code"`
	Batches         int        `json:"batches"`
	TotalUnits      float64    `json:"total_units"`
	PendingUnits    float64    `json:"pending_units"`
	PlannedUnits    float64    `json:"planned_units"`
	ProducedUnits   float64    `json:"produced_units"`
	RealKg          float64    `json:"real_kg"`
	UnitsOrdered    float64    `json:"units_ordered"`
	UnitsServed     float64    `json:"units_served"`
	Deadline        *time.Time `json:"deadline"`
	LastPlannedDate *time.Time `json:"last_planned_date"`
	Late            bool       `json:"late"`
}

func Rollup(siblings []storage.ProductionBlock) GroupSummary {
	var g GroupSummary
	for _, b := range siblings {
		g.OrderNumber, g.ArticleCode = b.OrderNumber, b.ArticleCode
		g.Batches++
		g.TotalUnits += b.Units

		switch b.Status {
		case storage.StatusPending:
			g.PendingUnits += b.Units
		case storage.StatusPlanned:
			g.PlannedUnits += b.Units
		case storage.StatusProduced:
			g.ProducedUnits += b.Units
		}
		if b.RealKg != nil {
			g.RealKg += *b.RealKg
		}

		// order-level figures are copied onto every batch
		g.UnitsOrdered = max(g.UnitsOrdered, b.UnitsOrdered)
		g.UnitsServed = max(g.UnitsServed, b.UnitsServed)

		if b.Deadline != nil && (g.Deadline == nil || DateOnly(*b.Deadline).Before(DateOnly(*g.Deadline))) {
			d := *b.Deadline
			g.Deadline = &d
		}
		if b.PlannedDate != nil && (g.LastPlannedDate == nil || b.PlannedDate.After(*g.LastPlannedDate)) {
			d := *b.PlannedDate
			g.LastPlannedDate = &d
		}
	}
	if g.Deadline != nil && g.LastPlannedDate != nil {
		g.Late = DateOnly(*g.LastPlannedDate).After(DateOnly(*g.Deadline))
	}
	return g
}
