package planner

import (
	"fmt"
	"time"

	"reactor-planner/internal/storage"
)

// Engine applies single-block state changes to a Store:
//
//	PENDING --Assign--> PLANNED --RecordProduction(markProduced)--> PRODUCED
//	PLANNED --Unassign--> PENDING
//
// PRODUCED is terminal for scheduling; its real-data fields stay editable.
// Each operation builds the complete new block and commits it with a single
// Store.Put, so a failed call leaves the store untouched.
type Engine struct {
	store *Store
	cal   Calendar
}

func NewEngine(store *Store, cal Calendar) *Engine {
	return &Engine{store: store, cal: cal}
}

func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Calendar() Calendar { return e.cal }

// AssignResult carries the block after Assign plus what happened on the way.
type AssignResult struct {
	Block     storage.ProductionBlock
	Conflicts []Conflict // acknowledged conflicts, if any
	Changed   bool       // false when the block already had this placement
}

// Assign places a block on reactor/date/shift. Conflicts found by Validate
// stop the call with *ConflictsPendingError unless acknowledge is set.
func (e *Engine) Assign(id string, date time.Time, reactor string, shift storage.Shift, acknowledge bool) (AssignResult, error) {
	b, err := e.store.Get(id)
	if err != nil {
		return AssignResult{}, err
	}
	if _, ok := e.cal.Reactor(reactor); !ok {
		return AssignResult{}, fmt.Errorf("%w: reactor %s", ErrNotFound, reactor)
	}
	if !shift.IsValid() {
		return AssignResult{}, fmt.Errorf("%w: unknown shift %q", ErrInvalidArgument, shift)
	}
	if date.IsZero() {
		return AssignResult{}, fmt.Errorf("%w: planned date is required", ErrInvalidArgument)
	}
	if b.Status == storage.StatusProduced {
		return AssignResult{}, fmt.Errorf("%w: block %s is already produced", ErrInvalidTransition, id)
	}

	conflicts := Validate(b, date, reactor, shift, e.cal, e.store.All())
	if len(conflicts) > 0 && !acknowledge {
		return AssignResult{}, &ConflictsPendingError{BlockID: id, Conflicts: conflicts}
	}

	planned := Noon(date, e.cal.loc())
	if b.Status == storage.StatusPlanned && samePlacement(b, planned, reactor, shift) {
		return AssignResult{Block: b, Conflicts: conflicts}, nil
	}

	next := b.Clone()
	next.Status = storage.StatusPlanned
	next.PlannedDate = &planned
	next.PlannedReactor = &reactor
	next.PlannedShift = &shift

	if err := e.store.Put(next); err != nil {
		return AssignResult{}, err
	}
	return AssignResult{Block: next, Conflicts: conflicts, Changed: true}, nil
}

func samePlacement(b storage.ProductionBlock, date time.Time, reactor string, shift storage.Shift) bool {
	return b.PlannedDate != nil && b.PlannedDate.Equal(date) &&
		b.PlannedReactor != nil && *b.PlannedReactor == reactor &&
		b.PlannedShift != nil && *b.PlannedShift == shift
}

// Unassign moves a block back to PENDING. No conflict check: taking work out
// of the schedule is always safe. Unassigning a pending block is a no-op.
func (e *Engine) Unassign(id string) (storage.ProductionBlock, bool, error) {
	b, err := e.store.Get(id)
	if err != nil {
		return storage.ProductionBlock{}, false, err
	}
	switch b.Status {
	case storage.StatusPending:
		return b, false, nil
	case storage.StatusProduced:
		return storage.ProductionBlock{}, false, fmt.Errorf("%w: block %s is already produced", ErrInvalidTransition, id)
	}

	next := b.Clone()
	next.Status = storage.StatusPending
	next.PlannedDate = nil
	next.PlannedReactor = nil
	next.PlannedShift = nil

	if err := e.store.Put(next); err != nil {
		return storage.ProductionBlock{}, false, err
	}
	return next, true, nil
}

// Production holds the real output of a run.
type Production struct {
	RealKg       float64 `json:"real_kg"`
	RealDuration int     `json:"real_duration"`
	Notes        string  `json:"operator_notes"`
	MarkProduced bool    `json:"mark_produced"`
}

// RecordProduction logs real output on a planned or produced block. Without
// MarkProduced a planned block stays planned (partial logging).
func (e *Engine) RecordProduction(id string, p Production) (storage.ProductionBlock, error) {
	b, err := e.store.Get(id)
	if err != nil {
		return storage.ProductionBlock{}, err
	}
	if b.Status == storage.StatusPending {
		return storage.ProductionBlock{}, fmt.Errorf("%w: block %s is not planned", ErrInvalidTransition, id)
	}
	if p.RealKg < 0 || p.RealDuration < 0 {
		return storage.ProductionBlock{}, fmt.Errorf("%w: real kg and duration must not be negative", ErrInvalidArgument)
	}

	next := b.Clone()
	kg, minutes := p.RealKg, p.RealDuration
	next.RealKg = &kg
	next.RealDuration = &minutes
	next.OperatorNotes = p.Notes
	if p.MarkProduced {
		next.Status = storage.StatusProduced
	}

	if err := e.store.Put(next); err != nil {
		return storage.ProductionBlock{}, err
	}
	return next, nil
}
