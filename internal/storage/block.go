package storage

import (
	"fmt"
	"time"
)

type BlockStatus string

const (
	StatusPending  BlockStatus = "PENDING"
	StatusPlanned  BlockStatus = "PLANNED"
	StatusProduced BlockStatus = "PRODUCED"
)

func (s BlockStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusPlanned, StatusProduced:
		return true
	}
	return false
}

type Shift string

const (
	ShiftMorning   Shift = "MORNING"
	ShiftAfternoon Shift = "AFTERNOON"
	ShiftNight     Shift = "NIGHT"
)

// Shifts is the fixed order of shifts inside a production day.
var Shifts = []Shift{ShiftMorning, ShiftAfternoon, ShiftNight}

func (s Shift) IsValid() bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight:
		return true
	}
	return false
}

// ProductionBlock is one unit of manufacturing work. Split sub-batches share
// OrderNumber + ArticleCode and differ by BatchLabel.
type ProductionBlock struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_num"`
	ArticleCode string `json:"article_code"`
	ArticleDesc string `json:"article_desc"`
	BatchLabel  string `json:"batch_label"`

	Units        float64 `json:"units"`
	UnitsOrdered float64 `json:"units_ordered"`
	UnitsServed  float64 `json:"units_served"`

	Status         BlockStatus `json:"status"`
	PlannedDate    *time.Time  `json:"planned_date"`
	PlannedReactor *string     `json:"planned_reactor"`
	PlannedShift   *Shift      `json:"planned_shift"`

	Deadline   *time.Time `json:"deadline"`
	ClientName string     `json:"client_name"`

	RealKg        *float64 `json:"real_kg"`
	RealDuration  *int     `json:"real_duration"` // minutes
	OperatorNotes string   `json:"operator_notes"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckInvariants reports the first violated block invariant.
func (b ProductionBlock) CheckInvariants() error {
	if b.ID == "" {
		return fmt.Errorf("block id is empty")
	}
	if b.Units <= 0 {
		return fmt.Errorf("block %s: units must be > 0, got %v", b.ID, b.Units)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("block %s: unknown status %q", b.ID, b.Status)
	}

	placed := 0
	if b.PlannedDate != nil {
		placed++
	}
	if b.PlannedReactor != nil {
		placed++
	}
	if b.PlannedShift != nil {
		placed++
	}

	switch b.Status {
	case StatusPending:
		if placed != 0 {
			return fmt.Errorf("block %s: pending block must not carry a placement", b.ID)
		}
	default:
		if placed != 3 {
			return fmt.Errorf("block %s: %s block needs date, reactor and shift", b.ID, b.Status)
		}
		if !b.PlannedShift.IsValid() {
			return fmt.Errorf("block %s: unknown shift %q", b.ID, *b.PlannedShift)
		}
	}

	return nil
}

// Clone returns a copy that shares no pointers with b.
func (b ProductionBlock) Clone() ProductionBlock {
	c := b
	if b.PlannedDate != nil {
		d := *b.PlannedDate
		c.PlannedDate = &d
	}
	if b.PlannedReactor != nil {
		r := *b.PlannedReactor
		c.PlannedReactor = &r
	}
	if b.PlannedShift != nil {
		s := *b.PlannedShift
		c.PlannedShift = &s
	}
	if b.Deadline != nil {
		d := *b.Deadline
		c.Deadline = &d
	}
	if b.RealKg != nil {
		k := *b.RealKg
		c.RealKg = &k
	}
	if b.RealDuration != nil {
		m := *b.RealDuration
		c.RealDuration = &m
	}
	return c
}

// BlockFilter narrows ListBlocks. Zero values mean "any".
type BlockFilter struct {
	Status      BlockStatus `json:"status"`
	Reactor     string      `json:"reactor"`
	OrderNumber string      `json:"order_num"`
	ArticleCode string      `json:"article_code"`
	ClientName  string      `json:"client_name"`
	From        *time.Time  `json:"from"`
	To          *time.Time  `json:"to"`
	IDs         []string    `json:"ids"`
}
