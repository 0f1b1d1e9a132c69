package planner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reactor-planner/internal/storage"
)

// 2026-03-02 is a Monday.
func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func noon(s string) time.Time {
	return day(s).Add(12 * time.Hour)
}

func ptr[T any](v T) *T { return &v }

func pendingBlock(id string, units float64) storage.ProductionBlock {
	return storage.ProductionBlock{
		ID:           id,
		OrderNumber:  "ORD-" + id,
		ArticleCode:  "ART-1",
		ArticleDesc:  "Resina base",
		Units:        units,
		UnitsOrdered: units,
		Status:       storage.StatusPending,
		ClientName:   "Acme",
	}
}

func plannedBlock(id string, units float64, date, reactor string, shift storage.Shift) storage.ProductionBlock {
	b := pendingBlock(id, units)
	b.Status = storage.StatusPlanned
	b.PlannedDate = ptr(noon(date))
	b.PlannedReactor = ptr(reactor)
	b.PlannedShift = ptr(shift)
	return b
}

func testCalendar() Calendar {
	return Calendar{
		Reactors: []storage.Reactor{
			{Name: "R1", Capacity: 1000, DailyTarget: 1000, IsActive: true},
			{Name: "R2", Capacity: 0, DailyTarget: 2000, IsActive: true},
			{Name: "R9", Capacity: 500, DailyTarget: 500, IsActive: false},
		},
		Today:    noon("2026-03-02"),
		Location: time.UTC,
	}
}

func newTestStore(t *testing.T, blocks ...storage.ProductionBlock) *Store {
	t.Helper()
	s, err := NewStore(blocks)
	require.NoError(t, err)
	return s
}

func sequentialIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func tags(conflicts []Conflict) []ConflictTag {
	out := make([]ConflictTag, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Tag)
	}
	return out
}
