package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactor-planner/internal/storage"
)

func TestMonthlyCapacity_WorkingDays(t *testing.T) {
	cal := testCalendar()

	got := MonthlyCapacity(cal, 2026, time.March, nil)
	require.Len(t, got, 2, "inactive reactors are left out")
	assert.Equal(t, "R1", got[0].Reactor)
	assert.Equal(t, 22, got[0].WorkingDays)
	assert.Equal(t, 22000.0, got[0].EstimatedKg)
	assert.Equal(t, 44000.0, got[1].EstimatedKg)

	cal.Holidays = []storage.Holiday{{Date: day("2026-03-19"), Name: "San José"}}
	got = MonthlyCapacity(cal, 2026, time.March, nil)
	assert.Equal(t, 21, got[0].WorkingDays)
	assert.Equal(t, 21, got[1].WorkingDays)

	cal.Maintenance = []storage.MaintenanceWindow{{ReactorID: "R1", StartDate: day("2026-03-09"), EndDate: day("2026-03-10")}}
	got = MonthlyCapacity(cal, 2026, time.March, nil)
	assert.Equal(t, 19, got[0].WorkingDays)
	assert.Equal(t, 21, got[1].WorkingDays)
}

func TestMonthlyCapacity_ScheduledLoad(t *testing.T) {
	cal := testCalendar()

	produced := plannedBlock("p", 500, "2026-03-03", "R1", storage.ShiftMorning)
	produced.Status, produced.RealKg = storage.StatusProduced, ptr(480.0)
	blocks := []storage.ProductionBlock{
		plannedBlock("a", 1100, "2026-03-04", "R1", storage.ShiftMorning),
		produced,
		plannedBlock("april", 900, "2026-04-01", "R1", storage.ShiftMorning),
		plannedBlock("other", 700, "2026-03-04", "R2", storage.ShiftNight),
		pendingBlock("loose", 300),
	}

	got := MonthlyCapacity(cal, 2026, time.March, blocks)
	require.Len(t, got, 2)

	r1 := got[0]
	assert.Equal(t, 2, r1.BlocksPlanned)
	assert.Equal(t, 1100.0, r1.PlannedKg)
	assert.Equal(t, 480.0, r1.ProducedKg)
	assert.InDelta(t, 1580.0/22000.0, r1.Utilization, 1e-9)

	assert.Equal(t, 1, got[1].BlocksPlanned)
	assert.Equal(t, 700.0, got[1].PlannedKg)
}
