package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay_AddDaysCrossesMonthAndYear(t *testing.T) {
	d := Day{Year: 2026, Month: time.December, Day: 30}

	assert.Equal(t, "2027-01-02", d.AddDays(3).String())
	assert.Equal(t, "2026-12-01", d.AddDays(-29).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestNoon_UsesCalendarZone(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)

	// 02:00 UTC on the 5th is still the evening of the 4th in loc
	got := Noon(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2026, 3, 4, 12, 0, 0, 0, loc), got)

	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), Midnight(got, loc))
}

func TestParseDay(t *testing.T) {
	got, err := ParseDay("2026-03-04", nil)
	require.NoError(t, err)
	assert.Equal(t, noon("2026-03-04"), got)

	_, err = ParseDay("04/03/2026", nil)
	assert.Error(t, err)
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(DateOnly(day("2026-03-07"))))
	assert.True(t, IsWeekend(DateOnly(day("2026-03-08"))))
	assert.False(t, IsWeekend(DateOnly(day("2026-03-09"))))
}

func TestCalendar_Reactors(t *testing.T) {
	cal := testCalendar()

	r, ok := cal.Reactor("R9")
	assert.True(t, ok)
	assert.False(t, r.IsActive)

	_, ok = cal.Reactor("R7")
	assert.False(t, ok)

	var names []string
	for _, r := range cal.ActiveReactors() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"R1", "R2"}, names)
}
