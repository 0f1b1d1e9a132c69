// Package planner is the scheduling core: it places production blocks on
// reactors, days and shifts over an in-memory snapshot and never does I/O.
// Reference data (reactors, holidays, maintenance) comes in through Calendar.
package planner

import (
	"time"

	"reactor-planner/internal/storage"
)

const dayLayout = "2006-01-02"

// Calendar is the read-only reference data for the period being scheduled.
type Calendar struct {
	Reactors    []storage.Reactor
	Holidays    []storage.Holiday
	Maintenance []storage.MaintenanceWindow
	Today       time.Time
	Location    *time.Location
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Day is a calendar date without time of day.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) Before(o Day) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Day) After(o Day) bool { return o.Before(d) }

func (d Day) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Day) AddDays(n int) Day {
	return DayOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC), nil)
}

// DateOnly reads the calendar date of a date-only value (holiday, deadline,
// maintenance bound) as written, without converting between zones.
func DateOnly(t time.Time) Day {
	return DayOf(t, nil)
}

// At returns the day at hour:00 in loc.
func (d Day) At(hour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, loc)
}

func (d Day) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dayLayout)
}

// Noon is the canonical point-in-day for stored scheduling dates.
func Noon(t time.Time, loc *time.Location) time.Time {
	return DayOf(t, loc).At(12, loc)
}

func Midnight(t time.Time, loc *time.Location) time.Time {
	return DayOf(t, loc).At(0, loc)
}

// ParseDay parses YYYY-MM-DD into noon of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dayLayout, s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return Noon(t, loc), nil
}

func (c Calendar) Reactor(name string) (storage.Reactor, bool) {
	for _, r := range c.Reactors {
		if r.Name == name {
			return r, true
		}
	}
	return storage.Reactor{}, false
}

func (c Calendar) ActiveReactors() []storage.Reactor {
	var out []storage.Reactor
	for _, r := range c.Reactors {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

func (c Calendar) InMaintenance(reactor string, day Day) (storage.MaintenanceWindow, bool) {
	for _, w := range c.Maintenance {
		if w.ReactorID != reactor {
			continue
		}
		start, end := DateOnly(w.StartDate), DateOnly(w.EndDate)
		if !day.Before(start) && !day.After(end) {
			return w, true
		}
	}
	return storage.MaintenanceWindow{}, false
}

func (c Calendar) IsHoliday(day Day) (storage.Holiday, bool) {
	for _, h := range c.Holidays {
		if DateOnly(h.Date) == day {
			return h, true
		}
	}
	return storage.Holiday{}, false
}

func IsWeekend(day Day) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
