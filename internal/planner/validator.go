package planner

import (
	"fmt"
	"time"

	"reactor-planner/internal/storage"
)

type ConflictTag string

const (
	ConflictMaintenance ConflictTag = "MAINTENANCE"
	ConflictCapacity    ConflictTag = "CAPACITY"
	ConflictWeekend     ConflictTag = "WEEKEND"
	ConflictDeadline    ConflictTag = "DEADLINE"
	ConflictHoliday     ConflictTag = "HOLIDAY"
	ConflictPastDate    ConflictTag = "PAST_DATE"
)

// Severity is carried on the wire for clients; every conflict is a warning
// the planner may acknowledge.
type Severity string

const SeverityWarning Severity = "warning"

type Conflict struct {
	Tag      ConflictTag `json:"tag"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`
}

func warning(tag ConflictTag, format string, args ...any) Conflict {
	return Conflict{Tag: tag, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// Validate checks a proposed placement and returns every violated constraint.
// All checks run; the result is never cut short at the first hit. blocks is
// the full snapshot, available to sibling-aware checks.
func Validate(block storage.ProductionBlock, date time.Time, reactor string, shift storage.Shift, cal Calendar, blocks []storage.ProductionBlock) []Conflict {
	day := DayOf(date, cal.loc())
	var conflicts []Conflict

	if w, ok := cal.InMaintenance(reactor, day); ok {
		conflicts = append(conflicts, warning(ConflictMaintenance,
			"reactor %s is in maintenance from %s to %s", reactor, DateOnly(w.StartDate), DateOnly(w.EndDate)))
	}

	if r, ok := cal.Reactor(reactor); ok && r.Capacity > 0 && block.Units > r.Capacity {
		conflicts = append(conflicts, warning(ConflictCapacity,
			"block needs %.0f kg but reactor %s holds %.0f kg", block.Units, reactor, r.Capacity))
	}

	if IsWeekend(day) {
		conflicts = append(conflicts, warning(ConflictWeekend, "%s falls on a %s", day, day.Weekday()))
	}

	if block.Deadline != nil {
		deadline := DateOnly(*block.Deadline)
		if day.After(deadline) {
			conflicts = append(conflicts, warning(ConflictDeadline,
				"planned %s is after the deadline %s", day, deadline))
		}
	}

	if h, ok := cal.IsHoliday(day); ok {
		name := h.Name
		if name == "" {
			name = "holiday"
		}
		conflicts = append(conflicts, warning(ConflictHoliday, "%s is a plant holiday (%s)", day, name))
	}

	if !cal.Today.IsZero() && day.Before(DayOf(cal.Today, cal.loc())) {
		conflicts = append(conflicts, warning(ConflictPastDate, "%s is in the past", day))
	}

	return conflicts
}
