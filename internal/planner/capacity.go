package planner

import (
	"time"

	"reactor-planner/internal/storage"
)

type ReactorCapacity struct {
	Reactor       string  `json:"reactor"`
	WorkingDays   int     `json:"working_days"`
	EstimatedKg   float64 `json:"estimated_kg"`
	PlannedKg     float64 `json:"planned_kg"`
	ProducedKg    float64 `json:"produced_kg"`
	Utilization   float64 `json:"utilization"` // planned+produced over estimate, 0 when no estimate
	BlocksPlanned int     `json:"blocks_planned"`
}

// MonthlyCapacity estimates what each active reactor can produce in a month
// (working days × daily target) against what is already scheduled on it.
// Weekends, holidays and the reactor's maintenance days are not working days.
func MonthlyCapacity(cal Calendar, year int, month time.Month, blocks []storage.ProductionBlock) []ReactorCapacity {
	first := Day{Year: year, Month: month, Day: 1}
	var days []Day
	for d := first; d.Month == month; d = d.AddDays(1) {
		days = append(days, d)
	}

	var out []ReactorCapacity
	for _, r := range cal.ActiveReactors() {
		rc := ReactorCapacity{Reactor: r.Name}
		for _, d := range days {
			if IsWeekend(d) {
				continue
			}
			if _, ok := cal.IsHoliday(d); ok {
				continue
			}
			if _, ok := cal.InMaintenance(r.Name, d); ok {
				continue
			}
			rc.WorkingDays++
		}
		rc.EstimatedKg = float64(rc.WorkingDays) * r.DailyTarget

		for _, b := range blocks {
			if b.PlannedReactor == nil || *b.PlannedReactor != r.Name || b.PlannedDate == nil {
				continue
			}
			d := DayOf(*b.PlannedDate, cal.loc())
			if d.Year != year || d.Month != month {
				continue
			}
			rc.BlocksPlanned++
			switch b.Status {
			case storage.StatusPlanned:
				rc.PlannedKg += b.Units
			case storage.StatusProduced:
				if b.RealKg != nil {
					rc.ProducedKg += *b.RealKg
				} else {
					rc.ProducedKg += b.Units
				}
			}
		}
		if rc.EstimatedKg > 0 {
			rc.Utilization = (rc.PlannedKg + rc.ProducedKg) / rc.EstimatedKg
		}
		out = append(out, rc)
	}
	return out
}
