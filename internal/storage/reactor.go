package storage

import "time"

type Reactor struct {
	Name        string  `json:"name"`
	Capacity    float64 `json:"capacity"`     // max kg per block, 0 = unconstrained
	DailyTarget float64 `json:"daily_target"` // kg per day
	IsActive    bool    `json:"is_active"`
}

// MaintenanceWindow covers StartDate..EndDate inclusive, whole days.
type MaintenanceWindow struct {
	ID        int64     `json:"id"`
	ReactorID string    `json:"reactor_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
}

type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}
