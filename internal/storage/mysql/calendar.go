package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"reactor-planner/internal/storage"
)

const errNoReferencedRow = 1452

func (s *Storage) GetReactors(ctx context.Context, activeOnly bool) ([]storage.Reactor, error) {
	const op = "storage.mysql.GetReactors"

	query := "SELECT name, capacity, daily_target, is_active FROM reactors"
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var reactors []storage.Reactor
	for rows.Next() {
		var r storage.Reactor
		if err := rows.Scan(&r.Name, &r.Capacity, &r.DailyTarget, &r.IsActive); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		reactors = append(reactors, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return reactors, nil
}

func (s *Storage) SaveReactor(ctx context.Context, r storage.Reactor) error {
	const op = "storage.mysql.SaveReactor"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactors (name, capacity, daily_target, is_active)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE capacity = VALUES(capacity), daily_target = VALUES(daily_target), is_active = VALUES(is_active)
	`, r.Name, r.Capacity, r.DailyTarget, r.IsActive)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetHolidays(ctx context.Context) ([]storage.Holiday, error) {
	const op = "storage.mysql.GetHolidays"

	rows, err := s.db.QueryContext(ctx, "SELECT holiday_date, name FROM holidays ORDER BY holiday_date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var holidays []storage.Holiday
	for rows.Next() {
		var h storage.Holiday
		if err := rows.Scan(&h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		holidays = append(holidays, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return holidays, nil
}

// GetMaintenanceWindows lists windows for one reactor, or all of them when
// reactorID is empty.
func (s *Storage) GetMaintenanceWindows(ctx context.Context, reactorID string) ([]storage.MaintenanceWindow, error) {
	const op = "storage.mysql.GetMaintenanceWindows"

	query := "SELECT id, reactor_id, start_date, end_date, reason FROM maintenance_windows"
	var args []any
	if reactorID != "" {
		query += " WHERE reactor_id = ?"
		args = append(args, reactorID)
	}
	query += " ORDER BY start_date, reactor_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var windows []storage.MaintenanceWindow
	for rows.Next() {
		var w storage.MaintenanceWindow
		if err := rows.Scan(&w.ID, &w.ReactorID, &w.StartDate, &w.EndDate, &w.Reason); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return windows, nil
}

func (s *Storage) SaveMaintenanceWindow(ctx context.Context, w storage.MaintenanceWindow) (int64, error) {
	const op = "storage.mysql.SaveMaintenanceWindow"

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_windows (reactor_id, start_date, end_date, reason)
		VALUES (?, ?, ?, ?)
	`, w.ReactorID, w.StartDate.Format("2006-01-02"), w.EndDate.Format("2006-01-02"), w.Reason)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errNoReferencedRow {
			return 0, fmt.Errorf("%s: %s: %w", op, w.ReactorID, storage.ErrReactorNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

// SaveHoliday stores a plant-wide closed day; saving the same date renames it.
func (s *Storage) SaveHoliday(ctx context.Context, h storage.Holiday) error {
	const op = "storage.mysql.SaveHoliday"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (holiday_date, name)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name)
	`, h.Date.Format("2006-01-02"), h.Name)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
