package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"reactor-planner/internal/storage"
)

const errDuplicateEntry = 1062

const blockColumns = `id, order_num, article_code, article_desc, batch_label,
	units, units_ordered, units_served, status, planned_date, planned_reactor, planned_shift,
	deadline, client_name, real_kg, real_duration, operator_notes, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (storage.ProductionBlock, error) {
	var (
		b        storage.ProductionBlock
		status   string
		planned  sql.NullTime
		reactor  sql.NullString
		shift    sql.NullString
		deadline sql.NullTime
		realKg   sql.NullFloat64
		duration sql.NullInt64
		notes    sql.NullString
	)

	err := row.Scan(
		&b.ID,
		&b.OrderNumber,
		&b.ArticleCode,
		&b.ArticleDesc,
		&b.BatchLabel,
		&b.Units,
		&b.UnitsOrdered,
		&b.UnitsServed,
		&status,
		&planned,
		&reactor,
		&shift,
		&deadline,
		&b.ClientName,
		&realKg,
		&duration,
		&notes,
		&b.Version,
		&b.UpdatedAt,
	)
	if err != nil {
		return storage.ProductionBlock{}, err
	}

	b.Status = storage.BlockStatus(status)
	if planned.Valid {
		b.PlannedDate = &planned.Time
	}
	if reactor.Valid {
		b.PlannedReactor = &reactor.String
	}
	if shift.Valid {
		s := storage.Shift(shift.String)
		b.PlannedShift = &s
	}
	if deadline.Valid {
		b.Deadline = &deadline.Time
	}
	if realKg.Valid {
		b.RealKg = &realKg.Float64
	}
	if duration.Valid {
		d := int(duration.Int64)
		b.RealDuration = &d
	}
	b.OperatorNotes = notes.String

	return b, nil
}

// blockArgs returns the mutable columns in the order used by insert and update.
func blockArgs(b storage.ProductionBlock) []any {
	var shift *string
	if b.PlannedShift != nil {
		s := string(*b.PlannedShift)
		shift = &s
	}
	return []any{
		b.OrderNumber,
		b.ArticleCode,
		b.ArticleDesc,
		b.BatchLabel,
		b.Units,
		b.UnitsOrdered,
		b.UnitsServed,
		string(b.Status),
		b.PlannedDate,
		b.PlannedReactor,
		shift,
		b.Deadline,
		b.ClientName,
		b.RealKg,
		b.RealDuration,
		b.OperatorNotes,
	}
}

func (s *Storage) GetBlocks(ctx context.Context) ([]storage.ProductionBlock, error) {
	const op = "storage.mysql.GetBlocks"

	return s.listBlocks(ctx, op, storage.BlockFilter{})
}

// ListBlocks narrows the query with the filter fields that map onto indexed
// columns. Planned date bounds are inclusive whole days.
func (s *Storage) ListBlocks(ctx context.Context, f storage.BlockFilter) ([]storage.ProductionBlock, error) {
	const op = "storage.mysql.ListBlocks"

	return s.listBlocks(ctx, op, f)
}

func (s *Storage) listBlocks(ctx context.Context, op string, f storage.BlockFilter) ([]storage.ProductionBlock, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Reactor != "" {
		where = append(where, "planned_reactor = ?")
		args = append(args, f.Reactor)
	}
	if f.OrderNumber != "" {
		where = append(where, "order_num = ?")
		args = append(args, f.OrderNumber)
	}
	if f.ArticleCode != "" {
		where = append(where, "article_code = ?")
		args = append(args, f.ArticleCode)
	}
	if f.ClientName != "" {
		where = append(where, "client_name = ?")
		args = append(args, f.ClientName)
	}
	if f.From != nil {
		where = append(where, "DATE(planned_date) >= ?")
		args = append(args, f.From.Format(time.DateOnly))
	}
	if f.To != nil {
		where = append(where, "DATE(planned_date) <= ?")
		args = append(args, f.To.Format(time.DateOnly))
	}
	if len(f.IDs) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(f.IDs)-1)+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}

	query := "SELECT " + blockColumns + " FROM production_blocks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY order_num, article_code, batch_label, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var blocks []storage.ProductionBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return blocks, nil
}

func (s *Storage) GetBlock(ctx context.Context, id string) (storage.ProductionBlock, error) {
	const op = "storage.mysql.GetBlock"

	row := s.db.QueryRowContext(ctx, "SELECT "+blockColumns+" FROM production_blocks WHERE id = ?", id)
	b, err := scanBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProductionBlock{}, fmt.Errorf("%s: %s: %w", op, id, storage.ErrBlockNotFound)
		}
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func (s *Storage) InsertBlocks(ctx context.Context, blocks []storage.ProductionBlock) error {
	const op = "storage.mysql.InsertBlocks"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	if err := insertBlocks(ctx, tx, blocks); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func insertBlocks(ctx context.Context, tx *sql.Tx, blocks []storage.ProductionBlock) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO production_blocks (id, order_num, article_code, article_desc, batch_label,
			units, units_ordered, units_served, status, planned_date, planned_reactor, planned_shift,
			deadline, client_name, real_kg, real_duration, operator_notes, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range blocks {
		args := append([]any{b.ID}, blockArgs(b)...)
		args = append(args, b.Version)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			var mysqlErr *mysql.MySQLError
			if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
				return fmt.Errorf("%s: %w", b.ID, storage.ErrBlockExists)
			}
			return fmt.Errorf("insert %s: %w", b.ID, err)
		}
	}
	return nil
}

// SaveBlock writes b if the stored row still has expectedVersion and returns
// the block with its new version.
func (s *Storage) SaveBlock(ctx context.Context, b storage.ProductionBlock, expectedVersion int64) (storage.ProductionBlock, error) {
	const op = "storage.mysql.SaveBlock"

	args := append(blockArgs(b), b.ID, expectedVersion)
	res, err := s.db.ExecContext(ctx, `
		UPDATE production_blocks
		SET order_num = ?, article_code = ?, article_desc = ?, batch_label = ?,
			units = ?, units_ordered = ?, units_served = ?, status = ?,
			planned_date = ?, planned_reactor = ?, planned_shift = ?,
			deadline = ?, client_name = ?, real_kg = ?, real_duration = ?, operator_notes = ?,
			version = version + 1
		WHERE id = ? AND version = ?
	`, args...)
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storage.ProductionBlock{}, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return storage.ProductionBlock{}, fmt.Errorf("%s: %s: %w", op, b.ID, missingOrStale(ctx, s.db, b.ID))
	}

	b.Version = expectedVersion + 1
	b.UpdatedAt = time.Now()
	return b, nil
}

// ReplaceBlock deletes originalID and inserts siblings in one transaction.
func (s *Storage) ReplaceBlock(ctx context.Context, originalID string, expectedVersion int64, siblings []storage.ProductionBlock) error {
	const op = "storage.mysql.ReplaceBlock"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM production_blocks WHERE id = ? AND version = ?", originalID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%s: delete original: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, originalID, missingOrStale(ctx, tx, originalID))
	}

	if err := insertBlocks(ctx, tx, siblings); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// missingOrStale explains why a versioned write touched no row.
func missingOrStale(ctx context.Context, q queryer, id string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM production_blocks WHERE id = ?", id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrBlockNotFound
	case err != nil:
		return err
	}
	return storage.ErrVersionConflict
}
