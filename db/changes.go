package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

// recordChange appends a change-log entry inside tx and returns its seq.
func recordChange(ctx context.Context, tx *sql.Tx, op string, todoID int64, todo *models.Todo) (int64, error) {
	var title sql.NullString
	var completed sql.NullInt64
	if todo != nil {
		title = sql.NullString{String: todo.Title, Valid: true}
		completed = sql.NullInt64{Int64: int64(boolToInt(todo.Completed)), Valid: true}
	}

	res, err := Run(ctx, tx, `
		INSERT INTO todo_changes (operation, todo_id, title, completed, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, op, todoID, title, completed, NowMs())
	if err != nil {
		return 0, fmt.Errorf("record %s change: %w", op, err)
	}
	return res.LastInsertID, nil
}

// ChangesSince returns change-log entries with seq greater than after,
// oldest first. limit <= 0 means no limit.
func (d *DB) ChangesSince(ctx context.Context, after int64, limit int) ([]models.Change, error) {
	query := `
		SELECT seq, operation, todo_id, title, completed, created_at
		FROM todo_changes
		WHERE seq > ?
		ORDER BY seq ASC
	`
	params := []QueryParam{after}
	if limit > 0 {
		query += ` LIMIT ?`
		params = append(params, limit)
	}

	changes, err := Select(ctx, d.conn, query, params,
		func(rows *sql.Rows) (models.Change, error) { return scanChange(rows) })
	if err != nil {
		return nil, fmt.Errorf("list changes since %d: %w", after, err)
	}
	return changes, nil
}

// LatestSeq returns the seq of the newest change, or the compaction point
// when the log is empty.
func (d *DB) LatestSeq(ctx context.Context) (int64, error) {
	return latestSeq(ctx, d.conn)
}

func latestSeq(ctx context.Context, q Querier) (int64, error) {
	var seq sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(seq) FROM todo_changes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	if seq.Valid {
		return seq.Int64, nil
	}
	return compactedThrough(ctx, q)
}

// Snapshot returns every current row together with the seq it is
// consistent with, read in a single transaction.
func (d *DB) Snapshot(ctx context.Context) ([]models.Todo, int64, error) {
	var todos []models.Todo
	var seq int64

	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		var err error
		todos, err = Select(ctx, tx, selectTodoColumns+` ORDER BY id ASC`, nil,
			func(rows *sql.Rows) (models.Todo, error) { return scanTodo(rows) })
		if err != nil {
			return err
		}
		seq, err = latestSeq(ctx, tx)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("snapshot: %w", err)
	}
	return todos, seq, nil
}

// ShapeHandle identifies the current generation of the change log. It
// changes whenever a client can no longer resume from an old offset.
func (d *DB) ShapeHandle(ctx context.Context) (string, error) {
	var handle string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM shape_meta WHERE key = 'handle'`).Scan(&handle)
	if err != nil {
		return "", fmt.Errorf("shape handle: %w", err)
	}
	return handle, nil
}

// CompactedThrough returns the highest seq that has been removed from the log.
func (d *DB) CompactedThrough(ctx context.Context) (int64, error) {
	return compactedThrough(ctx, d.conn)
}

func compactedThrough(ctx context.Context, q Querier) (int64, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM shape_meta WHERE key = 'compacted_through'`).Scan(&raw)
	if err != nil {
		return 0, fmt.Errorf("compacted_through: %w", err)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// CompactChanges drops all but the newest retain log entries. Clients
// positioned before the new compaction point must refetch.
func (d *DB) CompactChanges(ctx context.Context, retain int) (int64, error) {
	var removed int64

	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		latest, err := latestSeq(ctx, tx)
		if err != nil {
			return err
		}
		cutoff := latest - int64(retain)

		current, err := compactedThrough(ctx, tx)
		if err != nil {
			return err
		}
		if cutoff <= current {
			return nil
		}

		res, err := Run(ctx, tx, `DELETE FROM todo_changes WHERE seq <= ?`, cutoff)
		if err != nil {
			return err
		}
		removed = res.RowsAffected

		_, err = Run(ctx, tx, `UPDATE shape_meta SET value = ? WHERE key = 'compacted_through'`,
			strconv.FormatInt(cutoff, 10))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("compact changes: %w", err)
	}

	if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("compacted change log")
	}
	return removed, nil
}

// RotateShapeHandle issues a new handle, forcing every subscriber to refetch.
func (d *DB) RotateShapeHandle(ctx context.Context) (string, error) {
	handle := uuid.NewString()
	if _, err := Run(ctx, d.conn, `UPDATE shape_meta SET value = ? WHERE key = 'handle'`, handle); err != nil {
		return "", fmt.Errorf("rotate shape handle: %w", err)
	}
	return handle, nil
}
