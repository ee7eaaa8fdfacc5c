package db

import (
	"context"
	"database/sql"
	"errors"
)

// QueryParam represents a parameter for database queries
type QueryParam interface{}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var shouldLogQueries bool

func logQuery(kind string, sql string, params []QueryParam) {
	if !shouldLogQueries {
		return
	}
	logger.Debug().
		Str("kind", kind).
		Str("sql", sql).
		Interface("params", params).
		Msg("db query")
}

func toArgs(params []QueryParam) []interface{} {
	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
	}
	return args
}

// Select runs a SELECT query returning multiple rows
// The scanner function is called for each row to map results
func Select[T any](ctx context.Context, q Querier, query string, params []QueryParam, scanner func(*sql.Rows) (T, error)) ([]T, error) {
	logQuery("select", query, params)

	rows, err := q.QueryContext(ctx, query, toArgs(params)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		item, err := scanner(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// SelectOne runs a SELECT query returning a single row (or nil if not found)
func SelectOne[T any](ctx context.Context, q Querier, query string, params []QueryParam, scanner func(*sql.Row) (T, error)) (*T, error) {
	logQuery("get", query, params)

	row := q.QueryRowContext(ctx, query, toArgs(params)...)
	result, err := scanner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// RunResult represents the result of a Run operation
type RunResult struct {
	LastInsertID int64
	RowsAffected int64
}

// Run executes an INSERT/UPDATE/DELETE query and returns a simplified result
func Run(ctx context.Context, q Querier, query string, params ...QueryParam) (*RunResult, error) {
	logQuery("run", query, params)

	result, err := q.ExecContext(ctx, query, toArgs(params)...)
	if err != nil {
		return nil, err
	}

	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()

	return &RunResult{
		LastInsertID: lastID,
		RowsAffected: affected,
	}, nil
}
