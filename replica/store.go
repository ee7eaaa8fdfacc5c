package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

// shapeName keys the sync_state row of the todos table.
const shapeName = "todos"

// Operations announced for changes that arrive through the feed.
const (
	opSync  = "sync"
	opReset = "reset"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sync_state (
	shape TEXT PRIMARY KEY,
	handle TEXT NOT NULL,
	seq INTEGER NOT NULL
);
`

// Store is the embedded copy of the todos table. It implements feed.Sink.
type Store struct {
	db     *sql.DB
	notify *notifications.Service
}

// OpenStore opens or creates the embedded database at path and ensures
// its schema. notify may be nil.
func OpenStore(path string, notify *notifications.Service) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("replica path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create replica dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open replica: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply replica schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("replica store opened")
	return &Store{db: conn, notify: notify}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) ([]models.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, completed FROM todos ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		var t models.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Todo, error) {
	var t models.Todo
	err := s.db.QueryRowContext(ctx, `SELECT id, title, completed FROM todos WHERE id = ?`, id).
		Scan(&t.ID, &t.Title, &t.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) Position(ctx context.Context) (string, int64, error) {
	return position(ctx, s.db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func position(ctx context.Context, q queryRower) (string, int64, error) {
	var handle string
	var seq int64
	err := q.QueryRowContext(ctx, `SELECT handle, seq FROM sync_state WHERE shape = ?`, shapeName).
		Scan(&handle, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", feed.SnapshotOffset, nil
	}
	if err != nil {
		return "", 0, err
	}
	return handle, seq, nil
}

// Apply writes the row operations of b and its position in one
// transaction. A batch arriving with no recorded position is a snapshot,
// so any leftover rows are cleared first.
func (s *Store) Apply(ctx context.Context, b feed.Batch) error {
	changes := b.Changes()

	err := s.transaction(ctx, func(tx *sql.Tx) error {
		_, offset, err := position(ctx, tx)
		if err != nil {
			return err
		}
		if offset == feed.SnapshotOffset {
			if _, err := tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
				return err
			}
		}

		for _, m := range changes {
			if err := applyMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("apply %s of todo %d: %w", m.Headers.Operation, m.Key, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sync_state (shape, handle, seq) VALUES (?, ?, ?)
			ON CONFLICT(shape) DO UPDATE SET handle = excluded.handle, seq = excluded.seq
		`, shapeName, b.Handle, b.Offset)
		return err
	})
	if err != nil {
		return err
	}

	if len(changes) > 0 {
		s.announce(opSync, b.Offset)
	}
	return nil
}

func applyMessage(ctx context.Context, tx *sql.Tx, m feed.Message) error {
	switch m.Headers.Operation {
	case models.OpInsert, models.OpUpdate:
		if m.Value == nil {
			return fmt.Errorf("missing row value")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO todos (id, title, completed) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, completed = excluded.completed
		`, m.Key, m.Value.Title, m.Value.Completed)
		return err
	case models.OpDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, m.Key)
		return err
	default:
		return fmt.Errorf("unknown operation %q", m.Headers.Operation)
	}
}

// Reset clears the table and forgets the position.
func (s *Store) Reset(ctx context.Context) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM todos`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sync_state WHERE shape = ?`, shapeName)
		return err
	})
	if err != nil {
		return err
	}
	s.announce(opReset, 0)
	return nil
}

func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) announce(op string, offset int64) {
	if s.notify != nil {
		s.notify.NotifyTodosChanged(notifications.TodoChange{Operation: op, Offset: offset})
	}
}
