package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

const selectTodoColumns = `SELECT id, title, completed FROM todos`

// TodoStore writes todos and their change-log entries in one transaction
// and announces each commit on the notification service.
type TodoStore struct {
	db     *DB
	notify *notifications.Service
}

// NewTodoStore creates a store over db. notify may be nil.
func NewTodoStore(db *DB, notify *notifications.Service) *TodoStore {
	return &TodoStore{db: db, notify: notify}
}

// List returns all todos, newest first.
func (s *TodoStore) List(ctx context.Context) ([]models.Todo, error) {
	todos, err := Select(ctx, s.db.conn, selectTodoColumns+` ORDER BY id DESC`, nil,
		func(rows *sql.Rows) (models.Todo, error) { return scanTodo(rows) })
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	return todos, nil
}

// Get returns the todo with the given id, or nil if absent.
func (s *TodoStore) Get(ctx context.Context, id int64) (*models.Todo, error) {
	return getTodo(ctx, s.db.conn, id)
}

func getTodo(ctx context.Context, q Querier, id int64) (*models.Todo, error) {
	todo, err := SelectOne(ctx, q, selectTodoColumns+` WHERE id = ?`, []QueryParam{id},
		func(row *sql.Row) (models.Todo, error) { return scanTodo(row) })
	if err != nil {
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}
	return todo, nil
}

// Insert creates a todo with completed=false. The title must already be
// normalized.
func (s *TodoStore) Insert(ctx context.Context, title string) (models.Todo, error) {
	var todo models.Todo
	var seq int64

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := Run(ctx, tx, `INSERT INTO todos (title, completed) VALUES (?, 0)`, title)
		if err != nil {
			return err
		}
		todo = models.Todo{ID: res.LastInsertID, Title: title}

		seq, err = recordChange(ctx, tx, models.OpInsert, todo.ID, &todo)
		return err
	})
	if err != nil {
		return models.Todo{}, fmt.Errorf("insert todo: %w", err)
	}

	s.announce(models.OpInsert, todo.ID, seq)
	return todo, nil
}

// SetCompleted sets the completed flag. It returns nil without writing
// anything when the todo does not exist.
func (s *TodoStore) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	var todo *models.Todo
	var seq int64

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := Run(ctx, tx, `UPDATE todos SET completed = ? WHERE id = ?`, boolToInt(completed), id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return nil
		}

		todo, err = getTodo(ctx, tx, id)
		if err != nil || todo == nil {
			return err
		}

		seq, err = recordChange(ctx, tx, models.OpUpdate, id, todo)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}

	if todo != nil {
		s.announce(models.OpUpdate, id, seq)
	}
	return todo, nil
}

// Delete removes a todo. Deleting an absent id is a no-op.
func (s *TodoStore) Delete(ctx context.Context, id int64) error {
	var seq int64
	var deleted bool

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := Run(ctx, tx, `DELETE FROM todos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true

		seq, err = recordChange(ctx, tx, models.OpDelete, id, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}

	if deleted {
		s.announce(models.OpDelete, id, seq)
	}
	return nil
}

func (s *TodoStore) announce(op string, id, seq int64) {
	if s.notify == nil {
		return
	}
	s.notify.NotifyTodosChanged(notifications.TodoChange{
		Operation: op,
		ID:        id,
		Offset:    seq,
	})
}
