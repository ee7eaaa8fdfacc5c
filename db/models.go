package db

import (
	"database/sql"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

// scanTodo scans a row into a Todo
func scanTodo(row interface{ Scan(...any) error }) (models.Todo, error) {
	var t models.Todo
	var completed int
	err := row.Scan(&t.ID, &t.Title, &completed)
	t.Completed = completed == 1
	return t, err
}

// scanChange scans a todo_changes row into a Change
func scanChange(row interface{ Scan(...any) error }) (models.Change, error) {
	var c models.Change
	var title sql.NullString
	var completed sql.NullInt64
	err := row.Scan(&c.Seq, &c.Operation, &c.TodoID, &title, &completed, &c.CreatedAt)
	if err != nil {
		return c, err
	}
	if c.Operation != models.OpDelete && title.Valid {
		c.Todo = &models.Todo{
			ID:        c.TodoID,
			Title:     title.String,
			Completed: completed.Int64 == 1,
		}
	}
	return c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NowMs returns the current time as Unix milliseconds (int64)
func NowMs() int64 {
	return time.Now().UnixMilli()
}
