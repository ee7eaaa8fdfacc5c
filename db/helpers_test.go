package db

import (
	"path/filepath"
	"testing"

	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

// openTestDB opens a fresh database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(Config{Path: filepath.Join(t.TempDir(), "nested", "todos.sqlite")})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func openTestStore(t *testing.T) (*TodoStore, *DB, *notifications.Service) {
	t.Helper()
	d := openTestDB(t)
	n := notifications.NewService()
	t.Cleanup(n.Shutdown)
	return NewTodoStore(d, n), d, n
}
