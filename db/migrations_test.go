package db

import (
	"path/filepath"
	"testing"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	d := openTestDB(t)

	version, err := d.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	for _, table := range []string{"todos", "todo_changes", "shape_meta"} {
		var n int
		err := d.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&n)
		if err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.sqlite")

	first, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	handle, err := first.ShapeHandle(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer second.Close()

	again, err := second.ShapeHandle(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if again != handle {
		t.Errorf("handle changed across reopen: %q -> %q", handle, again)
	}
}

func TestClose_Twice(t *testing.T) {
	d, err := Open(Config{Path: filepath.Join(t.TempDir(), "todos.sqlite")})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}
