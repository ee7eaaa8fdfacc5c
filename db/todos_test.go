package db

import (
	"testing"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

func TestTodoStore_InsertCreatesOneIncompleteRow(t *testing.T) {
	s, _, _ := openTestStore(t)
	ctx := t.Context()

	todo, err := s.Insert(ctx, "buy milk")
	if err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}

	want := models.Todo{ID: 1, Title: "buy milk", Completed: false}
	if todo != want {
		t.Errorf("Insert() = %+v, want %+v", todo, want)
	}

	todos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(todos) != 1 || todos[0] != want {
		t.Errorf("List() = %+v, want [%+v]", todos, want)
	}
}

func TestTodoStore_ListEmptyIsNotNil(t *testing.T) {
	s, _, _ := openTestStore(t)

	todos, err := s.List(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if todos == nil || len(todos) != 0 {
		t.Errorf("List() = %#v, want empty non-nil slice", todos)
	}
}

func TestTodoStore_ListNewestFirst(t *testing.T) {
	s, _, _ := openTestStore(t)
	ctx := t.Context()

	for _, title := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx, title); err != nil {
			t.Fatal(err)
		}
	}

	todos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, td := range todos {
		titles = append(titles, td.Title)
	}
	if len(titles) != 3 || titles[0] != "c" || titles[2] != "a" {
		t.Errorf("List() order = %v, want [c b a]", titles)
	}
}

func TestTodoStore_ToggleTwiceRestores(t *testing.T) {
	s, _, _ := openTestStore(t)
	ctx := t.Context()

	todo, err := s.Insert(ctx, "walk dog")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.SetCompleted(ctx, todo.ID, !todo.Completed)
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil || !updated.Completed {
		t.Fatalf("first toggle = %+v, want completed", updated)
	}

	updated, err = s.SetCompleted(ctx, todo.ID, !updated.Completed)
	if err != nil {
		t.Fatal(err)
	}
	if updated == nil || *updated != todo {
		t.Errorf("second toggle = %+v, want %+v", updated, todo)
	}
}

func TestTodoStore_UpdateMissingIsNoop(t *testing.T) {
	s, d, _ := openTestStore(t)
	ctx := t.Context()

	before, err := d.LatestSeq(ctx)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := s.SetCompleted(ctx, 42, true)
	if err != nil {
		t.Fatalf("SetCompleted() failed: %v", err)
	}
	if updated != nil {
		t.Errorf("SetCompleted(missing) = %+v, want nil", updated)
	}

	after, err := d.LatestSeq(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if after != before {
		t.Errorf("no-op update wrote a change: seq %d -> %d", before, after)
	}
}

func TestTodoStore_DeleteIsIdempotent(t *testing.T) {
	s, d, _ := openTestStore(t)
	ctx := t.Context()

	todo, err := s.Insert(ctx, "buy milk")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, todo.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, todo.ID); err != nil {
		t.Fatalf("second Delete() failed: %v", err)
	}

	got, err := s.Get(ctx, todo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Get() after delete = %+v, want nil", got)
	}

	changes, err := d.ChangesSince(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected insert + one delete in log, got %d entries", len(changes))
	}
	if changes[1].Operation != models.OpDelete || changes[1].Todo != nil {
		t.Errorf("delete change = %+v", changes[1])
	}
}

func TestTodoStore_AnnouncesCommits(t *testing.T) {
	s, _, n := openTestStore(t)
	events, unsub := n.Subscribe()
	defer unsub()

	todo, err := s.Insert(t.Context(), "buy milk")
	if err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		change, ok := ev.Data.(notifications.TodoChange)
		if !ok {
			t.Fatalf("unexpected data %#v", ev.Data)
		}
		if change.Operation != models.OpInsert || change.ID != todo.ID || change.Offset != 1 {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after insert")
	}
}

func TestTodoStore_RejectsEmptyTitleAtSchema(t *testing.T) {
	s, _, _ := openTestStore(t)
	if _, err := s.Insert(t.Context(), ""); err == nil {
		t.Error("expected CHECK constraint failure for empty title")
	}
}
