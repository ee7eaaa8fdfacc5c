// Package memstore keeps todos only in process memory.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

// Store is an in-memory todo store. The zero value is not usable; call New.
type Store struct {
	mu     sync.RWMutex
	todos  map[int64]models.Todo
	nextID int64
	notify *notifications.Service
}

// New creates an empty store. notify may be nil.
func New(notify *notifications.Service) *Store {
	return &Store{
		todos:  make(map[int64]models.Todo),
		nextID: 1,
		notify: notify,
	}
}

func (s *Store) List(ctx context.Context) ([]models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Todo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.todos[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) Insert(ctx context.Context, title string) (models.Todo, error) {
	s.mu.Lock()
	t := models.Todo{ID: s.nextID, Title: title}
	s.todos[t.ID] = t
	s.nextID++
	s.mu.Unlock()

	s.announce(models.OpInsert, t.ID)
	return t, nil
}

func (s *Store) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	s.mu.Lock()
	t, ok := s.todos[id]
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	t.Completed = completed
	s.todos[id] = t
	s.mu.Unlock()

	s.announce(models.OpUpdate, id)
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	_, ok := s.todos[id]
	delete(s.todos, id)
	s.mu.Unlock()

	if ok {
		s.announce(models.OpDelete, id)
	}
	return nil
}

func (s *Store) announce(op string, id int64) {
	if s.notify != nil {
		s.notify.NotifyTodosChanged(notifications.TodoChange{Operation: op, ID: id})
	}
}
