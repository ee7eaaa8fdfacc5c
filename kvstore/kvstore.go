// Package kvstore keeps todos in a single JSON file. The file is
// human-readable and may be edited by other processes; Watch picks such
// edits up and announces them.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

var logger = log.GetLogger("KVStore")

// document is the on-disk layout.
type document struct {
	NextID int64         `json:"next_id"`
	Todos  []models.Todo `json:"todos"`
}

// Store is a JSON-file todo store.
type Store struct {
	path   string
	mu     sync.Mutex
	notify *notifications.Service

	// lastSaved is the file content as this process last wrote or saw it.
	lastSaved []byte

	watcher *watcher
}

// Open returns a store over the file at path, creating an empty one if
// it does not exist. notify may be nil.
func Open(path string, notify *notifications.Service) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("kv path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}

	s := &Store{path: path, notify: notify}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(document{NextID: 1}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat kv file: %w", err)
	}

	if _, err := s.load(); err != nil {
		return nil, err
	}
	s.lastSaved, _ = os.ReadFile(path)

	logger.Info().Str("path", path).Msg("kv store opened")
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return document{}, fmt.Errorf("read kv file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("decode kv file: %w", err)
	}

	// Repair a hand-edited counter so ids are never reused.
	for _, t := range doc.Todos {
		if t.ID >= doc.NextID {
			doc.NextID = t.ID + 1
		}
	}
	if doc.NextID < 1 {
		doc.NextID = 1
	}
	return doc, nil
}

// save writes doc to a temp file and renames it over the store file.
func (s *Store) save(doc document) error {
	if doc.Todos == nil {
		doc.Todos = []models.Todo{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kv file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace kv file: %w", err)
	}
	s.lastSaved = data
	return nil
}

func (s *Store) List(ctx context.Context) ([]models.Todo, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	todos := doc.Todos
	if todos == nil {
		todos = []models.Todo{}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID > todos[j].ID })
	return todos, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if i := indexOf(doc.Todos, id); i >= 0 {
		t := doc.Todos[i]
		return &t, nil
	}
	return nil, nil
}

func (s *Store) Insert(ctx context.Context, title string) (models.Todo, error) {
	s.mu.Lock()
	doc, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return models.Todo{}, err
	}

	todo := models.Todo{ID: doc.NextID, Title: title}
	doc.Todos = append(doc.Todos, todo)
	doc.NextID++
	err = s.save(doc)
	s.mu.Unlock()
	if err != nil {
		return models.Todo{}, err
	}

	s.announce(models.OpInsert, todo.ID)
	return todo, nil
}

func (s *Store) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	s.mu.Lock()
	doc, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	i := indexOf(doc.Todos, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, nil
	}
	doc.Todos[i].Completed = completed
	todo := doc.Todos[i]
	err = s.save(doc)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.announce(models.OpUpdate, id)
	return &todo, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	doc, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	i := indexOf(doc.Todos, id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	doc.Todos = append(doc.Todos[:i], doc.Todos[i+1:]...)
	err = s.save(doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.announce(models.OpDelete, id)
	return nil
}

func indexOf(todos []models.Todo, id int64) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) announce(op string, id int64) {
	if s.notify != nil {
		s.notify.NotifyTodosChanged(notifications.TodoChange{Operation: op, ID: id})
	}
}
