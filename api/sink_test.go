package api

import (
	"context"
	"sync"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

// sliceSink is a minimal feed.Sink for handler tests.
type sliceSink struct {
	mu     sync.Mutex
	rows   map[int64]models.Todo
	handle string
	offset int64
}

func (s *sliceSink) Position(ctx context.Context) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.offset, nil
}

func (s *sliceSink) Apply(ctx context.Context, b feed.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == nil {
		s.rows = make(map[int64]models.Todo)
	}
	for _, m := range b.Changes() {
		if m.Headers.Operation == models.OpDelete {
			delete(s.rows, m.Key)
			continue
		}
		s.rows[m.Key] = *m.Value
	}
	s.handle, s.offset = b.Handle, b.Offset
	return nil
}

func (s *sliceSink) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.handle, s.offset = "", feed.SnapshotOffset
	return nil
}

func (s *sliceSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
