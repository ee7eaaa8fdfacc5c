package kvstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay coalesces the burst of events a single save produces.
const DebounceDelay = 100 * time.Millisecond

// OpExternal is announced when another process changed the file.
const OpExternal = "external"

type watcher struct {
	fs       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once

	timerMu sync.Mutex
	timer   *time.Timer
}

// Watch starts watching the store file for changes made by other
// processes. Stop it with Close.
func (s *Store) Watch() error {
	if s.watcher != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Saves replace the file, so the directory is what stays watchable.
	if err := fw.Add(filepath.Dir(s.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch kv dir: %w", err)
	}

	w := &watcher{fs: fw, done: make(chan struct{})}
	s.watcher = w
	go s.eventLoop(w)

	logger.Info().Str("path", s.path).Msg("watching kv file")
	return nil
}

// Close stops the watcher, if any. Safe to call more than once.
func (s *Store) Close() error {
	w := s.watcher
	if w == nil {
		return nil
	}

	var err error
	w.stopOnce.Do(func() {
		err = w.fs.Close()
		<-w.done

		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
	})
	return err
}

func (s *Store) eventLoop(w *watcher) {
	defer close(w.done)

	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(DebounceDelay, s.checkExternal)
			w.timerMu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("kv watcher error")
		}
	}
}

// checkExternal announces the file content if it differs from what this
// process last wrote.
func (s *Store) checkExternal() {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	if err != nil || bytes.Equal(data, s.lastSaved) {
		s.mu.Unlock()
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.mu.Unlock()
		logger.Warn().Err(err).Msg("ignoring unreadable kv file change")
		return
	}
	s.lastSaved = data
	s.mu.Unlock()

	logger.Info().Int("todos", len(doc.Todos)).Msg("kv file changed externally")
	s.announce(OpExternal, 0)
}
