package compaction

import (
	"context"
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
)

var logger = log.GetLogger("Compaction")

const (
	// DefaultInterval is how often the change log is trimmed
	DefaultInterval = 10 * time.Minute

	// DefaultRetain is how many recent changes are kept for readers that
	// resume from an offset
	DefaultRetain = 1000
)

// Compactor trims a change log down to its most recent entries.
type Compactor interface {
	CompactChanges(ctx context.Context, retain int) (int64, error)
}

// Config holds compaction worker settings
type Config struct {
	Interval time.Duration
	Retain   int
}

// Worker periodically compacts the change log. Readers behind the
// compacted point are told to refetch by the shape endpoint.
type Worker struct {
	cfg       Config
	compactor Compactor

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// nudgeChan allows an immediate compaction
	nudgeChan chan struct{}
}

// NewWorker creates a compaction worker
func NewWorker(cfg Config, compactor Compactor) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Retain <= 0 {
		cfg.Retain = DefaultRetain
	}
	return &Worker{
		cfg:       cfg,
		compactor: compactor,
		stopChan:  make(chan struct{}),
		nudgeChan: make(chan struct{}, 1),
	}
}

// Start begins the compaction loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
	logger.Info().Dur("interval", w.cfg.Interval).Int("retain", w.cfg.Retain).Msg("compaction worker started")
}

// Stop signals the worker to exit and waits for it to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
		logger.Info().Msg("compaction worker stopped")
	})
}

// Nudge asks the worker to compact as soon as possible. Non-blocking.
func (w *Worker) Nudge() {
	select {
	case w.nudgeChan <- struct{}{}:
	default:
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.compact()
		case <-w.nudgeChan:
			w.compact()
		case <-w.stopChan:
			return
		}
	}
}

func (w *Worker) compact() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := w.compactor.CompactChanges(ctx, w.cfg.Retain)
	if err != nil {
		logger.Error().Err(err).Msg("change log compaction failed")
	} else if removed > 0 {
		logger.Debug().Int64("removed", removed).Msg("compaction pass done")
	}
}
