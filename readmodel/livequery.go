// Package readmodel provides a live query over a todo store: the current
// row set is re-emitted whenever the store announces a change.
package readmodel

import (
	"context"
	"slices"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

var logger = log.GetLogger("ReadModel")

// Lister returns the current rows in display order.
type Lister interface {
	List(ctx context.Context) ([]models.Todo, error)
}

// Source delivers change notifications. *notifications.Service satisfies it.
type Source interface {
	Subscribe() (<-chan notifications.Event, func())
}

// LiveQuery re-runs List after every change notification.
type LiveQuery struct {
	lister Lister
	source Source
}

// New creates a live query over lister, driven by source.
func New(lister Lister, source Source) *LiveQuery {
	return &LiveQuery{lister: lister, source: source}
}

// Current runs the query once.
func (q *LiveQuery) Current(ctx context.Context) ([]models.Todo, error) {
	rows, err := q.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Todo{}
	}
	return rows, nil
}

// Subscribe emits the current rows immediately and again after every
// change that alters them. A slow reader only ever sees the latest rows.
// The channel is closed when ctx is done or the source shuts down.
func (q *LiveQuery) Subscribe(ctx context.Context) <-chan []models.Todo {
	// Subscribe before the first query so no commit falls between them.
	events, unsubscribe := q.source.Subscribe()
	out := make(chan []models.Todo, 1)
	go q.run(ctx, events, unsubscribe, out)
	return out
}

func (q *LiveQuery) run(ctx context.Context, events <-chan notifications.Event, unsubscribe func(), out chan<- []models.Todo) {
	defer close(out)
	defer unsubscribe()

	var (
		last    []models.Todo
		pending []models.Todo
		dirty   bool
		emitted bool
	)

	refresh := func() {
		rows, err := q.Current(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn().Err(err).Msg("live query refresh failed")
			}
			return
		}
		if emitted && slices.Equal(rows, last) {
			// Nothing visible changed; drop any stale pending value too.
			pending, dirty = nil, false
			return
		}
		pending, dirty = rows, true
	}

	refresh()

	for {
		var send chan<- []models.Todo
		if dirty {
			send = out
		}

		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != notifications.EventTodosChanged {
				continue
			}
			if !drain(events) {
				return
			}
			refresh()

		case send <- pending:
			last, emitted = pending, true
			pending, dirty = nil, false
		}
	}
}

// drain consumes already-queued events so a burst costs one query.
// It returns false if the channel was closed.
func drain(events <-chan notifications.Event) bool {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
