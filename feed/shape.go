package feed

import (
	"context"
	"errors"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
)

var logger = log.GetLogger("Feed")

// ErrShutdown is returned by live reads interrupted by the notifier
// shutting down. The accompanying batch is still valid.
var ErrShutdown = errors.New("shape notifier shut down")

// DefaultPageSize bounds the number of changes in one batch.
const DefaultPageSize = 500

// ChangeLog is the server-side log the shape is served from. *db.DB
// satisfies it.
type ChangeLog interface {
	Snapshot(ctx context.Context) ([]models.Todo, int64, error)
	ChangesSince(ctx context.Context, after int64, limit int) ([]models.Change, error)
	ShapeHandle(ctx context.Context) (string, error)
	CompactedThrough(ctx context.Context) (int64, error)
}

// Notifier wakes live readers when a change commits.
type Notifier interface {
	Subscribe() (<-chan notifications.Event, func())
}

// Shape serves reads of the todos table's change log.
type Shape struct {
	log      ChangeLog
	notify   Notifier
	timeout  time.Duration
	pageSize int
}

// NewShape creates a shape over log. Live reads wait at most timeout.
func NewShape(log ChangeLog, notify Notifier, timeout time.Duration) *Shape {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Shape{
		log:      log,
		notify:   notify,
		timeout:  timeout,
		pageSize: DefaultPageSize,
	}
}

// Read answers one shape request. A snapshot read returns every current
// row; an offset read returns the changes after it. Both end with an
// up-to-date control message once the reader has reached the head of the
// log. A stale handle or compacted offset yields a single must-refetch.
func (s *Shape) Read(ctx context.Context, req Request) (Batch, error) {
	handle, err := s.log.ShapeHandle(ctx)
	if err != nil {
		return Batch{}, err
	}

	if req.Offset == SnapshotOffset {
		todos, seq, err := s.log.Snapshot(ctx)
		if err != nil {
			return Batch{}, err
		}
		msgs := append(snapshotMessages(todos, seq), control(ControlUpToDate))
		return Batch{Handle: handle, Offset: seq, Messages: msgs}, nil
	}

	if req.Handle != handle {
		logger.Debug().Str("got", req.Handle).Str("current", handle).Msg("stale shape handle")
		return mustRefetch(handle), nil
	}

	compacted, err := s.log.CompactedThrough(ctx)
	if err != nil {
		return Batch{}, err
	}
	if req.Offset < compacted {
		logger.Debug().Int64("offset", req.Offset).Int64("compacted", compacted).Msg("offset compacted away")
		return mustRefetch(handle), nil
	}

	// Subscribe before reading so a commit between the read and the wait
	// is not missed.
	var events <-chan notifications.Event
	if req.Live && s.notify != nil {
		var unsubscribe func()
		events, unsubscribe = s.notify.Subscribe()
		defer unsubscribe()
	}

	batch, err := s.readChanges(ctx, handle, req.Offset)
	if err != nil || !req.Live || len(batch.Changes()) > 0 || events == nil {
		return batch, err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return batch, nil
		case <-timer.C:
			return batch, nil
		case ev, ok := <-events:
			if !ok {
				return batch, ErrShutdown
			}
			if ev.Type == notifications.EventFeedReset {
				current, err := s.log.ShapeHandle(ctx)
				if err != nil {
					return Batch{}, err
				}
				if current != handle {
					return mustRefetch(current), nil
				}
				continue
			}
			if ev.Type != notifications.EventTodosChanged {
				continue
			}
			batch, err = s.readChanges(ctx, handle, req.Offset)
			if err != nil || len(batch.Changes()) > 0 {
				return batch, err
			}
		}
	}
}

// readChanges returns one page of changes after offset. The page ends with
// up-to-date when it reaches the head of the log.
func (s *Shape) readChanges(ctx context.Context, handle string, offset int64) (Batch, error) {
	changes, err := s.log.ChangesSince(ctx, offset, s.pageSize)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{Handle: handle, Offset: offset, Messages: changeMessages(changes)}
	if len(changes) > 0 {
		batch.Offset = changes[len(changes)-1].Seq
	}
	if len(changes) < s.pageSize {
		batch.Messages = append(batch.Messages, control(ControlUpToDate))
	}
	return batch, nil
}

func mustRefetch(handle string) Batch {
	return Batch{
		Handle:   handle,
		Offset:   SnapshotOffset,
		Messages: []Message{control(ControlMustRefetch)},
	}
}
