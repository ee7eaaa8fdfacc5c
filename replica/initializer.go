package replica

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
	"github.com/xiaoyuanzhu-com/local-first-todo/remote"
)

var (
	ErrNotReady = errors.New("replica store is not ready")
	ErrClosed   = errors.New("replica store was torn down")
)

// Config holds replica settings.
type Config struct {
	// Path of the embedded database file.
	Path string
	// UpstreamURL is the todo server that accepts writes.
	UpstreamURL string
	// ShapeURL defaults to UpstreamURL + feed.ShapePath.
	ShapeURL  string
	Transport string
	// HTTPClient is shared by writes and the poll transport. Optional.
	HTTPClient *http.Client
}

// Initializer owns the process-wide replica lifecycle: the store is
// opened and subscribed at most once, however many callers activate it.
type Initializer struct {
	cfg    Config
	notify *notifications.Service

	group singleflight.Group

	mu      sync.Mutex
	replica *Replica
	closed  bool
}

// NewInitializer creates an inactive initializer. notify may be nil.
func NewInitializer(cfg Config, notify *notifications.Service) *Initializer {
	if cfg.ShapeURL == "" {
		cfg.ShapeURL = strings.TrimSuffix(cfg.UpstreamURL, "/") + feed.ShapePath
	}
	return &Initializer{cfg: cfg, notify: notify}
}

// Activate returns the replica, initializing it on first call. Concurrent
// callers share one initialization. A failure is returned to every caller
// waiting on it and leaves the initializer inactive, so a later call
// retries.
func (i *Initializer) Activate(ctx context.Context) (*Replica, error) {
	if r, err := i.current(); r != nil || errors.Is(err, ErrClosed) {
		return r, err
	}

	v, err, _ := i.group.Do("activate", func() (any, error) {
		if r, err := i.current(); r != nil || errors.Is(err, ErrClosed) {
			return r, err
		}

		r, err := i.open(ctx)
		if err != nil {
			logger.Error().Err(err).Str("path", i.cfg.Path).Msg("replica initialization failed")
			return nil, err
		}

		i.mu.Lock()
		if i.closed {
			i.mu.Unlock()
			r.close()
			return nil, ErrClosed
		}
		i.replica = r
		i.mu.Unlock()

		logger.Info().Str("shape", i.cfg.ShapeURL).Msg("replica store ready")
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Replica), nil
}

func (i *Initializer) open(ctx context.Context) (*Replica, error) {
	client, err := remote.New(i.cfg.UpstreamURL, i.cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	store, err := OpenStore(i.cfg.Path, i.notify)
	if err != nil {
		return nil, err
	}

	// The subscription outlives the activating request.
	sub, err := feed.Subscribe(context.WithoutCancel(ctx), store, feed.Options{
		URL:       i.cfg.ShapeURL,
		Transport: i.cfg.Transport,
		Client:    i.cfg.HTTPClient,
		OnStatus:  i.feedStatus,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", i.cfg.ShapeURL, err)
	}

	return &Replica{store: store, remote: client, sub: sub}, nil
}

func (i *Initializer) feedStatus(status string, offset int64) {
	if i.notify != nil {
		i.notify.NotifyFeedStatus(status, offset)
	}
}

func (i *Initializer) current() (*Replica, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, ErrClosed
	}
	if i.replica == nil {
		return nil, ErrNotReady
	}
	return i.replica, nil
}

// Ready reports whether a usable store exists.
func (i *Initializer) Ready() bool {
	r, _ := i.current()
	return r != nil
}

// Replica returns the activated replica, ErrNotReady before activation or
// ErrClosed after teardown.
func (i *Initializer) Replica() (*Replica, error) {
	return i.current()
}

// Teardown unsubscribes and closes the store. Safe to call more than once;
// activations after teardown fail with ErrClosed.
func (i *Initializer) Teardown() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	r := i.replica
	i.replica = nil
	i.mu.Unlock()

	if r != nil {
		r.close()
		logger.Info().Msg("replica store torn down")
	}
}

// Store returns a todo store that forwards to the replica once it is
// activated and fails with ErrNotReady until then.
func (i *Initializer) Store() *Deferred {
	return &Deferred{init: i}
}

// Deferred is a todo store bound to an initializer rather than a replica.
type Deferred struct {
	init *Initializer
}

func (d *Deferred) List(ctx context.Context) ([]models.Todo, error) {
	r, err := d.init.Replica()
	if err != nil {
		return nil, err
	}
	return r.List(ctx)
}

func (d *Deferred) Get(ctx context.Context, id int64) (*models.Todo, error) {
	r, err := d.init.Replica()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (d *Deferred) Insert(ctx context.Context, title string) (models.Todo, error) {
	r, err := d.init.Replica()
	if err != nil {
		return models.Todo{}, err
	}
	return r.Insert(ctx, title)
}

func (d *Deferred) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	r, err := d.init.Replica()
	if err != nil {
		return nil, err
	}
	return r.SetCompleted(ctx, id, completed)
}

func (d *Deferred) Delete(ctx context.Context, id int64) error {
	r, err := d.init.Replica()
	if err != nil {
		return err
	}
	return r.Delete(ctx, id)
}
