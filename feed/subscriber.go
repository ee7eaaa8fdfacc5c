package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// Transports a subscriber can follow the feed with.
const (
	TransportPoll      = "poll"
	TransportWebSocket = "ws"
)

// Subscription status values reported through Options.OnStatus.
const (
	StatusUpToDate    = "up-to-date"
	StatusMustRefetch = "must-refetch"
	StatusError       = "error"
)

// Sink is the local table a subscription keeps current.
type Sink interface {
	// Position returns the last applied handle and offset, or ("",
	// SnapshotOffset) when nothing has been applied.
	Position(ctx context.Context) (handle string, offset int64, err error)
	// Apply applies the row operations of b and records its position,
	// atomically.
	Apply(ctx context.Context, b Batch) error
	// Reset clears all rows and the recorded position.
	Reset(ctx context.Context) error
}

// Options configure a subscription.
type Options struct {
	// URL of the shape endpoint, e.g. http://localhost:12345/v1/shape/todos
	URL       string
	Transport string
	Client    *http.Client

	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnStatus, if set, is called from the subscription goroutine.
	OnStatus func(status string, offset int64)
}

// errReconnect asks the run loop to reconnect at once, without backoff.
var errReconnect = errors.New("reconnect")

type transport interface {
	follow(ctx context.Context, s *Subscription) error
}

// Subscription keeps a Sink eventually consistent with a remote shape.
type Subscription struct {
	sink      Sink
	opts      Options
	transport transport

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	upToDate     chan struct{}
	upToDateOnce sync.Once
	progressed   atomic.Bool
}

// Subscribe validates opts and starts following the shape in a goroutine.
// The subscription lives until ctx is done or Unsubscribe is called.
func Subscribe(ctx context.Context, sink Sink, opts Options) (*Subscription, error) {
	u, err := url.Parse(opts.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid shape url %q", opts.URL)
	}

	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 250 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 10 * time.Second
	}

	s := &Subscription{
		sink:     sink,
		opts:     opts,
		done:     make(chan struct{}),
		upToDate: make(chan struct{}),
	}

	switch opts.Transport {
	case "", TransportPoll:
		s.transport = &pollTransport{base: u, client: opts.Client}
	case TransportWebSocket:
		s.transport = &wsTransport{base: u}
	default:
		return nil, fmt.Errorf("unknown feed transport %q", opts.Transport)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)

	logger.Info().Str("url", opts.URL).Str("transport", opts.Transport).Msg("subscribed to shape")
	return s, nil
}

// Unsubscribe stops the subscription and waits for it to exit. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		logger.Info().Msg("unsubscribed from shape")
	})
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// UpToDate is closed the first time the sink catches up with the server.
func (s *Subscription) UpToDate() <-chan struct{} {
	return s.upToDate
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	backoff := s.opts.MinBackoff
	for {
		err := s.transport.follow(ctx, s)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errReconnect) {
			continue
		}

		if s.progressed.Swap(false) {
			backoff = s.opts.MinBackoff
		}
		logger.Warn().Err(err).Dur("retry_in", backoff).Msg("shape subscription interrupted")
		s.status(StatusError, SnapshotOffset)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.opts.MaxBackoff)
	}
}

// handle applies one batch. It reports whether the reader is now caught
// up, and returns errReconnect after a refetch.
func (s *Subscription) handle(ctx context.Context, b Batch) (bool, error) {
	if b.Has(ControlMustRefetch) {
		logger.Info().Str("handle", b.Handle).Msg("shape must be refetched")
		if err := s.sink.Reset(ctx); err != nil {
			return false, fmt.Errorf("reset sink: %w", err)
		}
		s.status(StatusMustRefetch, SnapshotOffset)
		return false, errReconnect
	}

	if err := s.sink.Apply(ctx, b); err != nil {
		return false, fmt.Errorf("apply batch at offset %d: %w", b.Offset, err)
	}
	s.progressed.Store(true)

	if !b.Has(ControlUpToDate) {
		return false, nil
	}
	s.upToDateOnce.Do(func() { close(s.upToDate) })
	s.status(StatusUpToDate, b.Offset)
	return true, nil
}

func (s *Subscription) status(status string, offset int64) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(status, offset)
	}
}

func (s *Subscription) request(ctx context.Context, live bool) (Request, error) {
	handle, offset, err := s.sink.Position(ctx)
	if err != nil {
		return Request{}, fmt.Errorf("read sink position: %w", err)
	}
	req := Request{Offset: offset, Handle: handle}
	if offset == SnapshotOffset {
		req.Handle = ""
	} else {
		req.Live = live
	}
	return req, nil
}

func withQuery(base *url.URL, req Request) *url.URL {
	u := *base
	q := u.Query()
	for k, v := range req.Query() {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return &u
}
