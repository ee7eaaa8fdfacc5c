package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// wsTransport follows the feed over one WebSocket connection. The server
// pushes a batch per commit; the connection is re-dialed from the sink's
// position after any failure.
type wsTransport struct {
	base   *url.URL
	dialer websocket.Dialer
}

func (w *wsTransport) follow(ctx context.Context, s *Subscription) error {
	req, err := s.request(ctx, true)
	if err != nil {
		return err
	}

	conn, _, err := w.dialer.DialContext(ctx, wsURL(w.base, req), nil)
	if err != nil {
		return fmt.Errorf("dial shape websocket: %w", err)
	}
	defer conn.Close()

	// ReadJSON does not take a context; closing the connection unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var batch Batch
		if err := conn.ReadJSON(&batch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read shape websocket: %w", err)
		}

		if _, err := s.handle(ctx, batch); err != nil {
			return err
		}
	}
}

func wsURL(base *url.URL, req Request) string {
	u := withQuery(base, req)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
