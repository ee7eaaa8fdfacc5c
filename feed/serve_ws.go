package feed

import (
	"context"
	"errors"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ServeWebSocket pushes batches for req over conn: first the snapshot or
// backlog, then one batch per commit. It returns when the peer goes away,
// ctx is done, or the reader must refetch.
func (s *Shape) ServeWebSocket(ctx context.Context, conn *websocket.Conn, req Request) error {
	// We never expect messages from the peer; CloseRead handles control
	// frames and cancels ctx when the peer closes.
	ctx = conn.CloseRead(ctx)

	req.Live = false
	caughtUp := false
	first := true

	for {
		batch, err := s.Read(ctx, req)
		if errors.Is(err, ErrShutdown) {
			return conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			conn.Close(websocket.StatusInternalError, "shape read failed")
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		refetch := batch.Has(ControlMustRefetch)
		upToDate := batch.Has(ControlUpToDate)

		if first || refetch || len(batch.Changes()) > 0 || (upToDate && !caughtUp) {
			if err := wsjson.Write(ctx, conn, batch); err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
		first = false

		if refetch {
			return conn.Close(websocket.StatusNormalClosure, ControlMustRefetch)
		}
		if upToDate {
			caughtUp = true
		}

		req = Request{Offset: batch.Offset, Handle: batch.Handle, Live: true}
	}
}
