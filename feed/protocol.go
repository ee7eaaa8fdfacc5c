// Package feed implements the todos change feed: an offset-addressed log
// that a replica reads once as a snapshot and then follows live, over
// HTTP long-polling or a WebSocket.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

// Control messages.
const (
	ControlUpToDate    = "up-to-date"
	ControlMustRefetch = "must-refetch"
)

// ShapePath is where a server exposes the todos shape.
const ShapePath = "/v1/shape/todos"

// HTTP headers and query parameters of the shape endpoint.
const (
	HeaderHandle = "X-Shape-Handle"
	HeaderOffset = "X-Shape-Offset"

	ParamOffset = "offset"
	ParamHandle = "handle"
	ParamLive   = "live"
)

// SnapshotOffset requests the full current row set.
const SnapshotOffset int64 = -1

// Headers describe what a message is: a row operation or a control signal.
type Headers struct {
	Operation string `json:"operation,omitempty"`
	Control   string `json:"control,omitempty"`
}

// Message is one entry of the feed.
type Message struct {
	Headers Headers      `json:"headers"`
	Key     int64        `json:"key,omitempty"`
	Value   *models.Todo `json:"value,omitempty"`
	Offset  int64        `json:"offset,omitempty"`
}

// IsControl reports whether m is a control message.
func (m Message) IsControl() bool {
	return m.Headers.Control != ""
}

// Batch is a contiguous run of messages. Handle and Offset are the
// position a reader is at after applying it.
type Batch struct {
	Handle   string    `json:"handle"`
	Offset   int64     `json:"offset"`
	Messages []Message `json:"messages"`
}

// Has reports whether the batch carries the given control message.
func (b Batch) Has(control string) bool {
	for _, m := range b.Messages {
		if m.Headers.Control == control {
			return true
		}
	}
	return false
}

// Changes returns the row operations of the batch, skipping control messages.
func (b Batch) Changes() []Message {
	out := make([]Message, 0, len(b.Messages))
	for _, m := range b.Messages {
		if !m.IsControl() {
			out = append(out, m)
		}
	}
	return out
}

func control(name string) Message {
	return Message{Headers: Headers{Control: name}}
}

func snapshotMessages(todos []models.Todo, offset int64) []Message {
	msgs := make([]Message, 0, len(todos))
	for i := range todos {
		todo := todos[i]
		msgs = append(msgs, Message{
			Headers: Headers{Operation: models.OpInsert},
			Key:     todo.ID,
			Value:   &todo,
			Offset:  offset,
		})
	}
	return msgs
}

func changeMessages(changes []models.Change) []Message {
	msgs := make([]Message, 0, len(changes))
	for _, c := range changes {
		msgs = append(msgs, Message{
			Headers: Headers{Operation: c.Operation},
			Key:     c.TodoID,
			Value:   c.Todo,
			Offset:  c.Seq,
		})
	}
	return msgs
}

// Request is a read of the shape log.
type Request struct {
	// Offset is SnapshotOffset or the last offset the reader applied.
	Offset int64
	Handle string
	// Live makes the read wait for new changes when the reader is caught up.
	Live bool
}

var ErrBadRequest = errors.New("bad shape request")

// ParseRequest reads a Request from shape endpoint query parameters.
func ParseRequest(q url.Values) (Request, error) {
	req := Request{Offset: SnapshotOffset, Handle: q.Get(ParamHandle)}

	if raw := q.Get(ParamOffset); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || offset < SnapshotOffset {
			return Request{}, fmt.Errorf("%w: offset %q", ErrBadRequest, raw)
		}
		req.Offset = offset
	}

	if raw := q.Get(ParamLive); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			return Request{}, fmt.Errorf("%w: live %q", ErrBadRequest, raw)
		}
		req.Live = live
	}

	if req.Offset != SnapshotOffset && req.Handle == "" {
		return Request{}, fmt.Errorf("%w: handle is required with an offset", ErrBadRequest)
	}
	return req, nil
}

// Query encodes r as shape endpoint query parameters.
func (r Request) Query() url.Values {
	q := url.Values{}
	q.Set(ParamOffset, strconv.FormatInt(r.Offset, 10))
	if r.Handle != "" {
		q.Set(ParamHandle, r.Handle)
	}
	if r.Live {
		q.Set(ParamLive, "true")
	}
	return q
}

// WriteBatch writes b as a long-poll response: position in headers,
// messages as a JSON array body.
func WriteBatch(w http.ResponseWriter, b Batch) error {
	w.Header().Set(HeaderHandle, b.Handle)
	w.Header().Set(HeaderOffset, strconv.FormatInt(b.Offset, 10))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	msgs := b.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.NewEncoder(w).Encode(msgs)
}

// ReadBatch decodes a long-poll response written by WriteBatch.
func ReadBatch(resp *http.Response) (Batch, error) {
	if resp.StatusCode != http.StatusOK {
		return Batch{}, fmt.Errorf("shape request failed: %s", resp.Status)
	}

	b := Batch{Handle: resp.Header.Get(HeaderHandle)}
	if raw := resp.Header.Get(HeaderOffset); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Batch{}, fmt.Errorf("invalid %s header %q", HeaderOffset, raw)
		}
		b.Offset = offset
	}

	if err := json.NewDecoder(resp.Body).Decode(&b.Messages); err != nil {
		return Batch{}, fmt.Errorf("decode shape response: %w", err)
	}
	return b, nil
}
