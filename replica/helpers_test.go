package replica

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/db"
	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/notifications"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// upstream is a server database exposing only its shape endpoint.
type upstream struct {
	store  *db.TodoStore
	server *httptest.Server

	// snapshots counts offset=-1 requests, one per fresh subscription
	snapshots atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	d, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "server.sqlite")})
	if err != nil {
		t.Fatalf("db.Open() failed: %v", err)
	}
	n := notifications.NewService()
	shape := feed.NewShape(d, n, 2*time.Second)

	u := &upstream{store: db.NewTodoStore(d, n)}

	mux := http.NewServeMux()
	mux.HandleFunc(feed.ShapePath, func(w http.ResponseWriter, r *http.Request) {
		req, err := feed.ParseRequest(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Offset == feed.SnapshotOffset {
			u.snapshots.Add(1)
		}
		batch, err := shape.Read(r.Context(), req)
		if err != nil && !errors.Is(err, feed.ErrShutdown) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		feed.WriteBatch(w, batch)
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		n.Shutdown()
		u.server.CloseClientConnections()
		u.server.Close()
		d.Close()
	})
	return u
}

func testConfig(t *testing.T, upstreamURL string) Config {
	return Config{
		Path:        filepath.Join(t.TempDir(), "replica.sqlite"),
		UpstreamURL: upstreamURL,
	}
}

// waitSnapshots waits until the upstream has served want snapshots, then
// checks no further subscription shows up.
func (u *upstream) waitSnapshots(t *testing.T, want int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for u.snapshots.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("upstream served %d snapshots, want %d", u.snapshots.Load(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	if got := u.snapshots.Load(); got != want {
		t.Fatalf("upstream served %d snapshots, want %d", got, want)
	}
}
