package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(&Config{
		Env:     "test",
		Host:    "127.0.0.1",
		Port:    0,
		Variant: VariantMemory,
	})
	require.NoError(t, err)
	return srv
}

func shutdown(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := newMemoryServer(t)
	shutdown(t, srv)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() kept serving after Shutdown()")
	}
}

func TestServer_ShutdownWhileStarting(t *testing.T) {
	for range 20 {
		srv := newMemoryServer(t)

		done := make(chan error, 1)
		go func() { done <- srv.Start() }()
		shutdown(t, srv)

		select {
		case err := <-done:
			assert.ErrorIs(t, err, http.ErrServerClosed)
		case <-time.After(5 * time.Second):
			t.Fatal("Start() did not return after Shutdown()")
		}
	}
}

func TestServer_StartServicesTwice(t *testing.T) {
	srv := newMemoryServer(t)
	defer shutdown(t, srv)

	require.NoError(t, srv.StartServices())
	require.NoError(t, srv.StartServices())
}
