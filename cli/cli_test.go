package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanzhu-com/local-first-todo/api"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/server"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func startMemoryServer(t *testing.T) string {
	t.Helper()
	return startServer(t, &server.Config{Env: "test", Variant: server.VariantMemory})
}

func startServer(t *testing.T, cfg *server.Config) string {
	t.Helper()

	srv, err := server.New(cfg)
	require.NoError(t, err)
	api.SetupRoutes(srv.Router(), api.NewHandlers(srv))

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		ts.Close()
	})
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestClientCommands_Text(t *testing.T) {
	url := startMemoryServer(t)

	out, err := run(t, "add", "--server", url, "buy", "milk")
	require.NoError(t, err)
	assert.Equal(t, "[ ] 1  buy milk\n", out)

	out, err = run(t, "toggle", "--server", url, "1")
	require.NoError(t, err)
	assert.Equal(t, "[x] 1  buy milk\n", out)

	out, err = run(t, "list", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "[x] 1  buy milk\n", out)

	out, err = run(t, "rm", "--server", url, "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 1\n", out)

	out, err = run(t, "list", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "No todos.\n", out)
}

func TestClientCommands_JSON(t *testing.T) {
	url := startMemoryServer(t)

	_, err := run(t, "add", "--server", url, "walk dog")
	require.NoError(t, err)

	out, err := run(t, "--format", "json", "list", "--server", url)
	require.NoError(t, err)

	var todos []models.Todo
	require.NoError(t, json.Unmarshal([]byte(out), &todos))
	assert.Equal(t, []models.Todo{{ID: 1, Title: "walk dog"}}, todos)
}

func TestClientCommands_Errors(t *testing.T) {
	url := startMemoryServer(t)

	_, err := run(t, "add", "--server", url, "   ")
	assert.ErrorIs(t, err, models.ErrEmptyTitle)

	_, err = run(t, "toggle", "--server", url, "abc")
	assert.ErrorContains(t, err, "invalid todo id")

	_, err = run(t, "toggle", "--server", url, "7")
	assert.ErrorIs(t, err, models.ErrTodoNotFound)

	_, err = run(t, "list", "--server", "not a url")
	assert.Error(t, err)
}

func TestFeedCommands(t *testing.T) {
	url := startServer(t, &server.Config{
		Env:          "test",
		Variant:      server.VariantSQL,
		DatabasePath: filepath.Join(t.TempDir(), "todos.sqlite"),
	})

	out, err := run(t, "feed", "reset", "--server", url)
	require.NoError(t, err)
	assert.Regexp(t, `^Feed reset, new handle [0-9a-f-]{36}\n$`, out)

	out, err = run(t, "--format", "json", "feed", "reset", "--server", url)
	require.NoError(t, err)
	var reset struct {
		Handle string `json:"handle"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &reset))
	assert.NotEmpty(t, reset.Handle)

	out, err = run(t, "feed", "compact", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, "Compaction queued.\n", out)

	memory := startMemoryServer(t)
	_, err = run(t, "feed", "reset", "--server", memory)
	assert.ErrorContains(t, err, "404")
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "list", "--server", "http://localhost:1")
	assert.ErrorContains(t, err, "invalid format")
}

func TestServe_UnknownVariant(t *testing.T) {
	_, err := run(t, "serve", "--variant", "postgres")
	assert.ErrorContains(t, err, "unknown variant")
}

func TestServe_ConfigFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0644))

	_, err := run(t, "--config", path, "serve", "--variant", "memory")
	assert.Error(t, err)
}
