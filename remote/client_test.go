package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

// fakeAPI serves /api/todos over a fixed slice, enough to exercise the
// request and response shapes.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	todos := map[int64]models.Todo{1: {ID: 1, Title: "buy milk"}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/todos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			Completed bool   `json:"completed"`
		}
		if r.Method != http.MethodGet {
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]models.Todo{todos[1]})
		case http.MethodPost:
			if body.Title == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"code":"INVALID_TITLE","message":"title must not be empty"}}`))
				return
			}
			json.NewEncoder(w).Encode(models.Todo{ID: 2, Title: body.Title})
		case http.MethodPut:
			todo, ok := todos[body.ID]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"todo not found"}}`))
				return
			}
			todo.Completed = body.Completed
			json.NewEncoder(w).Encode(todo)
		case http.MethodDelete:
			w.Write([]byte(`{"success":true}`))
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrips(t *testing.T) {
	srv := fakeAPI(t)
	c, err := New(srv.URL+"/", nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, c.BaseURL())

	todos, err := c.List(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []models.Todo{{ID: 1, Title: "buy milk"}}, todos)

	created, err := c.Insert(t.Context(), "walk dog")
	require.NoError(t, err)
	assert.Equal(t, models.Todo{ID: 2, Title: "walk dog"}, created)

	updated, err := c.SetCompleted(t.Context(), 1, true)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Completed)

	require.NoError(t, c.Delete(t.Context(), 1))
}

func TestClient_SetCompletedMissingIsNil(t *testing.T) {
	c, err := New(fakeAPI(t).URL, nil)
	require.NoError(t, err)

	updated, err := c.SetCompleted(t.Context(), 42, true)
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestClient_DecodesErrorBody(t *testing.T) {
	c, err := New(fakeAPI(t).URL, nil)
	require.NoError(t, err)

	_, err = c.Insert(t.Context(), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_TITLE", apiErr.Code)
	assert.Equal(t, "title must not be empty", apiErr.Message)
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.List(t.Context())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:1234", "ftp://host", "http://"} {
		_, err := New(raw, nil)
		assert.Error(t, err, raw)
	}
}
