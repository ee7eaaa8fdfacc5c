// Package remote implements the todo store over the HTTP API of another
// process. Every call is one request; nothing is cached.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

const (
	todosPath       = "/api/todos"
	feedResetPath   = "/api/feed/reset"
	feedCompactPath = "/api/feed/compact"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("todo api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("todo api: %d %s", e.Status, e.Message)
}

// Client talks to a todo HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client for the server at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: u, http: httpClient}, nil
}

// BaseURL returns the server URL the client was created with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) List(ctx context.Context) ([]models.Todo, error) {
	var todos []models.Todo
	if err := c.do(ctx, http.MethodGet, todosPath, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *Client) Insert(ctx context.Context, title string) (models.Todo, error) {
	var todo models.Todo
	body := map[string]any{"title": title}
	if err := c.do(ctx, http.MethodPost, todosPath, body, &todo); err != nil {
		return models.Todo{}, err
	}
	return todo, nil
}

// SetCompleted returns nil, nil when the server reports the id as absent.
func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	var todo models.Todo
	body := map[string]any{"id": id, "completed": completed}
	err := c.do(ctx, http.MethodPut, todosPath, body, &todo)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	var result struct {
		Success bool `json:"success"`
	}
	body := map[string]any{"id": id}
	if err := c.do(ctx, http.MethodDelete, todosPath, body, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("delete todo %d: server did not report success", id)
	}
	return nil
}

// ResetFeed makes the server issue a new shape handle, so every replica
// refetches. It returns the new handle.
func (c *Client) ResetFeed(ctx context.Context) (string, error) {
	var result struct {
		Handle string `json:"handle"`
	}
	if err := c.do(ctx, http.MethodPost, feedResetPath, nil, &result); err != nil {
		return "", err
	}
	return result.Handle, nil
}

// CompactFeed asks the server to trim its change log now.
func (c *Client) CompactFeed(ctx context.Context) error {
	var result struct {
		Success bool `json:"success"`
	}
	return c.do(ctx, http.MethodPost, feedCompactPath, nil, &result)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.base.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
