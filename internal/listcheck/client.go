package listcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/demonlist/internal/domain/model"
)

// Client talks to the level list HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Health checks that the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil, http.StatusOK)
}

// Login exchanges admin credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, nil, &out, http.StatusOK); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token = out.Token
	return nil
}

// Stats returns the service statistics document.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the levels in rank order.
func (c *Client) List(ctx context.Context) ([]model.Level, error) {
	var out []model.Level
	if err := c.do(ctx, http.MethodGet, "/api/levels", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRaw returns the undecoded level list so callers can compare responses byte for byte.
func (c *Client) ListRaw(ctx context.Context) ([]byte, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/levels", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds lvl at the bottom of the list. With a non-empty key the request
// carries an Idempotency-Key; duplicate is true when the service had already
// seen the key.
func (c *Client) Create(ctx context.Context, lvl model.Level, key string) (created model.Level, duplicate bool, err error) {
	headers := map[string]string{}
	if key != "" {
		headers["Idempotency-Key"] = key
	}
	var raw json.RawMessage
	status, err := c.send(ctx, http.MethodPost, "/api/levels", lvl, headers, &raw)
	if err != nil {
		return model.Level{}, false, err
	}
	switch status {
	case http.StatusCreated:
		if err := json.Unmarshal(raw, &created); err != nil {
			return model.Level{}, false, fmt.Errorf("decode created level: %w", err)
		}
		return created, false, nil
	case http.StatusOK:
		return model.Level{}, true, nil
	default:
		return model.Level{}, false, fmt.Errorf("%w: POST /api/levels returned %d", ErrUnexpectedStatus, status)
	}
}

// Update replaces the fields of the level at rank. lvl.Rank is the requested new rank.
func (c *Client) Update(ctx context.Context, rank int, lvl model.Level) (model.Level, error) {
	var out model.Level
	err := c.do(ctx, http.MethodPut, "/api/levels/"+strconv.Itoa(rank), lvl, nil, &out, http.StatusOK)
	return out, err
}

// Delete removes the level at rank.
func (c *Client) Delete(ctx context.Context, rank int) (model.Level, error) {
	var out model.Level
	err := c.do(ctx, http.MethodDelete, "/api/levels/"+strconv.Itoa(rank), nil, nil, &out, http.StatusOK)
	return out, err
}

// Replace swaps the whole list for levels.
func (c *Client) Replace(ctx context.Context, levels []model.Level) ([]model.Level, error) {
	if levels == nil {
		levels = []model.Level{}
	}
	var out []model.Level
	err := c.do(ctx, http.MethodPut, "/api/levels", levels, nil, &out, http.StatusOK)
	return out, err
}

// Leaderboard returns the top limit players; 0 returns all of them.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]model.Player, error) {
	path := "/api/leaderboard"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out []model.Player
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any, want int) error {
	status, err := c.send(ctx, method, path, body, headers, out)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, status)
	}
	return nil
}

// send performs the request and decodes a 2xx body into out.
func (c *Client) send(ctx context.Context, method, path string, body any, headers map[string]string, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
