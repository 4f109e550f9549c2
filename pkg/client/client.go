// Package client talks to a running gamewarden daemon over its HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/mods"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8420/api",
		Timeout: 10 * time.Second,
	}
}

// Client is an HTTP client for the daemon's control API.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// IsReachable reports whether the daemon answers on its status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Start asks the daemon to spawn the server process.
func (c *Client) Start(ctx context.Context) error {
	return c.post(ctx, "/start")
}

// Stop asks the daemon to stop the server gracefully.
func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop")
}

// Kill asks the daemon to terminate the server immediately.
func (c *Client) Kill(ctx context.Context) error {
	return c.post(ctx, "/kill")
}

// Status fetches the current status snapshot.
func (c *Client) Status(ctx context.Context) (supervisor.Snapshot, error) {
	var snap supervisor.Snapshot
	err := c.get(ctx, "/status", &snap)
	return snap, err
}

// Logs fetches the last n output lines.
func (c *Client) Logs(ctx context.Context, n int) ([]logbuf.Line, error) {
	path := "/logs"
	if n > 0 {
		path += "?n=" + strconv.Itoa(n)
	}
	var lines []logbuf.Line
	err := c.get(ctx, path, &lines)
	return lines, err
}

// Mods fetches the installed mod list.
func (c *Client) Mods(ctx context.Context, refresh bool) ([]mods.Info, error) {
	path := "/mods"
	if refresh {
		path += "?refresh=1"
	}
	var list []mods.Info
	err := c.get(ctx, path, &list)
	return list, err
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return apiError(resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := apiError(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return fmt.Errorf("daemon: %s", er.Error)
}
