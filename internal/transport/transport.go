// Package transport sends built requests to the backtest service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/request"
)

const (
	// DefaultBaseURL is the local development service address.
	DefaultBaseURL = "http://localhost:8000"

	// RunIDHeader carries the panel's run id for log correlation.
	RunIDHeader = "X-Run-ID"

	maxResponseBytes = 32 << 20
)

// Doer executes one service call and returns the raw response body.
type Doer interface {
	Do(ctx context.Context, req request.Request, runID string) ([]byte, error)
}

// Client is an HTTP Doer.
type Client struct {
	client  *http.Client
	baseURL string
}

// New creates a client for baseURL. timeout bounds each call at the
// http.Client level; callers should also pass a context deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// NewWithHTTPClient creates a client with a custom http.Client (for testing).
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	c := New(baseURL, 0)
	c.client = hc
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the absolute URL for req.
func (c *Client) URL(req request.Request) string {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

// Do sends req. Any network failure or non-2xx status is
// ErrTransportFailed; an expired context is ErrTransportTimeout. Error
// response bodies are not read.
func (c *Client) Do(ctx context.Context, req request.Request, runID string) ([]byte, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.WrapError(core.ErrTransportFailed, fmt.Errorf("encoding body: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.URL(req), body)
	if err != nil {
		return nil, core.WrapError(core.ErrTransportFailed, fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if runID != "" {
		httpReq.Header.Set(RunIDHeader, runID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.WrapError(core.ErrTransportFailed,
			fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("reading response: %w", err))
	}
	return data, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.WrapError(core.ErrTransportTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.WrapError(core.ErrTransportTimeout, err)
	}
	return core.WrapError(core.ErrTransportFailed, err)
}
