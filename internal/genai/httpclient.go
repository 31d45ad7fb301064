package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// HTTPClient implements Client against a JSON-over-HTTP generation service
// exposing /v1/generate and /v1/images.
type HTTPClient struct {
	base string
	http *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a client for the generation service at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate produces text via POST /v1/generate.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (*Response, error) {
	return c.call(ctx, "generate", c.base+"/v1/generate", req)
}

// RenderImage produces image bytes via POST /v1/images.
func (c *HTTPClient) RenderImage(ctx context.Context, req Request) (*Response, error) {
	return c.call(ctx, "images", c.base+"/v1/images", req)
}

// call performs a JSON POST and maps HTTP-level failures to typed errors.
func (c *HTTPClient) call(ctx context.Context, op, url string, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("genai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Network-level failures (connection reset, client timeout) are
		// transient from the caller's point of view.
		return nil, &Error{Op: op, Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Message: "read response: " + err.Error(), Transient: true}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			Transient:  transientStatus(resp.StatusCode),
		}
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &Error{Op: op, Message: "decode response: " + err.Error(), Transient: false}
	}
	return &out, nil
}

// transientStatus classifies HTTP status codes: request timeout, rate limits,
// and server-side failures are retryable; other client errors are not.
func transientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}
