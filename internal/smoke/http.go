package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient wraps http.Client with the run's base URL and id.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	runID   string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL, runID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		runID:   runID,
	}
}

// response is a decoded JSON reply.
type response struct {
	Status int
	Body   map[string]any
}

// requestOption mutates an outgoing request.
type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func withCookie(name, value string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string, opts ...requestOption) (response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", opts...)
}

// PostJSON performs a POST request with a JSON body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body any, opts ...requestOption) (response, error) {
	return c.sendJSON(ctx, http.MethodPost, path, body, opts...)
}

// PutJSON performs a PUT request with a JSON body.
func (c *HTTPClient) PutJSON(ctx context.Context, path string, body any, opts ...requestOption) (response, error) {
	return c.sendJSON(ctx, http.MethodPut, path, body, opts...)
}

// PostForm performs a POST request with a urlencoded form.
func (c *HTTPClient) PostForm(ctx context.Context, path string, form url.Values, opts ...requestOption) (response, error) {
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", opts...)
}

func (c *HTTPClient) sendJSON(ctx context.Context, method, path string, body any, opts ...requestOption) (response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json", opts...)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, opts ...requestOption) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.runID != "" {
		req.Header.Set(RunIDHeader, c.runID)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	out := response{Status: resp.StatusCode}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			return out, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return out, nil
}
