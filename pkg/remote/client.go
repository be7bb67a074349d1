// Package remote is a small JSON-over-HTTP client for the external identity
// and team services.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// DefaultTimeout bounds a call when neither the caller's context nor the config sets one.
const DefaultTimeout = 5 * time.Second

// StatusError reports a non-2xx answer from the remote service.
type StatusError struct {
	Status int
	URI    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URI, e.Status)
}

// Client issues GET requests against a single base URL.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	timeout time.Duration
}

// NewClient creates a client for baseURL. A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "task-tracker",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// BaseURL returns the service root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches path with query and decodes the JSON body into dest.
// The call ends at the earlier of the context deadline and the client timeout.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("GET %s: %w", uri, err)
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return &StatusError{Status: status, URI: uri}
	}

	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", uri, err)
	}
	return nil
}
