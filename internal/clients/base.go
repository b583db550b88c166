// Package clients holds the HTTP plumbing shared by the payment and email
// provider clients.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/middleware"
)

// ErrTimeout wraps calls that ran past the client's timeout.
var ErrTimeout = errors.New("provider timeout")

type Client struct {
	Name    string
	BaseURL *url.URL
	APIKey  string
	Timeout time.Duration
	HTTP    *http.Client
}

func NewClient(name, baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s base url %q", name, baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{Name: name, BaseURL: u, APIKey: apiKey, Timeout: timeout, HTTP: httpClient}, nil
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Client string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Client, e.Code, e.Body)
}

// Retryable reports whether the same call may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// DoJSON sends in as a JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil). The call is bounded by c.Timeout.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.Name, err)
		}
		body = bytes.NewReader(b)
	}

	// path is appended to any prefix in BaseURL, e.g. https://gw/pay + /v1/x.
	u := c.BaseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(middleware.HeaderCorrelationID, cid)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s %s %s: %w", c.Name, method, path, ErrTimeout)
		}
		return fmt.Errorf("%s %s %s: %w", c.Name, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Client: c.Name, Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Name, err)
	}
	return nil
}
