// Package webhooks talks to a homebridge-http-webhooks server.
package webhooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrBadStatus is wrapped by errors for any response other than 200 OK.
var ErrBadStatus = errors.New("webhooks: bad status")

// StatusError carries the status and a truncated body of a rejected update.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bad status=%d", e.Code)
	}
	return fmt.Sprintf("bad status=%d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrBadStatus }

// Client updates accessories by issuing GET /?accessoryId=...&value=...
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the webhooks server at host:port. Every
// request is bounded by timeout.
func NewClient(host string, port int, timeout time.Duration) *Client {
	return &Client{
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/",
		http:    &http.Client{Timeout: timeout},
	}
}

// URL returns the update URL for an accessory value
func (c *Client) URL(accessoryID, value string) string {
	return buildURL(c.baseURL, url.Values{
		"accessoryId": {accessoryID},
		"value":       {value},
	})
}

// Update sets accessoryID to value. Only 200 OK counts as success.
func (c *Client) Update(ctx context.Context, accessoryID, value string) error {
	reqURL := c.URL(accessoryID, value)
	_, err := request(ctx, c.http, http.MethodGet, reqURL, nil, "")
	if err != nil {
		return fmt.Errorf("url=%q: %w", reqURL, err)
	}
	return nil
}

// PostForm submits an already urlencoded form body to reqURL
func PostForm(ctx context.Context, hc *http.Client, reqURL, form string) ([]byte, error) {
	return request(ctx, hc, http.MethodPost, reqURL, []byte(form), "application/x-www-form-urlencoded")
}

// Generic HTTP request function
func request(ctx context.Context, hc *http.Client, method, reqURL string, body []byte, contentType string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return data, &StatusError{Code: resp.StatusCode, Body: truncate(data, 100)}
	}
	return data, nil
}

// Build URL with query parameters
func buildURL(base string, query url.Values) string {
	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

// Truncate byte slice
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
