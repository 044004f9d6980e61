package shuttle

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
	"sync"
	"time"

	"github.com/nhle/shuttledesk/internal/source"
)

// Client talks JSON to the shuttle booking REST API. Requests carry the
// bearer token when one is set; throttled requests are retried.
type Client struct {
	baseURL    string
	mu         sync.RWMutex
	token      string
	httpClient *http.Client
	maxRetries int
	maxBackoff time.Duration
}

// NewClient creates a new booking API client. timeout bounds every
// request; a zero timeout uses 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		maxBackoff: 30 * time.Second,
	}
}

// SetToken sets the bearer token sent with every request. An empty token
// sends no Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	query url.Values,
	result interface{},
) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// do sends one API call. A 429 answer is retried up to maxRetries times,
// waiting as long as the server asks.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		status, header, respBody, err := c.send(ctx, method, path, payload)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusTooManyRequests:
			if attempt >= c.maxRetries {
				return fmt.Errorf("%s %s still throttled after %d retries", method, path, c.maxRetries)
			}
			timer := time.NewTimer(c.retryDelay(header.Get("Retry-After"), attempt, time.Now()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue

		case status == http.StatusUnauthorized:
			return &source.AuthError{
				BaseURL: c.baseURL,
				Message: errorText(respBody, "session expired or invalid credentials"),
			}

		case status < 200 || status >= 300:
			return &source.StatusError{
				Method:     method,
				Path:       path,
				StatusCode: status,
				Message:    errorText(respBody, strings.TrimSpace(string(respBody))),
			}
		}

		if result == nil || status == http.StatusNoContent {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding %s %s: %w", method, path, err)
		}
		return nil
	}
}

// send performs a single request and returns the drained response.
func (c *Client) send(ctx context.Context, method, path string, payload []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	return resp.StatusCode, resp.Header, data, nil
}

// errorText extracts the message of an API error body, or returns
// fallback when the body is not a recognizable error object.
func errorText(body []byte, fallback string) string {
	var apiErr ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Text() != "" {
		return apiErr.Text()
	}
	return fallback
}

// retryDelay is the wait before retry number attempt+1. Retry-After may
// carry seconds or an HTTP date; without it the delay doubles from one
// second. The result never exceeds maxBackoff.
func (c *Client) retryDelay(retryAfter string, attempt int, now time.Time) time.Duration {
	delay := time.Second << uint(attempt)
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		delay = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(retryAfter); err == nil {
		delay = max(at.Sub(now), 0)
	}
	return min(delay, c.maxBackoff)
}
