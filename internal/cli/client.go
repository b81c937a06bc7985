package cli

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

	"github.com/cenkalti/backoff/v5"
)

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
	onRetry    backoff.Notify
}

// NewClient creates a new API client. Requests the server rejects as
// unavailable are retried with exponential backoff.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxTries: 4,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// SetToken updates the client's token
func (c *Client) SetToken(token string) {
	c.token = token
}

// SetRetry overrides the retry policy; tries of 1 disables retries
func (c *Client) SetRetry(tries uint, newBackOff func() backoff.BackOff) {
	c.maxTries = tries
	c.newBackOff = newBackOff
}

// OnRetry registers a callback run before each retry
func (c *Client) OnRetry(notify backoff.Notify) {
	c.onRetry = notify
}

// APIError represents an error response from the API
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an API error
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// legacyErrorResponse is the flat error body of the award endpoint
type legacyErrorResponse struct {
	Error string `json:"error"`
}

func (e *APIError) String() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// StatusError is returned for any non-2xx response
type StatusError struct {
	StatusCode int
	APIError
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return e.APIError.String()
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Request describes one API call
type Request struct {
	Method string
	Path   string
	Body   any
	// IdempotencyKey makes the call safe to retry after a lost response
	IdempotencyKey string
}

// Do performs an HTTP request and decodes a successful response into result
func (c *Client) Do(ctx context.Context, r Request, result any) error {
	var payload []byte
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	// Transport failures are only retried when repeating the request is harmless
	retryTransport := r.Method == http.MethodGet || r.IdempotencyKey != ""

	operation := func() ([]byte, error) {
		body, err := c.send(ctx, r, payload)
		if err == nil {
			return body, nil
		}
		var se *StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusServiceUnavailable {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if !retryTransport || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	tries := c.maxTries
	if tries == 0 {
		tries = 1
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(tries),
	}
	if c.onRetry != nil {
		opts = append(opts, backoff.WithNotify(c.onRetry))
	}
	respBody, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		return err
	}

	// Parse successful response
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// send performs a single attempt
func (c *Client) send(ctx context.Context, r Request, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, c.baseURL+r.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if r.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", r.IdempotencyKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for error responses
	if resp.StatusCode >= 400 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		var legacy legacyErrorResponse
		switch {
		case json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Code != "":
			se.APIError = errResp.Error
		case json.Unmarshal(respBody, &legacy) == nil && legacy.Error != "":
			se.Message = legacy.Error
		default:
			se.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return nil, se
	}

	return respBody, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, result)
}
