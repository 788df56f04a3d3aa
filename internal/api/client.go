// Package api implements the HTTP client for the advisor backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"advisor/internal/logging"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

// ErrUnauthorized indicates the backend rejected the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNoToken indicates a request that needs auth was attempted without a token.
var ErrNoToken = errors.New("no auth token set")

// Client talks JSON over HTTP to the advisor backend. It is safe for
// concurrent use; the token may be swapped while requests are in flight.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string
}

// Option adjusts client construction.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// WithLogger attaches a logger to the client.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithToken sets the initial bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logging.Component("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the bearer token used for authenticated requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// GoogleLoginURL returns the browser URL that starts the Google OAuth flow.
// The backend redirects back with a token once consent completes.
func (c *Client) GoogleLoginURL() string {
	return c.baseURL + "/api/auth/google"
}

// Health checks backend reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, false, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth {
		token := c.Token()
		if token == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp)
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("detail", logging.Redact(apiErr.Detail)).
			Msg("request failed")
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError extracts the backend's error payload. The backend reports
// failures as {"detail": ...} where detail is a string or a structured list;
// some proxies use {"error": ...} instead.
func decodeAPIError(resp *http.Response) *APIError {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	detail := ""
	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			detail = s
		} else {
			detail = string(payload.Detail)
		}
	} else if payload.Error != "" {
		detail = payload.Error
	}
	if detail == "" {
		detail = resp.Status
	}

	return &APIError{StatusCode: resp.StatusCode, Detail: detail}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Detail)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// AsAPIError unwraps an APIError if err carries one.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsUnauthorized reports whether err is a 401 response or a missing token.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNoToken)
}
