// Package apiclient is the shared REST plumbing used by every backend-facing
// component: JSON encoding, bearer injection, request ids, logging and error
// classification.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader is sent with every outbound request.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4096

// TokenSource supplies the current bearer token; an empty string means no
// authenticated session.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for per-call logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// UnauthorizedHandler is told which bearer token a rejected request carried,
// so a late rejection of an old token can be told apart from the current one.
type UnauthorizedHandler func(token string, err error)

// WithUnauthorizedHandler registers a callback invoked when an authenticated
// request is rejected with 401 or 403.
func WithUnauthorizedHandler(fn UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithBasicAuth sends HTTP basic credentials on every request. Used for
// third-party APIs such as the SMS gateway.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) { c.basicUser, c.basicPass = username, password }
}

// Client talks JSON to the clinic backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         zerolog.Logger
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
	basicUser      string
	basicPass      string
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetUnauthorizedHandler replaces the 401/403 callback. It is meant to be
// called during wiring, before the client is shared.
func (c *Client) SetUnauthorizedHandler(fn UnauthorizedHandler) { c.onUnauthorized = fn }

// RequestOption adjusts a single call.
type RequestOption func(*callOptions)

type callOptions struct {
	authenticated bool
	lenient       bool
}

// Authenticated attaches the bearer token to the request.
func Authenticated() RequestOption {
	return func(o *callOptions) { o.authenticated = true }
}

// AuthenticatedIf attaches the bearer token when cond is true.
func AuthenticatedIf(cond bool) RequestOption {
	return func(o *callOptions) {
		if cond {
			o.authenticated = true
		}
	}
}

// IgnoreUndecodable treats a 2xx body that is not valid JSON as empty, for
// endpoints whose success reply carries nothing the caller needs.
func IgnoreUndecodable() RequestOption {
	return func(o *callOptions) { o.lenient = true }
}

// Path joins escaped segments onto prefix: Path("/api/bills/sms", id).
func Path(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(prefix, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// Do performs one JSON call. body is encoded when non-nil; out is decoded from
// a 2xx response when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}, opts ...RequestOption) error {
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Method: method, Path: path, Message: err.Error(), kind: ErrNetwork}
	}
	rid := uuid.New().String()
	req.Header.Set(RequestIDHeader, rid)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.basicUser != "" {
		req.SetBasicAuth(c.basicUser, c.basicPass)
	}
	var sentToken string
	if co.authenticated && c.tokens != nil {
		if sentToken = c.tokens.Token(); sentToken != "" {
			req.Header.Set("Authorization", "Bearer "+sentToken)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("request_id", rid).
			Str("method", method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Msg("backend request failed")
		return &APIError{Method: method, Path: path, Message: err.Error(), kind: ErrNetwork}
	}
	defer resp.Body.Close()

	evt := c.logger.Debug()
	if resp.StatusCode >= 400 {
		evt = c.logger.Warn()
	}
	evt.Str("request_id", rid).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode >= 300 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
			kind:       classify(resp.StatusCode),
		}
		if errors.Is(apiErr, ErrUnauthorized) && sentToken != "" && c.onUnauthorized != nil {
			c.onUnauthorized(sentToken, apiErr)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty 2xx body.
			return nil
		}
		if co.lenient {
			c.logger.Debug().Err(err).
				Str("request_id", rid).
				Str("path", path).
				Msg("ignoring undecodable success body")
			return nil
		}
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    "decode response: " + err.Error(),
			kind:       ErrNetwork,
		}
	}
	return nil
}

// readErrorMessage extracts "message" or "error" from a JSON error body,
// falling back to the raw text.
func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
