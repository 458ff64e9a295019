// File: internal/api/client.go
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/promptpilot/internal/config"
)

// AcceptHeader is sent on every request; the target APIs answer in JSON or XML.
const AcceptHeader = "application/json, application/xml, text/xml, */*"

// ErrNoBaseURL is returned for a relative endpoint when the client has no base URL.
var ErrNoBaseURL = errors.New("relative endpoint requires an API base URL")

// Response is a fully read API response. Body is the decoded JSON value when the
// content type is JSON, the raw text otherwise, and nil for an empty body.
type Response struct {
	Status int
	Header http.Header
	Body   any
	// Raw has its body already consumed and closed.
	Raw *http.Response
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Text returns the body when it is raw text.
func (r *Response) Text() (string, bool) {
	s, ok := r.Body.(string)
	return s, ok
}

// Object returns the body when it is a JSON object.
func (r *Response) Object() (map[string]any, bool) {
	m, ok := r.Body.(map[string]any)
	return m, ok
}

// Client issues API requests for a single run. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	headers map[string]string
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.RWMutex
	bearer string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Compression handling is still applied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		clone := *hc
		clone.Transport = newDecompressingTransport(hc.Transport)
		c.http = &clone
	}
}

// NewClient builds a client for baseURL. baseURL may be empty when every endpoint is absolute.
func NewClient(cfg config.APIConfig, baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	c := &Client{
		http: &http.Client{
			Transport: newDecompressingTransport(newTransport(cfg, logger)),
			Timeout:   cfg.Timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: cfg.Headers,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base used for relative endpoints.
func (c *Client) BaseURL() string { return c.baseURL }

// SetBearerToken sets or, with an empty token, clears the Authorization header for later requests.
func (c *Client) SetBearerToken(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

// BearerToken returns the token currently sent, if any.
func (c *Client) BearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

func (c *Client) Get(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, data)
}

func (c *Client) Put(ctx context.Context, endpoint string, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, data)
}

func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil)
}

// Do sends a request and reads the whole response. A non-2xx status is not an error;
// callers inspect Response.Status. A nil data sends no body.
func (c *Client) Do(ctx context.Context, method, endpoint string, data any) (*Response, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", method, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request for %q: %w", method, target, err)
	}
	req.Header.Set("Accept", AcceptHeader)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if token := c.BearerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	c.logger.Info("Sending request.", zap.String("method", method), zap.String("url", target))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s response: %w", method, target, err)
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Raw: resp}
	if out.Body, err = decodeBody(resp.Header.Get("Content-Type"), raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s response: %w", method, target, err)
	}

	fields := []zap.Field{zap.String("method", method), zap.String("url", target), zap.Int("status", out.Status)}
	if out.OK() {
		c.logger.Info("Received response.", fields...)
	} else {
		c.logger.Warn("Received non-success response.", fields...)
	}

	c.adoptToken(out)
	return out, nil
}

// resolve joins relative endpoints onto the base URL. Absolute endpoints, including
// their query strings, are used as given.
func (c *Client) resolve(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.IsAbs() {
		return endpoint, nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: %q", ErrNoBaseURL, endpoint)
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/"), nil
}

func decodeBody(contentType string, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if strings.Contains(strings.ToLower(contentType), "json") {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return string(raw), nil
}
