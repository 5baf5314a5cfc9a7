package authclient

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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/pulseofpeople/sessionkit/pkg/auth"
	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

const (
	// RequestIDHeader correlates the original request, its refresh and its retry
	RequestIDHeader = "X-Request-ID"

	userAgent = "pulse-sessionkit"
)

// SessionExpiredFunc is invoked once per failed refresh, after tokens are cleared
type SessionExpiredFunc func()

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every individual HTTP exchange. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTracing wraps the transport with OpenTelemetry instrumentation
func WithTracing() Option {
	return func(c *Client) { c.tracing = true }
}

// WithLogger sets the client logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records request and refresh metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSessionExpiredHandler sets the callback run when a refresh is rejected
func WithSessionExpiredHandler(fn SessionExpiredFunc) Option {
	return func(c *Client) { c.onExpired = fn }
}

// Client talks to the auth service. Execute performs authenticated calls
// with transparent refresh; Login, Register, Refresh and Health are raw calls
// that never carry a bearer token and never trigger a refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tracing    bool
	store      storage.Store
	logger     *observability.Logger
	metrics    *observability.Metrics

	mu        sync.RWMutex
	onExpired SessionExpiredFunc

	refreshGroup singleflight.Group
}

// New creates a client for the auth service rooted at baseURL
func New(baseURL string, store storage.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrNop(c.logger).WithField("component", "authclient")

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.tracing {
		transport := c.httpClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		hc := *c.httpClient
		hc.Transport = otelhttp.NewTransport(transport)
		c.httpClient = &hc
	}

	return c, nil
}

// BaseURL returns the normalised auth service root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the token store the client reads and rotates
func (c *Client) Store() storage.Store {
	return c.store
}

// SetSessionExpiredHandler replaces the session-expired callback
func (c *Client) SetSessionExpiredHandler(fn SessionExpiredFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = fn
}

func (c *Client) sessionExpiredHandler() SessionExpiredFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onExpired
}

// Login exchanges credentials for a token pair
func (c *Client) Login(ctx context.Context, req LoginRequest) (auth.TokenPair, error) {
	resp, err := c.post(ctx, LoginPath, req)
	if err != nil {
		return auth.TokenPair{}, err
	}

	var pair auth.TokenPair
	if err := resp.DecodeJSON(&pair); err != nil {
		return auth.TokenPair{}, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return auth.TokenPair{}, fmt.Errorf("%w: login response missing tokens", ErrInvalidResponse)
	}
	return pair, nil
}

// Register creates an account. The response payload is not interpreted.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	_, err := c.post(ctx, RegisterPath, req)
	return err
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	resp, err := c.post(ctx, RefreshPath, refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", err
	}

	var out refreshResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return "", err
	}
	if out.Access == "" {
		return "", fmt.Errorf("%w: refresh response missing access token", ErrInvalidResponse)
	}
	return out.Access, nil
}

// Health probes the auth service
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, HealthPath, nil, nil, "")
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &StatusError{Endpoint: HealthPath, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// post sends an unauthenticated JSON request and maps non-2xx to *StatusError
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (*Response, error) {
	body, err := encodeBody(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodPost, endpoint, body, nil, "")
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

func (c *Client) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// send performs one HTTP exchange and buffers the response
func (c *Client) send(ctx context.Context, method, endpoint string, body []byte, header http.Header, token string) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	requestID := observability.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s %s: %v", ErrNetwork, method, endpoint, err)
	}

	c.logger.ForContext(ctx).WithFields(map[string]interface{}{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
	}).Debug("auth service exchange")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
