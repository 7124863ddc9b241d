package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
	"github.com/virail/studio/internal/platform/middleware"
)

const (
	userAgent = "VirailStudioCLI/1.0"

	// Limit response bodies to 10 MB to prevent memory exhaustion from
	// extremely large or infinite responses.
	maxResponseBody = 10 << 20
	maxUploadSize   = 25 << 20
)

var (
	// ErrInvalidInput is returned before any request is sent when arguments
	// fail validation.
	ErrInvalidInput = errors.New("studio: invalid input")

	errInvalidBaseURL = errors.New("studio: base URL must be an absolute http(s) URL")
	errUploadTooLarge = errors.New("studio: upload too large")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means the call is sent anonymously.
type TokenSource interface {
	Token() string
}

// Client talks to the Virail Studio backend API.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tokens  TokenSource
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped with request-ID propagation and logging.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRateLimit caps outgoing calls at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithTimeout bounds each request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a Client for the backend at baseURL. By default it uses a
// 60s timeout, a cookie jar scoped by the public suffix list, 5 requests per
// second, and a circuit breaker that opens after 5 consecutive backend failures.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", errInvalidBaseURL, baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("studio: cookie jar: %w", err)
	}

	c := &Client{
		baseURL: u,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Jar:     jar,
			Transport: &http.Transport{
				MaxConnsPerHost:     10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	next := c.client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	wrapped := *c.client
	wrapped.Transport = middleware.PropagateRequestID(middleware.LogRoundTrips(c.logger, next))
	if c.timeout > 0 {
		wrapped.Timeout = c.timeout
	}
	c.client = &wrapped

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "studio-api",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return c, nil
}

// isBreakerSuccess counts client-side (4xx) failures as successes: they say
// nothing about backend health.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *errs.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500
	}
	return errors.Is(err, context.Canceled)
}

// limitedReadCloser reads from a LimitReader but closes the original body.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload any) (request, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return request{}, fmt.Errorf("studio: encode %s %s: %w", method, path, err)
	}
	return request{method: method, path: path, body: &buf, contentType: "application/json"}, nil
}

// do sends req and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.send(ctx, req, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &errs.APIError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Studio API unavailable, backing off",
			Cause:      err,
		}
	}
	return err
}

func (c *Client) send(ctx context.Context, req request, out any) error {
	target := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), req.body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	body := &limitedReadCloser{
		Reader: io.LimitReader(resp.Body, maxResponseBody),
		Closer: resp.Body,
	}
	defer func() { _ = body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, body)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("studio: decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// decodeAPIError reads the backend's error body. Bodies that are not the
// expected JSON shape fall back to the status text.
func decodeAPIError(status int, body io.Reader) error {
	apiErr := &errs.APIError{StatusCode: status}

	raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	var payload model.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && (payload.Message != "" || payload.Error != "") {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 200 {
		apiErr.Message = text
	} else {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
