package backend

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

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"sigmarservicos.com.br/sigmar-web/internal/domain"
)

const (
	defaultTimeout    = 8 * time.Second
	idempotencyHeader = "Idempotency-Key"
	instrumentation   = "sigmarservicos.com.br/sigmar-web/internal/backend"
)

// Backend endpoint paths, relative to the base URL.
const (
	ServicesPath     = "/api/services"
	TestimonialsPath = "/api/testimonials"
	ContactPath      = "/api/contact"
	HealthPath       = "/api/health"
)

// ErrUnexpectedStatus is wrapped by StatusError for any non-2xx response.
var ErrUnexpectedStatus = errors.New("backend: unexpected status")

// StatusError reports a non-success HTTP response from the backend.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("backend: %s %s status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap exposes ErrUnexpectedStatus for errors.Is checks.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Health mirrors the backend health payload.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Healthy reports whether the backend declared itself healthy.
func (h Health) Healthy() bool {
	return strings.EqualFold(strings.TrimSpace(h.Status), "healthy")
}

// Client talks to the services API: two read-only lists, the contact write and a health probe.
type Client struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
	requests metric.Int64Counter
	newKey   func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc, so its transport is shared but hc itself is never
// modified by other options.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the transport timeout applied to every call, regardless of where it
// appears relative to WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger used for debug-level request tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIdempotencyKeys overrides the generator used for Idempotency-Key headers.
func WithIdempotencyKeys(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewClient constructs a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(instrumentation),
		newKey:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.http
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = &hc

	counter, err := otel.Meter(instrumentation).Int64Counter(
		"sigmar.backend.requests",
		metric.WithDescription("Count of backend API calls by endpoint and outcome"),
	)
	if err != nil {
		c.logger.Warn("backend: unable to register request counter", zap.Error(err))
	}
	c.requests = counter
	return c
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Services fetches the services catalog in server order.
func (c *Client) Services(ctx context.Context) ([]domain.ServiceItem, error) {
	return getList[domain.ServiceItem](ctx, c, ServicesPath)
}

// Testimonials fetches the testimonials list in server order.
func (c *Client) Testimonials(ctx context.Context) ([]domain.Testimonial, error) {
	return getList[domain.Testimonial](ctx, c, TestimonialsPath)
}

// SubmitContact posts a contact inquiry. Any 2xx is success; the response body is ignored.
func (c *Client) SubmitContact(ctx context.Context, form domain.ContactForm) error {
	payload, err := json.Marshal(form)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, ContactPath, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (Health, error) {
	resp, err := c.do(ctx, http.MethodGet, HealthPath, nil)
	if err != nil {
		return Health{}, err
	}
	defer resp.Body.Close()
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("backend: decode health: %w", err)
	}
	return h, nil
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var items []T
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", path, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// do issues the request and returns the response only for 2xx statuses; callers close the body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (resp *http.Response, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		c.record(ctx, method, path, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("backend: build url: %w", err)
	}
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", endpoint),
	)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(idempotencyHeader, c.newKey())
	}

	started := time.Now()
	resp, err = c.http.Do(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       drainError(resp.Body),
		}
	}
	return resp, nil
}

func (c *Client) record(ctx context.Context, method, path string, err error) {
	if c.requests == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", path),
		attribute.String("outcome", outcome),
	))
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
