// Package http provides a reusable HTTP client with circuit breaking and telemetry
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cartsync/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

// APIError represents an API error response
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Signer is an interface for signing requests
type Signer interface {
	SignRequest(req *http.Request) error
}

// RequestIDSigner stamps every request with a fresh uuid unless one is set
type RequestIDSigner struct{}

func (RequestIDSigner) SignRequest(req *http.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return nil
}

// RequestOption mutates a single outgoing request
type RequestOption func(req *http.Request)

// WithBearer authenticates the request with a bearer token
func WithBearer(token string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithHeader sets an arbitrary header on the request
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// Config tunes the client. A zero BreakerFailures disables the circuit breaker.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint
	BreakerWindow   uint
	BreakerDelay    time.Duration
}

// Client is a wrapper around http.Client with resilience. Requests are
// attempted exactly once; the breaker only short-circuits calls while open.
type Client struct {
	client   *http.Client
	baseURL  string
	signer   Signer
	breaker  circuitbreaker.CircuitBreaker[*http.Response]
	pipeline failsafe.Executor[*http.Response]

	// OTel
	tracer      trace.Tracer
	reqCounter  metric.Int64Counter
	errCounter  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

// NewClient creates a new HTTP client
func NewClient(cfg Config, signer Signer) *Client {
	if signer == nil {
		signer = RequestIDSigner{}
	}

	c := &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		signer:  signer,
	}

	if cfg.BreakerFailures > 0 {
		window := cfg.BreakerWindow
		if window < cfg.BreakerFailures {
			window = cfg.BreakerFailures
		}
		delay := cfg.BreakerDelay
		if delay <= 0 {
			delay = 10 * time.Second
		}
		c.breaker = circuitbreaker.NewBuilder[*http.Response]().
			HandleIf(func(resp *http.Response, err error) bool {
				// Open circuit on transport errors and 5xx responses
				if err != nil {
					return true
				}
				return resp.StatusCode >= 500
			}).
			WithFailureThresholdRatio(cfg.BreakerFailures, window).
			WithDelay(delay).
			Build()
		c.pipeline = failsafe.With[*http.Response](c.breaker)
	}

	tracer := telemetry.GetTracer("http-client")
	meter := telemetry.GetMeter("http-client")

	c.tracer = tracer
	c.reqCounter, _ = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	c.errCounter, _ = meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of HTTP errors"))
	c.latencyHist, _ = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"))

	return c
}

// BaseURL returns the root every request path is appended to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerOpen reports whether the circuit breaker currently rejects calls
func (c *Client) BreakerOpen() bool {
	return c.breaker != nil && c.breaker.IsOpen()
}

// Get sends a GET request
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, opts)
}

// Post sends a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...RequestOption) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, opts)
}

func (c *Client) do(req *http.Request, opts []RequestOption) ([]byte, error) {
	start := time.Now()
	ctx := req.Context()

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	if err := c.signer.SignRequest(req); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	var (
		resp *http.Response
		err  error
	)
	if c.pipeline != nil {
		resp, err = c.pipeline.GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
			return c.client.Do(req)
		})
	} else {
		resp, err = c.client.Do(req)
	}
	telemetry.GetGlobalMetrics().SetCircuitBreakerOpen(c.BreakerOpen())

	attrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.URL.Path),
	)
	c.reqCounter.Add(ctx, 1, attrs)
	c.latencyHist.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		span.RecordError(err)
		c.errCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("path", req.URL.Path),
			attribute.String("error", "transport"),
		))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.errCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("path", req.URL.Path),
			attribute.Int("status", resp.StatusCode),
		))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	return body, nil
}
