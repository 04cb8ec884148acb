// Package remote is the HTTP client of the customer store.
// Every operation returns a *Failure on error so callers can pass its code through.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/customerdir/internal/domain/customer"
	"github.com/erp/customerdir/internal/infrastructure/config"
	"github.com/erp/customerdir/internal/infrastructure/telemetry"
)

const customersPath = "/customers"

// Client talks to the customer store over HTTP
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	apiVersion  string
	headers     map[string]string
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      *zap.Logger
	mu          sync.RWMutex
}

// RetryConfig configures retry behavior. Only idempotent requests are retried.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader sets a header sent with every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// New creates a client from cfg
func New(cfg config.ClientConfig, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: cfg.Timeout,
		},
		baseURL:    baseURL,
		apiVersion: strings.Trim(cfg.APIVersion, "/"),
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "customerdir-client/1.0",
		},
		retryConfig: RetryConfig{
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryWait,
			MaxDelay:   5 * time.Second,
			Multiplier: 2.0,
		},
		logger: zap.NewNop(),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request is an HTTP request to the store
type Request struct {
	Method string
	Path   string
	Body   any
}

// Response is a raw store response
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Success reports whether the response has a 2xx status
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes req. The returned error is always a transport *Failure;
// non-2xx responses are returned as a Response for the caller to classify.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u := c.buildURL(req.Path)

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "remote "+req.Method,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", u.String()),
		),
	)
	defer span.End()

	retries := c.retryConfig.MaxRetries
	if req.Method == http.MethodPost {
		retries = 0
	}

	var (
		resp    *Response
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = transportFailure(ctx.Err())
				telemetry.RecordError(span, lastErr)
				return nil, lastErr
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		resp, lastErr = c.attempt(ctx, req.Method, u, body)
		if !shouldRetry(resp, lastErr) {
			break
		}
		c.logger.Debug("retrying store request",
			zap.String("method", req.Method),
			zap.String("url", u.String()),
			zap.Int("attempt", attempt+1),
		)
	}

	if lastErr != nil {
		telemetry.RecordError(span, lastErr)
		return nil, lastErr
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, method string, u *url.URL, body []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			f := transportFailure(err)
			f.Code = CodeConnAborted
			return nil, f
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, transportFailure(err)
	}
	c.setHeaders(httpReq)
	telemetry.InjectHTTP(ctx, httpReq.Header)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		f := transportFailure(err)
		c.logger.Warn("store request failed",
			zap.String("method", method),
			zap.String("url", u.String()),
			zap.String("code", f.Code),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, f
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, transportFailure(fmt.Errorf("reading response body: %w", err))
	}

	c.logger.Debug("store request completed",
		zap.String("method", method),
		zap.String("url", u.String()),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
	)
	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func shouldRetry(resp *Response, err error) bool {
	if err != nil {
		var f *Failure
		// a cancelled caller is never retried
		return !(errors.As(err, &f) && f.Code == CodeConnAborted)
	}
	return resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

// ListCustomers fetches every customer in store order
func (c *Client) ListCustomers(ctx context.Context) ([]customer.Record, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: customersPath})
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return nil, serverFailure(resp.StatusCode, resp.Body)
	}
	return decodeList(resp.StatusCode, resp.Body)
}

// GetCustomer fetches a single customer
func (c *Client) GetCustomer(ctx context.Context, id customer.ID) (customer.Record, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: customerPath(id)})
	if err != nil {
		return customer.Record{}, err
	}
	if !resp.Success() {
		return customer.Record{}, serverFailure(resp.StatusCode, resp.Body)
	}
	return decodeRecord(resp.StatusCode, resp.Body)
}

// CreateCustomer registers a new customer
func (c *Client) CreateCustomer(ctx context.Context, candidate customer.Candidate) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: customersPath, Body: candidate})
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// UpdateCustomer sends the non-zero fields of candidate as a partial update
func (c *Client) UpdateCustomer(ctx context.Context, id customer.ID, candidate customer.Candidate) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodPut, Path: customerPath(id), Body: toUpdateBody(candidate)})
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// DeleteCustomer removes a customer
func (c *Client) DeleteCustomer(ctx context.Context, id customer.ID) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: customerPath(id)})
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// checkStatus classifies a response whose body is not needed
func checkStatus(resp *Response) error {
	if !resp.Success() {
		return serverFailure(resp.StatusCode, resp.Body)
	}
	return nil
}

type updateBody struct {
	Name   string          `json:"name,omitempty"`
	Email  string          `json:"email,omitempty"`
	Age    int             `json:"age,omitempty"`
	Gender customer.Gender `json:"gender,omitempty"`
}

func toUpdateBody(c customer.Candidate) updateBody {
	return updateBody(c)
}

func customerPath(id customer.ID) string {
	return customersPath + "/" + id.String()
}

// buildURL resolves path below /api/<version>
func (c *Client) buildURL(path string) *url.URL {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.apiVersion != "" {
		path = "/api/" + c.apiVersion + path
	}
	return c.baseURL.JoinPath(path)
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

// SetHeader sets a default header for all requests
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// calculateBackoff returns the delay before the given retry attempt, with ±25% jitter
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	return time.Duration(delay)
}
