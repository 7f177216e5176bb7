package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
)

// RetryPolicy controls the retry behaviour for transient failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	// Statuses lists the response codes that are retried.
	Statuses []int
	RetryIf  func(resp *http.Response, err error) bool
}

// DefaultRetryPolicy retries three times on rate limiting and gateway errors.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
	Statuses: []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	},
}

// ErrBodyNotAllowed is returned for GET and DELETE requests that carry a body.
var ErrBodyNotAllowed = errors.New("GET and DELETE requests cannot include a request body")

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithRetryPolicy overrides the default retry configuration.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retryPolicy = policy
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client wraps http.Client providing retry and base URL utilities.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	headers     http.Header
	retryPolicy RetryPolicy
	logger      hclog.Logger
	metrics     *Metrics
}

// Request describes a single outbound request.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Header       http.Header
	DisableRetry bool
	Body         io.Reader
	GetBody      func() (io.ReadCloser, error)
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewClient creates a Client for the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpx: base URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}

	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:     make(http.Header),
		retryPolicy: DefaultRetryPolicy,
		logger:      hclog.NewNullLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retryPolicy.MaxRetries < 0 {
		c.retryPolicy.MaxRetries = 0
	}
	if c.retryPolicy.BaseDelay <= 0 {
		c.retryPolicy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if c.retryPolicy.MaxDelay <= 0 {
		c.retryPolicy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	if c.retryPolicy.Statuses == nil {
		c.retryPolicy.Statuses = DefaultRetryPolicy.Statuses
	}
	return c, nil
}

// Do executes the provided request and returns the fully read response. Non-2xx
// responses, and 2xx responses whose body reports "success": false, are
// returned as *apierror.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}
	if (req.Method == http.MethodGet || req.Method == http.MethodDelete) && (req.Body != nil || req.GetBody != nil) {
		return nil, apierror.Local(ErrBodyNotAllowed)
	}

	if req.GetBody == nil && req.Body != nil {
		// Buffer the body so it can be replayed on retries.
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpx: read request body: %w", err)
		}
		req.Body = nil
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		resp, err := c.roundTrip(ctx, req, fullURL)
		if err != nil {
			if c.shouldRetry(req, resp, err) {
				c.logger.Warn("request failed, retrying", "method", req.Method, "path", req.Path, "attempt", attempt, "error", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}

	return backoff.RetryWithData(operation, c.newBackOff(ctx, req))
}

func (c *Client) roundTrip(ctx context.Context, req *Request, fullURL string) (*Response, error) {
	body := io.ReadCloser(http.NoBody)
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		body = rc
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = cloneHeader(c.headers)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(req.Method, "error", time.Since(start))
		c.logger.Debug("request error", "method", req.Method, "path", req.Path, "error", err)
		return nil, err
	}
	data, err := ReadAllAndClose(resp.Body)
	c.metrics.observe(req.Method, strconv.Itoa(resp.StatusCode), time.Since(start))
	c.logger.Debug("request", "method", req.Method, "path", req.Path, "status", resp.StatusCode, "duration", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("httpx: read response body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: data}
	if err := apierror.Check(resp.StatusCode, data); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) newBackOff(ctx context.Context, req *Request) backoff.BackOff {
	if req.DisableRetry || c.retryPolicy.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryPolicy.BaseDelay
	exp.MaxInterval = c.retryPolicy.MaxDelay
	exp.RandomizationFactor = c.retryPolicy.Jitter
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.retryPolicy.MaxRetries)), ctx)
}

// retryable is implemented by errors that know whether they are transient.
type retryable interface {
	Retryable() bool
}

func (c *Client) shouldRetry(req *Request, resp *Response, err error) bool {
	if req.DisableRetry {
		return false
	}
	if c.retryPolicy.RetryIf != nil {
		var httpResp *http.Response
		if resp != nil {
			httpResp = &http.Response{StatusCode: resp.StatusCode, Header: resp.Header}
		}
		return c.retryPolicy.RetryIf(httpResp, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		for _, status := range c.retryPolicy.Statuses {
			if apiErr.StatusCode == status {
				return true
			}
		}
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	// Transport-level failure with no response.
	return resp == nil
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	path = strings.TrimPrefix(path, "/")
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if len(q) > 0 {
		ref.RawQuery = q.Encode()
	}
	full := c.baseURL.ResolveReference(ref)
	return full.String(), nil
}

// WithJSONBody serializes the supplied value into JSON and returns a reusable reader.
func WithJSONBody(v any) (io.Reader, string, error) {
	data, err := jsonMarshal(v)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer closeBody(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}

func jsonMarshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	return data, nil
}
