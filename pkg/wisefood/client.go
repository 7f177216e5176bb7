package wisefood

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"github.com/wisefood/wisefood_sdk_go/internal/httpx"
	"github.com/wisefood/wisefood_sdk_go/internal/wfapi"
	"github.com/wisefood/wisefood_sdk_go/pkg/apierror"
	"github.com/wisefood/wisefood_sdk_go/pkg/articles"
	"github.com/wisefood/wisefood_sdk_go/pkg/auth"
	"github.com/wisefood/wisefood_sdk_go/pkg/entity"
	"github.com/wisefood/wisefood_sdk_go/pkg/fctables"
	"github.com/wisefood/wisefood_sdk_go/pkg/households"
)

const (
	pingPath  = "system/ping"
	userAgent = "wisefood-sdk-go"
)

// RetryPolicy controls how transient failures are retried.
type RetryPolicy = httpx.RetryPolicy

// DefaultRetryPolicy retries three times on 429, 500, 502, 503 and 504.
var DefaultRetryPolicy = httpx.DefaultRetryPolicy

type options struct {
	logger     hclog.Logger
	metrics    *httpx.Metrics
	base       http.RoundTripper
	retry      *RetryPolicy
	entityOpts []entity.Option
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the SDK logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegisterer records request metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = httpx.NewMetrics(reg) }
}

// WithHTTPClient uses the transport of h for every request, or
// http.DefaultTransport when h has none. Timeouts still come from Config.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) {
		if h == nil {
			return
		}
		o.base = h.Transport
		if o.base == nil {
			o.base = http.DefaultTransport
		}
	}
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = &p }
}

// WithEntityOptions passes options to every collection the client builds,
// for example entity.WithSync(false) or entity.WithPageSize(50).
func WithEntityOptions(opts ...entity.Option) Option {
	return func(o *options) { o.entityOpts = append(o.entityOpts, opts...) }
}

// Client is an authenticated connection to the API. It implements
// entity.Transport. Like the proxies it hands out, it is meant for use by
// one goroutine at a time.
type Client struct {
	http   *httpx.Client
	logger hclog.Logger

	Articles   *articles.Collection
	FCTables   *fctables.Collection
	Households *households.Households
	Members    *households.Members
}

// New validates cfg and logs in. The token is refreshed transparently when
// it expires.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{logger: hclog.NewNullLogger(), base: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	common := []httpx.Option{
		httpx.WithLogger(o.logger.Named("http")),
		httpx.WithMetrics(o.metrics),
		httpx.WithHeaders(http.Header{"User-Agent": {userAgent}}),
	}
	if o.retry != nil {
		common = append(common, httpx.WithRetryPolicy(*o.retry))
	}
	timeout := cfg.timeout()

	login, err := httpx.NewClient(cfg.endpoint(), append(common,
		httpx.WithHTTPClient(&http.Client{Timeout: timeout, Transport: o.base}))...)
	if err != nil {
		return nil, fmt.Errorf("wisefood: %w", err)
	}
	ts, err := auth.NewTokenSource(login, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("wisefood: %w", err)
	}
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("wisefood: authenticate: %w", err)
	}

	api, err := httpx.NewClient(cfg.endpoint(), append(common,
		httpx.WithHTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts, Base: o.base},
		}))...)
	if err != nil {
		return nil, fmt.Errorf("wisefood: %w", err)
	}

	c := &Client{http: api, logger: o.logger}
	eo := append([]entity.Option{entity.WithLogger(o.logger)}, o.entityOpts...)
	c.Articles = articles.NewCollection(c, eo...)
	c.FCTables = fctables.NewCollection(c, eo...)
	c.Households = households.NewHouseholds(c, eo...)
	c.Members = households.NewMembers(c, eo...)
	c.logger.Debug("client ready", "endpoint", cfg.endpoint())
	return c, nil
}

// Ping checks connectivity and returns the service status document.
func (c *Client) Ping(ctx context.Context) (map[string]any, error) {
	body, err := c.Get(ctx, pingPath, nil)
	if err != nil {
		return nil, err
	}
	return wfapi.DecodeObject(body)
}

// Get issues a GET relative to the API prefix.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, path, nil, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, query, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	req := &httpx.Request{Method: method, Path: path, Query: query}
	if body != nil {
		rdr, contentType, err := httpx.WithJSONBody(body)
		if err != nil {
			return nil, apierror.Local(fmt.Errorf("wisefood: encode request body: %w", err))
		}
		req.Body = rdr
		req.Header = http.Header{"Content-Type": []string{contentType}}
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
