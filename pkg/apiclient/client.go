// Package apiclient is the dashboard's REST client.
//
// Every verb funnels into Request, which layers, from the outside in: a
// TTL cache for GETs, de-duplication of identical in-flight requests,
// bearer authentication with one silent refresh on 401, and one retry on
// network failure.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/internal/metrics"
	"github.com/vango-dev/synthdesk/pkg/storage"
)

const tracerName = "github.com/vango-dev/synthdesk/pkg/apiclient"

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithStore sets where tokens are read from and written to.
func WithStore(s storage.Store) Option {
	return func(c *Client) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records requests, cache lookups and refreshes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer sets the tracer for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithCacheTTL sets how long GET responses are served from cache.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithRefreshEndpoint sets the endpoint that exchanges a refresh token.
func WithRefreshEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.refreshEndpoint = endpoint
	}
}

// WithEndpoints sets named endpoint templates for EndpointFor. They
// replace the built-in templates of the same name.
func WithEndpoints(endpoints map[string]string) Option {
	return func(c *Client) {
		for name, template := range endpoints {
			c.endpoints[name] = template
		}
	}
}

// WithClock sets the time source for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the platform API.
type Client struct {
	baseURL         string
	http            *http.Client
	store           storage.Store
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
	cacheTTL        time.Duration
	refreshEndpoint string
	endpoints       map[string]string
	now             func() time.Time

	cache   *responseCache
	flights singleflight.Group

	// refreshMu serializes token refreshes so concurrent 401s share one.
	refreshMu sync.Mutex
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: config.DefaultAPITimeout},
		store:           storage.NewMemory(),
		logger:          slog.Default().With("component", "api"),
		tracer:          otel.Tracer(tracerName),
		cacheTTL:        config.DefaultCacheTTL,
		refreshEndpoint: config.DefaultRefreshEndpoint,
		endpoints:       config.DefaultEndpoints(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = newResponseCache(c.now)
	return c
}

// NewFromConfig creates a client from the api section of the config.
func NewFromConfig(cfg config.APIConfig, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithCacheTTL(cfg.CacheTTL),
		WithRefreshEndpoint(cfg.RefreshEndpoint),
		WithEndpoints(cfg.Endpoints),
	}
	return New(cfg.BaseURL, append(base, opts...)...)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Store returns the token store.
func (c *Client) Store() storage.Store { return c.store }

// RequestOptions configures one request.
type RequestOptions struct {
	Headers http.Header
	Query   url.Values
	NoCache bool
	NoRetry bool
}

// RequestOption configures one request.
type RequestOption func(*RequestOptions)

// NoCache skips the response cache for this request.
func NoCache() RequestOption {
	return func(o *RequestOptions) { o.NoCache = true }
}

// NoRetry disables the network-failure retry.
func NoRetry() RequestOption {
	return func(o *RequestOptions) { o.NoRetry = true }
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(http.Header)
		}
		o.Headers.Add(key, value)
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(o *RequestOptions) {
		if o.Query == nil {
			o.Query = make(url.Values)
		}
		o.Query.Add(key, value)
	}
}

// Get fetches endpoint. Responses are cached for the cache TTL.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodGet, endpoint, nil, opts...)
}

// Post sends data as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, data any, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPost, endpoint, data, opts...)
}

// Put sends data as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, data any, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPut, endpoint, data, opts...)
}

// Patch sends data as JSON.
func (c *Client) Patch(ctx context.Context, endpoint string, data any, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPatch, endpoint, data, opts...)
}

// Delete removes the resource at endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, nil, opts...)
}

// Request performs one logical request and returns the parsed payload:
// decoded JSON, a string for text, or []byte for binary bodies. Failures
// are *HTTPError for statuses >= 400 and *errors.Error otherwise.
func (c *Client) Request(ctx context.Context, method, endpoint string, data any, opts ...RequestOption) (any, error) {
	var o RequestOptions
	for _, opt := range opts {
		opt(&o)
	}

	fullURL, err := c.resolve(endpoint, o.Query)
	if err != nil {
		return nil, err
	}
	body, contentType, err := encodeBody(data)
	if err != nil {
		return nil, errors.New("E220").WithDetail("request body could not be encoded").Wrap(err)
	}

	cacheable := method == http.MethodGet && !o.NoCache && c.cacheTTL > 0
	if cacheable {
		if v, ok := c.cache.get(fullURL); ok {
			c.metrics.CacheLookup(true)
			return v, nil
		}
		c.metrics.CacheLookup(false)
	}

	key := method + " " + fullURL
	if len(body) > 0 {
		key += "\n" + string(body)
	}
	// The shared call is detached from the caller that started it; every
	// caller, the first included, stops waiting when its own ctx ends.
	ch := c.flights.DoChan(key, func() (any, error) {
		v, err := c.do(context.WithoutCancel(ctx), method, fullURL, body, contentType, o)
		if err == nil && cacheable {
			c.cache.set(fullURL, v, c.cacheTTL)
		}
		return v, err
	})
	select {
	case <-ctx.Done():
		return nil, errors.New("E101").WithDetail(method + " " + fullURL).Wrap(ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.metrics.DedupJoin()
		}
		return res.Val, res.Err
	}
}

// do runs the auth and retry layers around one network round trip.
func (c *Client) do(ctx context.Context, method, fullURL string, body []byte, contentType string, o RequestOptions) (any, error) {
	ctx, span := c.tracer.Start(ctx, "api.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", fullURL),
		),
	)
	defer span.End()

	v, err := c.authorized(ctx, method, fullURL, body, contentType, o)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var herr *HTTPError
		if stderrors.As(err, &herr) {
			span.SetAttributes(attribute.Int("http.status_code", herr.Status))
		}
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return v, nil
}

func (c *Client) authorized(ctx context.Context, method, fullURL string, body []byte, contentType string, o RequestOptions) (any, error) {
	tokens, err := storage.LoadTokens(ctx, c.store)
	if err != nil {
		c.logger.Warn("token store unreadable", "error", err)
	}

	v, err := c.withRetry(ctx, method, fullURL, body, contentType, tokens.Access, o)
	var herr *HTTPError
	if !stderrors.As(err, &herr) || herr.Status != http.StatusUnauthorized {
		return v, err
	}

	access, ok := c.refresh(ctx, tokens.Access)
	if !ok {
		return nil, errors.New("E102").Wrap(herr)
	}
	v, err = c.withRetry(ctx, method, fullURL, body, contentType, access, o)
	if stderrors.As(err, &herr) && herr.Status == http.StatusUnauthorized {
		return nil, errors.New("E102").Wrap(herr)
	}
	return v, err
}

// withRetry retries a network failure once. HTTP error statuses are
// never retried here.
func (c *Client) withRetry(ctx context.Context, method, fullURL string, body []byte, contentType, token string, o RequestOptions) (any, error) {
	v, err := c.roundTrip(ctx, method, fullURL, body, contentType, token, o.Headers)
	if err == nil || o.NoRetry || !isNetworkError(err) || ctx.Err() != nil {
		return v, err
	}
	c.logger.Debug("retrying after network failure", "method", method, "url", fullURL, "error", err)
	return c.roundTrip(ctx, method, fullURL, body, contentType, token, o.Headers)
}

func (c *Client) roundTrip(ctx context.Context, method, fullURL string, body []byte, contentType, token string, headers http.Header) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, errors.New("E220").WithDetail("invalid request " + method + " " + fullURL).Wrap(err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, c.now().Sub(start))
		return nil, errors.New("E101").WithDetail(method + " " + fullURL).Wrap(err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(method, resp.StatusCode, c.now().Sub(start))

	payload, perr := parseBody(resp)
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			Status: resp.StatusCode,
			Method: method,
			URL:    fullURL,
			Body:   payload,
		}
	}
	if perr != nil {
		return nil, perr
	}
	return payload, nil
}

// resolve joins endpoint to the base URL unless it is already absolute,
// then merges extra query values.
func (c *Client) resolve(endpoint string, query url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		raw = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("E220").WithDetail("invalid endpoint " + endpoint).Wrap(err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(data any) ([]byte, string, error) {
	switch v := data.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain; charset=utf-8", nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return raw, "application/json", nil
	}
}

// InvalidateCache drops cached responses whose URL starts with the
// resolved endpoint prefix.
func (c *Client) InvalidateCache(prefix string) int {
	full, err := c.resolve(prefix, nil)
	if err != nil {
		return 0
	}
	return c.cache.invalidate(full)
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.cache.clear()
}

// isNetworkError reports whether no response was received.
func isNetworkError(err error) bool {
	var e *errors.Error
	return stderrors.As(err, &e) && e.Code == "E101"
}
