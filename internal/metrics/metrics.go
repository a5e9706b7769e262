// Package metrics holds the Prometheus collectors shared by the API
// client, the socket manager, the router and the component runtime.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "synthdesk").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "synthdesk",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	dedupJoins       prometheus.Counter
	tokenRefreshes   *prometheus.CounterVec
	socketReconnects prometheus.Counter
	socketMessages   *prometheus.CounterVec
	socketTimeouts   prometheus.Counter
	socketConnected  prometheus.Gauge
	navigations      *prometheus.CounterVec
	renders          *prometheus.CounterVec
}

// New registers the collectors and returns them.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counterOpts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Metrics{
		httpRequests: factory.NewCounterVec(
			counterOpts("http_requests_total", "API requests sent, by method and status"),
			[]string{"method", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "API request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		cacheLookups: factory.NewCounterVec(
			counterOpts("http_cache_lookups_total", "GET cache lookups, by result"),
			[]string{"result"}),

		dedupJoins: factory.NewCounter(
			counterOpts("http_dedup_joins_total", "Requests that joined an identical in-flight request")),

		tokenRefreshes: factory.NewCounterVec(
			counterOpts("token_refreshes_total", "Silent token refresh attempts, by outcome"),
			[]string{"outcome"}),

		socketReconnects: factory.NewCounter(
			counterOpts("socket_reconnects_total", "Socket reconnection attempts")),

		socketMessages: factory.NewCounterVec(
			counterOpts("socket_messages_total", "Socket messages, by direction and type"),
			[]string{"direction", "type"}),

		socketTimeouts: factory.NewCounter(
			counterOpts("socket_request_timeouts_total", "Socket requests that timed out")),

		socketConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "socket_connected",
			Help:        "1 while the socket is connected",
			ConstLabels: config.ConstLabels,
		}),

		navigations: factory.NewCounterVec(
			counterOpts("navigations_total", "Router navigations, by outcome"),
			[]string{"outcome"}),

		renders: factory.NewCounterVec(
			counterOpts("renders_total", "Component renders, by status"),
			[]string{"status"}),
	}
}

// Discard returns collectors registered on a private registry.
// Useful in tests and for components constructed without metrics.
func Discard() *Metrics {
	return New(WithRegistry(prometheus.NewRegistry()))
}

// ObserveRequest records one completed API request. Status 0 means no
// response was received.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := strconv.Itoa(status)
	if status == 0 {
		label = "network_error"
	}
	m.httpRequests.WithLabelValues(method, label).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// CacheLookup records a GET cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// DedupJoin records a request served by another in-flight call.
func (m *Metrics) DedupJoin() {
	if m == nil {
		return
	}
	m.dedupJoins.Inc()
}

// TokenRefresh records a refresh attempt.
func (m *Metrics) TokenRefresh(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.tokenRefreshes.WithLabelValues("success").Inc()
	} else {
		m.tokenRefreshes.WithLabelValues("failure").Inc()
	}
}

// SocketReconnect records one scheduled reconnection attempt.
func (m *Metrics) SocketReconnect() {
	if m == nil {
		return
	}
	m.socketReconnects.Inc()
}

// SocketMessage records an inbound ("in") or outbound ("out") message.
func (m *Metrics) SocketMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.socketMessages.WithLabelValues(direction, msgType).Inc()
}

// SocketTimeout records a request that timed out.
func (m *Metrics) SocketTimeout() {
	if m == nil {
		return
	}
	m.socketTimeouts.Inc()
}

// SocketConnected sets the connection gauge.
func (m *Metrics) SocketConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.socketConnected.Set(1)
	} else {
		m.socketConnected.Set(0)
	}
}

// Navigation records a router navigation outcome
// (committed, aborted, blocked, not_found, error).
func (m *Metrics) Navigation(outcome string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(outcome).Inc()
}

// Render records a component render.
func (m *Metrics) Render(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.renders.WithLabelValues("error").Inc()
	} else {
		m.renders.WithLabelValues("ok").Inc()
	}
}
