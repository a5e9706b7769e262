package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/internal/metrics"
)

const tracerName = "github.com/vango-dev/synthdesk/pkg/router"

// State is the router's position in a navigation.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Meta is static route metadata.
type Meta struct {
	Title         string
	RequiresAuth  bool
	RequiresAdmin bool
	Extra         map[string]string
}

// Route is a registered route entry. It is immutable once added.
type Route struct {
	Pattern   string
	Component string
	Meta      Meta

	matcher *matcher
}

// Match is the result of resolving one path. A Match with NotFound set
// and a nil Route means no route and no fallback matched.
type Match struct {
	Route    *Route
	Path     string
	Params   map[string]string
	Query    map[string]string
	NotFound bool
}

// URL returns the matched path with its query re-encoded.
func (m *Match) URL() string {
	if m == nil {
		return ""
	}
	if len(m.Query) == 0 {
		return m.Path
	}
	u, err := BuildURL("/", nil, m.Query)
	if err != nil {
		return m.Path
	}
	return m.Path + strings.TrimPrefix(u, "/")
}

// Component returns the matched component name, or "".
func (m *Match) Component() string {
	if m == nil || m.Route == nil {
		return ""
	}
	return m.Route.Component
}

// Interceptor runs before a programmatic navigation resolves. Returning
// false or an error aborts it.
type Interceptor func(ctx context.Context, from *Match, to string) (bool, error)

// GuardFunc runs after matching and before commit. Returning false keeps
// the router on its previous match.
type GuardFunc func(ctx context.Context, from, to *Match) bool

// ChangeFunc is called after a navigation commits.
type ChangeFunc func(ctx context.Context, prev, next *Match)

// NavigateOptions configures one navigation.
type NavigateOptions struct {
	// Replace overwrites the current history entry instead of pushing.
	Replace bool

	// SkipHistory leaves history untouched.
	SkipHistory bool
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records navigation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithHistory replaces the in-memory history.
func WithHistory(h History) Option {
	return func(r *Router) {
		if h != nil {
			r.history = h
		}
	}
}

// WithTracer sets the tracer used for navigation spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

// Router resolves paths to routes and runs the navigation pipeline.
type Router struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	history History
	tracer  trace.Tracer

	mu           sync.RWMutex
	routes       []*Route
	interceptors []Interceptor
	guards       []GuardFunc
	listeners    []ChangeFunc
	notFound     string
	current      *Match
	state        State
	seq          uint64
}

// New creates a router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		logger:  slog.Default().With("component", "router"),
		history: NewMemoryHistory(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddRoute registers pattern for component. Routes are tried in the
// order they are added.
func (r *Router) AddRoute(pattern, component string, meta Meta) error {
	if pattern == "" || component == "" {
		return errors.New("E210").WithDetail("route needs both a pattern and a component name")
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return errors.New("E210").Wrap(err)
	}
	if meta.Title == "" {
		meta.Title = cases.Title(language.English).String(strings.NewReplacer("-", " ", "_", " ").Replace(component))
	}

	r.mu.Lock()
	r.routes = append(r.routes, &Route{Pattern: pattern, Component: component, Meta: meta, matcher: m})
	r.mu.Unlock()
	return nil
}

// Routes returns the registered routes in match order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		out[i] = *route
	}
	return out
}

// SetNotFound sets the path resolved when nothing else matches.
func (r *Router) SetNotFound(path string) {
	r.mu.Lock()
	r.notFound = path
	r.mu.Unlock()
}

// BeforeNavigate adds an interceptor.
func (r *Router) BeforeNavigate(fn Interceptor) {
	r.mu.Lock()
	r.interceptors = append(r.interceptors, fn)
	r.mu.Unlock()
}

// Guard adds a guard.
func (r *Router) Guard(fn GuardFunc) {
	r.mu.Lock()
	r.guards = append(r.guards, fn)
	r.mu.Unlock()
}

// OnChange adds a commit callback.
func (r *Router) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Current returns the committed match, or nil before the first
// navigation.
func (r *Router) Current() *Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// State returns the navigation state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// History returns the router's history.
func (r *Router) History() History {
	return r.history
}

// FindRoute returns the first route matching path, in registration order.
func (r *Router) FindRoute(path string) (*Match, bool) {
	canonical, query, err := Canonicalize(path)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	routes := r.routes
	r.mu.RUnlock()

	for _, route := range routes {
		params, ok, err := route.matcher.match(canonical)
		if !ok {
			continue
		}
		if err != nil {
			r.logger.Warn("route parameter rejected", "path", canonical, "pattern", route.Pattern, "error", err)
			return nil, false
		}
		return &Match{
			Route:  route,
			Path:   canonical,
			Params: params,
			Query:  ParseQuery(query),
		}, true
	}
	return nil, false
}

// Navigate runs interceptors, resolves path, runs guards, writes history
// and commits. It reports whether the navigation committed. Interceptor
// and guard rejections are logged, not returned; only an invalid path is
// an error.
func (r *Router) Navigate(ctx context.Context, path string, opts NavigateOptions) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "router.navigate",
		trace.WithAttributes(attribute.String("router.path", path)),
	)
	defer span.End()

	target, err := ValidateNavPath(path)
	if err != nil {
		nerr := errors.New("E211").WithDetail(path).Wrap(err)
		span.RecordError(nerr)
		span.SetStatus(codes.Error, nerr.Error())
		r.metrics.Navigation("invalid")
		return false, nerr
	}

	seq := r.begin()
	from := r.Current()

	r.mu.RLock()
	interceptors := append([]Interceptor(nil), r.interceptors...)
	r.mu.RUnlock()

	for i, fn := range interceptors {
		ok, err := fn(ctx, from, target)
		if err != nil {
			r.logger.Warn("navigation interceptor failed", "path", target, "interceptor", i, "error", err)
			ok = false
		}
		if !ok {
			r.abort(span, target, "intercepted")
			return false, nil
		}
	}

	match := r.resolve(target)
	if !r.runGuards(ctx, from, match) {
		r.abort(span, target, "blocked")
		return false, nil
	}

	if !r.commit(ctx, span, seq, from, match, func() {
		switch {
		case opts.SkipHistory:
		case opts.Replace:
			r.history.Replace(target)
		default:
			r.history.Push(target)
		}
	}) {
		return false, nil
	}
	return true, nil
}

// Back moves one entry back in history. Guards run; interceptors do not.
func (r *Router) Back(ctx context.Context) (bool, error) {
	return r.traverse(ctx, -1)
}

// Forward moves one entry forward in history. Guards run; interceptors
// do not.
func (r *Router) Forward(ctx context.Context) (bool, error) {
	return r.traverse(ctx, 1)
}

func (r *Router) traverse(ctx context.Context, delta int) (bool, error) {
	target, ok := r.history.Peek(delta)
	if !ok {
		return false, nil
	}

	ctx, span := r.tracer.Start(ctx, "router.popstate",
		trace.WithAttributes(
			attribute.String("router.path", target),
			attribute.Int("router.delta", delta),
		),
	)
	defer span.End()

	seq := r.begin()
	from := r.Current()
	match := r.resolve(target)
	if !r.runGuards(ctx, from, match) {
		r.abort(span, target, "blocked")
		return false, nil
	}
	return r.commit(ctx, span, seq, from, match, func() { r.history.Go(delta) }), nil
}

func (r *Router) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.state = StateResolving
	return r.seq
}

// resolve matches target, falling back to the not-found route and then to
// a bare not-found match.
func (r *Router) resolve(target string) *Match {
	if m, ok := r.FindRoute(target); ok {
		return m
	}

	path, query, _ := Canonicalize(target)
	r.mu.RLock()
	notFound := r.notFound
	r.mu.RUnlock()

	if notFound != "" && notFound != path {
		if m, ok := r.FindRoute(notFound); ok {
			m.Path = path
			m.Query = ParseQuery(query)
			m.NotFound = true
			return m
		}
	}
	return &Match{Path: path, Params: map[string]string{}, Query: ParseQuery(query), NotFound: true}
}

func (r *Router) runGuards(ctx context.Context, from, to *Match) bool {
	r.mu.RLock()
	guards := append([]GuardFunc(nil), r.guards...)
	r.mu.RUnlock()

	for i, guard := range guards {
		if !guard(ctx, from, to) {
			r.logger.Info("navigation blocked by guard", "path", to.Path, "guard", i)
			return false
		}
	}
	return true
}

func (r *Router) abort(span trace.Span, target, outcome string) {
	r.mu.Lock()
	r.state = StateIdle
	r.mu.Unlock()

	span.SetAttributes(attribute.String("router.outcome", outcome))
	r.metrics.Navigation(outcome)
	r.logger.Debug("navigation cancelled", "path", target, "outcome", outcome)
}

// commit installs next unless a newer navigation started meanwhile, then
// fires the change callbacks.
func (r *Router) commit(ctx context.Context, span trace.Span, seq uint64, prev, next *Match, writeHistory func()) bool {
	r.mu.Lock()
	if r.seq != seq {
		r.mu.Unlock()
		span.SetAttributes(attribute.String("router.outcome", "superseded"))
		r.metrics.Navigation("superseded")
		return false
	}
	writeHistory()
	r.current = next
	r.state = StateCommitted
	listeners := append([]ChangeFunc(nil), r.listeners...)
	r.mu.Unlock()

	outcome := "committed"
	if next.NotFound {
		outcome = "not_found"
	}
	span.SetAttributes(
		attribute.String("router.outcome", outcome),
		attribute.String("router.component", next.Component()),
	)
	r.metrics.Navigation(outcome)
	r.logger.Debug("navigation committed", "path", next.Path, "component", next.Component())

	for _, fn := range listeners {
		fn(ctx, prev, next)
	}

	r.mu.Lock()
	if r.seq == seq {
		r.state = StateIdle
	}
	r.mu.Unlock()
	return true
}
