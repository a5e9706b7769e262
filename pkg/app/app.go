// Package app wires the dashboard together.
//
// An App owns one of each service: storage, the API client, the socket
// manager, the router, the component loader, the binding system, the
// notification center and the session. It is created once and handed to
// every page as its pages.Env.
//
//	a, err := app.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	if err := a.Start(ctx); err != nil {
//	    return err
//	}
//	a.Navigate(ctx, "/dashboard")
package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/internal/metrics"
	"github.com/vango-dev/synthdesk/pkg/apiclient"
	"github.com/vango-dev/synthdesk/pkg/auth"
	"github.com/vango-dev/synthdesk/pkg/binding"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/dom"
	"github.com/vango-dev/synthdesk/pkg/pages"
	"github.com/vango-dev/synthdesk/pkg/render"
	"github.com/vango-dev/synthdesk/pkg/router"
	"github.com/vango-dev/synthdesk/pkg/storage"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/vdom"
	"github.com/vango-dev/synthdesk/pkg/wsclient"
)

// Option configures an App.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	store      storage.Store
	httpClient *http.Client
	dialer     *websocket.Dialer
	scheduler  binding.FrameScheduler
	history    router.History
}

// WithLogger sets the root logger. Services log through children of it.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records every service on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStore replaces the store named by the storage section.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithHTTPClient sets the API client's transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithDialer sets the socket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFrameScheduler sets the binding flush scheduler.
func WithFrameScheduler(fs binding.FrameScheduler) Option {
	return func(o *options) { o.scheduler = fs }
}

// WithHistory sets the router history.
func WithHistory(h router.History) Option {
	return func(o *options) { o.history = h }
}

// App is the application context.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	store    storage.Store
	api      *apiclient.Client
	socket   *wsclient.Manager
	router   *router.Router
	loader   *component.Loader
	bindings *binding.System
	toasts   *toast.Center
	session  *auth.Session

	root    *dom.Container
	banners *component.Instance

	// pageMu serializes page swaps.
	pageMu sync.Mutex
	page   *component.Instance

	mu      sync.Mutex
	started bool
	closed  bool
	cancels []func()
}

// New builds every service from cfg. Nothing touches the network until
// Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := o.store
	if store == nil {
		s, err := storage.Open(cfg.Storage)
		if err != nil {
			return nil, err
		}
		store = s
	}

	apiOpts := []apiclient.Option{
		apiclient.WithStore(store),
		apiclient.WithLogger(logger.With("component", "api")),
		apiclient.WithMetrics(o.metrics),
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, apiclient.WithHTTPClient(o.httpClient))
	}

	socketOpts := []wsclient.Option{
		wsclient.WithLogger(logger.With("component", "socket")),
		wsclient.WithMetrics(o.metrics),
	}
	if o.dialer != nil {
		socketOpts = append(socketOpts, wsclient.WithDialer(o.dialer))
	}

	routerOpts := []router.Option{
		router.WithLogger(logger.With("component", "router")),
		router.WithMetrics(o.metrics),
	}
	if o.history != nil {
		routerOpts = append(routerOpts, router.WithHistory(o.history))
	}

	scheduler := o.scheduler
	if scheduler == nil {
		scheduler = binding.NewTimerScheduler(cfg.Binding.FrameInterval)
	}

	api := apiclient.NewFromConfig(cfg.API, apiOpts...)
	a := &App{
		cfg:      cfg,
		logger:   logger.With("component", "app"),
		metrics:  o.metrics,
		store:    store,
		api:      api,
		socket:   wsclient.NewFromConfig(cfg.Socket, socketOpts...),
		router:   router.New(routerOpts...),
		loader:   component.NewLoader(logger.With("component", "loader"), component.WithMetrics(o.metrics)),
		bindings: binding.New(binding.WithLogger(logger.With("component", "binding")), binding.WithScheduler(scheduler)),
		toasts:   toast.NewCenter(),
		session:  auth.NewSession(api),
		root:     dom.NewContainer("app"),
	}
	a.banners = component.New(
		component.ViewFunc(func(context.Context, *component.Instance) (*vdom.VNode, error) {
			return a.toasts.Render(), nil
		}),
		dom.NewContainer("banners"),
		nil,
		component.WithName("banners"),
	)
	return a, nil
}

// API returns the REST client.
func (a *App) API() *apiclient.Client { return a.api }

// Socket returns the socket manager.
func (a *App) Socket() *wsclient.Manager { return a.socket }

// Router returns the router.
func (a *App) Router() *router.Router { return a.router }

// Loader returns the component loader.
func (a *App) Loader() *component.Loader { return a.loader }

// Bindings returns the binding system.
func (a *App) Bindings() *binding.System { return a.bindings }

// Toasts returns the notification sink.
func (a *App) Toasts() toast.Sink { return a.toasts }

// Notifications returns the notification center.
func (a *App) Notifications() *toast.Center { return a.toasts }

// Session returns the signed-in user session.
func (a *App) Session() *auth.Session { return a.session }

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Start registers pages, routes and guards, wires the socket and connects
// it. A failed connect is reported as a banner; the socket keeps retrying
// in the background. Start is a no-op after the first call.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	if err := pages.Register(a.loader, a); err != nil {
		return err
	}
	for _, r := range pages.Routes() {
		if err := a.router.AddRoute(r.Pattern, r.Component, r.Meta); err != nil {
			return err
		}
	}
	a.router.SetNotFound(pages.NotFoundPath)
	a.router.Guard(auth.RequireAuth(a.session))
	a.router.Guard(auth.RequireAdmin(a.session))
	a.router.OnChange(a.swapPage)

	if _, err := a.session.Load(ctx); err != nil && !auth.IsAuthError(err) {
		a.logger.Warn("session not loaded", "error", err)
	}

	a.wireSocket()
	if err := a.socket.Connect(ctx); err != nil {
		a.logger.Warn("socket connect failed", "url", a.socket.URL(), "error", err)
		toast.Warning(a.toasts, "Live updates are offline. Reconnecting…")
	}

	a.logger.Info("application started", "api", a.api.BaseURL(), "socket", a.socket.URL())
	return nil
}

// Visit navigates to path and reports whether the navigation committed.
// Guard rejections are not errors; only an invalid path is.
func (a *App) Visit(ctx context.Context, path string) (bool, error) {
	return a.router.Navigate(ctx, path, router.NavigateOptions{})
}

// Navigate implements pages.Env.
func (a *App) Navigate(ctx context.Context, path string) error {
	_, err := a.Visit(ctx, path)
	return err
}

// Current returns the committed route match, or nil.
func (a *App) Current() *router.Match { return a.router.Current() }

// Page returns the mounted page instance, or nil.
func (a *App) Page() *component.Instance {
	a.pageMu.Lock()
	defer a.pageMu.Unlock()
	return a.page
}

// swapPage destroys the mounted page and mounts the one next names.
func (a *App) swapPage(ctx context.Context, _, next *router.Match) {
	a.pageMu.Lock()
	defer a.pageMu.Unlock()

	if a.page != nil {
		a.page.Destroy()
		a.page = nil
	}
	a.root.Clear()

	name := next.Component()
	if name == "" || !a.loader.Has(name) {
		name = pages.NotFound
	}
	props := component.Props{
		"path":   next.Path,
		"params": next.Params,
		"query":  next.Query,
	}
	page, err := a.loader.Create(ctx, name, a.root, props)
	if err != nil {
		a.logger.Error("page not created", "component", name, "path", next.Path, "error", err)
		html, rerr := render.NewRenderer(render.RendererConfig{}).RenderToString(render.ErrorView(err))
		if rerr == nil {
			a.root.Attach(nil, html)
		}
		return
	}
	a.page = page
	page.Render(ctx)
}

// Dispatch delivers a DOM event to the listener bound to hid, on the
// page or on the banner strip. It returns how many handlers ran.
func (a *App) Dispatch(hid, event string, ev vdom.Event) int {
	n := a.root.Dispatch(hid, event, ev)
	n += a.banners.Container().Dispatch(hid, event, ev)
	return n
}

// Title is the document title for the current route.
func (a *App) Title() string {
	const product = "synthdesk"
	m := a.router.Current()
	if m == nil || m.Route == nil || m.Route.Meta.Title == "" {
		return product
	}
	return m.Route.Meta.Title + " · " + product
}

// Document re-renders the banner strip and returns the current document
// parts. Callers add scripts before rendering it.
func (a *App) Document(ctx context.Context) render.PageData {
	a.banners.Render(ctx)
	return render.PageData{
		Title:   a.Title(),
		Banners: a.banners.Container().HTML(),
		Body:    a.root.HTML(),
	}
}

// WriteHTML writes the full document: banners above the mounted page.
func (a *App) WriteHTML(ctx context.Context, w io.Writer) error {
	return render.RenderPage(w, a.Document(ctx))
}

// HTML returns the full document as a string.
func (a *App) HTML(ctx context.Context) (string, error) {
	var b strings.Builder
	if err := a.WriteHTML(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Close destroys the page, closes the socket, stops the binding system
// and closes the store when it holds resources. Close is idempotent.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancels := a.cancels
	a.cancels = nil
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	a.pageMu.Lock()
	if a.page != nil {
		a.page.Destroy()
		a.page = nil
	}
	a.pageMu.Unlock()
	a.banners.Destroy()

	err := a.socket.Close()
	a.bindings.Close()
	if c, ok := a.store.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.logger.Info("application closed")
	return err
}
