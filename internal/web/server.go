// Package web is the HTTP front end for one dashboard App.
//
// GET requests navigate the app and return the rendered document. Event
// posts dispatch a DOM event to the listener bound to an element id and
// return the document as it stands afterwards.
package web

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/synthdesk/pkg/app"
	"github.com/vango-dev/synthdesk/pkg/render"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

const maxEventBody = 64 << 10

// PathHeader carries the committed path on event responses so the
// client can update its location after a navigation.
const PathHeader = "X-Synthdesk-Path"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer sets what /metrics exposes.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithMetricsOptions configures the request collectors.
func WithMetricsOptions(opts ...MetricsOption) Option {
	return func(s *Server) {
		s.metricsOpts = append(s.metricsOpts, opts...)
	}
}

// Server serves an App over HTTP.
type Server struct {
	app         *app.App
	logger      *slog.Logger
	gatherer    prometheus.Gatherer
	metricsOpts []MetricsOption
	metrics     *requestMetrics
	assets      *Manifest
	mux         chi.Router
}

// New builds the route table for a.
func New(a *app.App, opts ...Option) (*Server, error) {
	s := &Server{
		app:      a,
		logger:   slog.Default().With("component", "web"),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	assets, err := embeddedManifest()
	if err != nil {
		return nil, err
	}
	s.assets = assets
	s.metrics = newRequestMetrics(s.metricsOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(Tracing("github.com/vango-dev/synthdesk/internal/web"))
	r.Use(s.metrics.instrument)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/favicon.ico", http.NotFound)
	r.Handle(StaticPrefix+"*", http.StripPrefix(strings.TrimSuffix(StaticPrefix, "/"), s.assets))
	r.Post("/_events/{hid}/{event}", s.dispatch)
	r.Get("/*", s.page)

	s.mux = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	ok, err := s.app.Visit(r.Context(), r.URL.RequestURI())
	if err != nil {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	if !ok {
		if r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	status := http.StatusOK
	if m := s.app.Current(); m != nil && m.NotFound {
		status = http.StatusNotFound
	}
	s.writeDocument(w, r, status)
}

type eventBody struct {
	Value string            `json:"value"`
	Data  map[string]string `json:"data"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	hid := chi.URLParam(r, "hid")
	event := chi.URLParam(r, "event")

	ev, err := readEvent(w, r)
	if err != nil {
		http.Error(w, "invalid event body", http.StatusBadRequest)
		return
	}

	n := s.app.Dispatch(hid, event, ev)
	s.metrics.event(event, n > 0)
	if n == 0 {
		s.logger.Debug("event had no listener", "hid", hid, "event", event)
		http.Error(w, "no listener", http.StatusNotFound)
		return
	}
	s.writeDocument(w, r, http.StatusOK)
}

// readEvent accepts a JSON body or a form post. Form fields other than
// "value" land in Data.
func readEvent(w http.ResponseWriter, r *http.Request) (vdom.Event, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body eventBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return vdom.Event{}, err
		}
		return vdom.Event{Value: body.Value, Data: body.Data}, nil
	}

	if err := r.ParseForm(); err != nil {
		return vdom.Event{}, err
	}
	ev := vdom.Event{Value: r.PostForm.Get("value"), Data: make(map[string]string, len(r.PostForm))}
	for k, vs := range r.PostForm {
		if k != "value" && len(vs) > 0 {
			ev.Data[k] = vs[0]
		}
	}
	return ev, nil
}

func (s *Server) writeDocument(w http.ResponseWriter, r *http.Request, status int) {
	doc := s.app.Document(r.Context())
	doc.Scripts = append(doc.Scripts, s.assets.Asset("synthdesk.js"))

	var b strings.Builder
	if err := render.RenderPage(&b, doc); err != nil {
		s.logger.Error("document not rendered", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if m := s.app.Current(); m != nil {
		w.Header().Set(PathHeader, m.URL())
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"socket": s.app.Socket().State().String(),
	})
}
