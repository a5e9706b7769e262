package pages

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/apiclient"
	"github.com/vango-dev/synthdesk/pkg/auth"
	"github.com/vango-dev/synthdesk/pkg/binding"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/dom"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

type recordSink struct {
	mu     sync.Mutex
	events []map[string]any
}

func (s *recordSink) Emit(_ string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := data.(map[string]any); ok {
		s.events = append(s.events, m)
	}
}

func (s *recordSink) last() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

type fakeEnv struct {
	api      *apiclient.Client
	bindings *binding.System
	frames   *binding.ManualScheduler
	sink     *recordSink
	session  *auth.Session

	mu        sync.Mutex
	navigated []string
}

func (e *fakeEnv) API() *apiclient.Client { return e.api }
func (e *fakeEnv) Bindings() *binding.System { return e.bindings }
func (e *fakeEnv) Toasts() toast.Sink { return e.sink }
func (e *fakeEnv) Session() *auth.Session { return e.session }

func (e *fakeEnv) Navigate(_ context.Context, path string) error {
	e.mu.Lock()
	e.navigated = append(e.navigated, path)
	e.mu.Unlock()
	return nil
}

func (e *fakeEnv) lastPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.navigated) == 0 {
		return ""
	}
	return e.navigated[len(e.navigated)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newEnv(t *testing.T, mux *http.ServeMux, opts ...apiclient.Option) *fakeEnv {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api := apiclient.New(srv.URL, opts...)
	frames := &binding.ManualScheduler{}
	return &fakeEnv{
		api:      api,
		bindings: binding.New(binding.WithScheduler(frames)),
		frames:   frames,
		sink:     &recordSink{},
		session:  auth.NewSession(api),
	}
}

func mount(t *testing.T, env Env, name string, props component.Props) (*component.Instance, *dom.Container) {
	t.Helper()
	loader := component.NewLoader(nil)
	require.NoError(t, Register(loader, env))

	container := dom.NewContainer("page")
	inst, err := loader.Create(context.Background(), name, container, props)
	require.NoError(t, err)
	inst.Render(context.Background())
	return inst, container
}

func listenerFor(t *testing.T, c *dom.Container, event string) string {
	t.Helper()
	for _, l := range c.Listeners().Snapshot() {
		if l.Event == event {
			return l.Target
		}
	}
	t.Fatalf("no %s listener in %s", event, c.HTML())
	return ""
}

func TestEveryRouteHasAPage(t *testing.T) {
	env := newEnv(t, http.NewServeMux())
	loader := component.NewLoader(nil)
	require.NoError(t, Register(loader, env))

	for _, r := range Routes() {
		assert.True(t, loader.Has(r.Component), "route %s -> %s", r.Pattern, r.Component)
	}
}

func TestAdminRouteRequiresAdmin(t *testing.T) {
	for _, r := range Routes() {
		switch r.Pattern {
		case "/admin":
			assert.True(t, r.Meta.RequiresAuth)
			assert.True(t, r.Meta.RequiresAdmin)
		case "/", NotFoundPath:
			assert.False(t, r.Meta.RequiresAuth, r.Pattern)
		default:
			assert.True(t, r.Meta.RequiresAuth, r.Pattern)
			assert.False(t, r.Meta.RequiresAdmin, r.Pattern)
		}
	}
}

func TestHomeGreetsUser(t *testing.T) {
	env := newEnv(t, http.NewServeMux())
	env.session.Set(auth.User{ID: "u1", Name: "Ada", Role: "admin"})

	_, c := mount(t, env, "home", nil)
	assert.Contains(t, c.HTML(), "Welcome back, Ada")
	assert.Contains(t, c.HTML(), `href="/admin"`)
}

func TestModelsAppliesLiveStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"models": []any{
			map[string]any{"id": "m1", "name": "churn", "type": "tabular", "status": "training"},
		}})
	})
	env := newEnv(t, mux)

	inst, c := mount(t, env, "models", nil)
	require.NoError(t, inst.Err())
	assert.Contains(t, c.HTML(), "status--training")
	assert.Contains(t, c.HTML(), `href="/models/m1"`)
	assert.Equal(t, []string{inst.ID()}, env.bindings.Bindings(SourceModels))

	env.bindings.UpdateData(SourceModels, "m1", "ready")
	env.frames.RunFrame()
	assert.Contains(t, c.HTML(), "status--ready")

	inst.Destroy()
	assert.Empty(t, env.bindings.Bindings(SourceModels))
}

func TestModelsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "models", nil)
	assert.Contains(t, c.HTML(), "No models yet.")

	c.Dispatch(listenerFor(t, c, "click"), "click", vdom.Event{})
	assert.Equal(t, "/models/create", env.lastPath())
}

func TestModelCreateSubmit(t *testing.T) {
	var body atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		body.Store(in)
		writeJSON(w, http.StatusCreated, map[string]any{"id": "m9", "name": in["name"]})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "model-create", nil)
	submit := listenerFor(t, c, "submit")

	c.Dispatch(submit, "submit", vdom.Event{Data: map[string]string{"name": "  "}})
	assert.Contains(t, c.HTML(), "A model needs a name.")
	assert.Nil(t, body.Load())

	c.Dispatch(submit, "submit", vdom.Event{Data: map[string]string{"name": "churn", "dataset": "ds1"}})
	assert.Equal(t, map[string]string{"name": "churn", "datasetId": "ds1"}, body.Load())
	assert.Equal(t, "/models/m9", env.lastPath())
	assert.Equal(t, "success", env.sink.last()["level"])
}

func TestModelCreateShowsServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "name already taken"})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "model-create", nil)
	c.Dispatch(listenerFor(t, c, "submit"), "submit", vdom.Event{Data: map[string]string{"name": "churn"}})

	assert.Contains(t, c.HTML(), "name already taken")
	assert.Equal(t, "error", env.sink.last()["level"])
	assert.Empty(t, env.lastPath())
}

func TestModelDetailUsesRouteParam(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/models/m1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "m1", "name": "churn", "status": "ready"})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "model-detail", component.Props{"params": map[string]string{"id": "m1"}})
	assert.Contains(t, c.HTML(), "churn")
	assert.Contains(t, c.HTML(), `href="/data/generate?model=m1"`)

	c.Dispatch(listenerFor(t, c, "click"), "click", vdom.Event{})
	assert.True(t, deleted.Load())
	assert.Equal(t, "/models", env.lastPath())
}

func TestPagesUseConfiguredEndpoints(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"models": []any{
			map[string]any{"id": "m1", "name": "churn", "status": "ready"},
		}})
	})
	mux.HandleFunc("/v2/models/m1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted.Store(true)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "m1", "name": "churn-v2"})
	})
	env := newEnv(t, mux, apiclient.WithEndpoints(map[string]string{
		config.EndpointModels: "/v2/models",
		config.EndpointModel:  "/v2/models/:id",
	}))

	_, list := mount(t, env, "models", nil)
	assert.Contains(t, list.HTML(), `href="/models/m1"`)

	_, detail := mount(t, env, "model-detail", component.Props{"params": map[string]string{"id": "m1"}})
	assert.Contains(t, detail.HTML(), "churn-v2")

	detail.Dispatch(listenerFor(t, detail, "click"), "click", vdom.Event{})
	assert.True(t, deleted.Load())
}

func TestDataGeneratePrefillsFromQuery(t *testing.T) {
	env := newEnv(t, http.NewServeMux())

	_, c := mount(t, env, "data-generate", component.Props{"query": map[string]string{"model": "m3", "rows": "250"}})
	assert.Contains(t, c.HTML(), `value="m3"`)
	assert.Contains(t, c.HTML(), `value="250"`)

	_, c = mount(t, env, "data-generate", component.Props{"query": map[string]string{"model": "m3", "rows": "lots"}})
	assert.Contains(t, c.HTML(), `value="1000"`)
}

func TestRenderErrorShownInPlace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	})
	env := newEnv(t, mux)

	inst, c := mount(t, env, "rules", nil)
	require.Error(t, inst.Err())
	assert.Contains(t, c.HTML(), "component-error")
}

func TestRules(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"rules": []any{
			map[string]any{"id": "r1", "name": "mask-email", "description": "hash addresses"},
		}})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "rules", nil)
	assert.Contains(t, c.HTML(), "mask-email")
	assert.Contains(t, c.HTML(), "hash addresses")
}

func TestDataGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/data/generate", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "m1", in["modelId"])
		assert.Equal(t, float64(250), in["rows"])
		writeJSON(w, http.StatusAccepted, map[string]any{"jobId": "job-7"})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "data-generate", component.Props{"query": map[string]string{"model": "m1"}})
	assert.Contains(t, c.HTML(), `value="m1"`)

	submit := listenerFor(t, c, "submit")
	c.Dispatch(submit, "submit", vdom.Event{Data: map[string]string{"model": "m1", "rows": "-3"}})
	assert.Contains(t, c.HTML(), "Rows must be a positive number.")

	c.Dispatch(submit, "submit", vdom.Event{Data: map[string]string{"model": "m1", "rows": "250"}})
	assert.Contains(t, c.HTML(), "job-7")
	assert.Equal(t, "info", env.sink.last()["level"])
}

func TestTokensFallsBackToSavedUsage(t *testing.T) {
	var down atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/usage", func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			writeJSON(w, http.StatusServiceUnavailable, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"used": 400, "limit": 1000, "plan": "pro", "renewalDate": "2026-11-01T00:00:00Z",
		})
	})
	env := newEnv(t, mux)

	loader := component.NewLoader(nil)
	now := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, loader.Register("usage", func(component.Props) (component.View, error) {
		return &Tokens{env: env, now: func() time.Time { return now }}, nil
	}))
	show := func() (*component.Instance, string) {
		c := dom.NewContainer("page")
		inst, err := loader.Create(context.Background(), "usage", c, nil)
		require.NoError(t, err)
		inst.Render(context.Background())
		t.Cleanup(inst.Destroy)
		return inst, c.HTML()
	}

	_, html := show()
	assert.Contains(t, html, "<dd>600</dd>")
	assert.NotContains(t, html, "Showing usage saved")

	down.Store(true)
	env.api.ClearCache()

	_, html = show()
	assert.Contains(t, html, "Showing usage saved")
	assert.Contains(t, html, "<dd>pro</dd>")
	assert.NotContains(t, html, "renewed")

	now = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	_, html = show()
	assert.Contains(t, html, "renewed")
}

func TestTokensWithoutSavedUsageFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/usage", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, nil)
	})
	env := newEnv(t, mux)

	inst, _ := mount(t, env, "tokens", nil)
	assert.Error(t, inst.Err())
}

func TestAdminListsUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"users": []any{
			map[string]any{"id": "u1", "email": "ada@example.com", "plan": "pro", "role": "admin"},
		}})
	})
	env := newEnv(t, mux)

	_, c := mount(t, env, "admin", nil)
	assert.Contains(t, c.HTML(), "ada@example.com")
}

func TestNotFound(t *testing.T) {
	env := newEnv(t, http.NewServeMux())
	_, c := mount(t, env, NotFound, component.Props{"path": "/nowhere"})
	assert.Contains(t, c.HTML(), "/nowhere")
}
