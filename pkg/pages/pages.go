// Package pages holds the dashboard's page components and route table.
//
// Pages are component.Views created through the loader. Each receives
// the route's "path", "params" and "query" as props and talks to the
// platform through the Env the application passes in.
package pages

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/vango-dev/synthdesk/pkg/apiclient"
	"github.com/vango-dev/synthdesk/pkg/auth"
	"github.com/vango-dev/synthdesk/pkg/binding"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/render"
	"github.com/vango-dev/synthdesk/pkg/router"
	"github.com/vango-dev/synthdesk/pkg/toast"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Binding sources fed by the socket.
const (
	SourceUsage  = "usage"
	SourceModels = "models"
)

// NotFound is the component and path used for unknown routes.
const (
	NotFound     = "not-found"
	NotFoundPath = "/404"
)

// Env is what pages need from the application.
type Env interface {
	API() *apiclient.Client
	Bindings() *binding.System
	Toasts() toast.Sink
	Session() *auth.Session
	Navigate(ctx context.Context, path string) error
}

// Route ties a path pattern to a page component.
type Route struct {
	Pattern   string
	Component string
	Meta      router.Meta
}

var signedIn = router.Meta{RequiresAuth: true}

func meta(title string, base router.Meta) router.Meta {
	base.Title = title
	return base
}

// Routes returns the route table in match order.
func Routes() []Route {
	return []Route{
		{"/", "home", meta("Home", router.Meta{})},
		{"/dashboard", "dashboard", meta("Dashboard", signedIn)},
		{"/models", "models", meta("Models", signedIn)},
		{"/models/create", "model-create", meta("Create model", signedIn)},
		{"/models/:id", "model-detail", meta("Model", signedIn)},
		{"/data/generate", "data-generate", meta("Generate data", signedIn)},
		{"/rules", "rules", meta("Rules", signedIn)},
		{"/tokens", "tokens", meta("Tokens", signedIn)},
		{"/admin", "admin", meta("Admin", router.Meta{RequiresAuth: true, RequiresAdmin: true})},
		{NotFoundPath, NotFound, meta("Not found", router.Meta{})},
	}
}

// Register adds every page to loader.
func Register(loader *component.Loader, env Env) error {
	factories := map[string]component.Factory{
		"home":          func(component.Props) (component.View, error) { return &Home{env: env}, nil },
		"dashboard":     func(component.Props) (component.View, error) { return &Dashboard{env: env}, nil },
		"models":        func(component.Props) (component.View, error) { return &Models{env: env}, nil },
		"model-create":  func(component.Props) (component.View, error) { return &ModelCreate{env: env}, nil },
		"model-detail":  func(component.Props) (component.View, error) { return &ModelDetail{env: env}, nil },
		"data-generate": func(component.Props) (component.View, error) { return &DataGenerate{env: env}, nil },
		"rules":         func(component.Props) (component.View, error) { return &Rules{env: env}, nil },
		"tokens":        func(component.Props) (component.View, error) { return &Tokens{env: env}, nil },
		"admin":         func(component.Props) (component.View, error) { return &Admin{env: env}, nil },
		NotFound:        func(component.Props) (component.View, error) { return notFound{}, nil },
	}
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := loader.Register(name, factories[name]); err != nil {
			return err
		}
	}
	return nil
}

// live re-renders a page whenever a binding source changes. The zero
// value is ready to use; bind is idempotent.
type live struct {
	bound atomic.Bool
	rev   atomic.Int64
}

func (l *live) bind(env Env, c *component.Instance, source string) {
	if !l.bound.CompareAndSwap(false, true) {
		return
	}
	err := env.Bindings().BindComponent(c.ID(), source, binding.BindOptions{
		OnUpdate: func(binding.Update) {
			c.SetState(context.Background(), component.State{"rev": l.rev.Add(1)})
		},
	})
	if err != nil {
		c.Logger().Error("page not bound", "source", source, "error", err)
	}
}

func (l *live) unbind(env Env, c *component.Instance) {
	if l.bound.CompareAndSwap(true, false) {
		env.Bindings().Unbind(c.ID())
	}
}

// bind fills target from the route params and query the page was
// mounted with. See router.Match.Bind for the field tags.
func bind(c *component.Instance, target any) error {
	m := &router.Match{}
	m.Params, _ = c.Prop("params").(map[string]string)
	m.Query, _ = c.Prop("query").(map[string]string)
	return m.Bind(target)
}

// fetch GETs the API endpoint configured under name.
func fetch(ctx context.Context, env Env, name string, params map[string]string) (any, error) {
	path, err := env.API().EndpointFor(name, params)
	if err != nil {
		return nil, err
	}
	return env.API().Get(ctx, path)
}

// modelURL is the page address of one model.
func modelURL(id string) string {
	u, err := router.BuildURL("/models/:id", map[string]string{"id": id}, nil)
	if err != nil {
		return "/models"
	}
	return u
}

// generateURL opens the generate form with model preselected.
func generateURL(model string) string {
	u, err := router.BuildURL("/data/generate", nil, map[string]string{"model": model})
	if err != nil {
		return "/data/generate"
	}
	return u
}

// items extracts a list from a payload that is either a JSON array or an
// object wrapping one under key, "items" or "data".
func items(payload any, key string) []map[string]any {
	var raw []any
	switch v := payload.(type) {
	case []any:
		raw = v
	case map[string]any:
		for _, k := range []string{key, "items", "data"} {
			if list, ok := v[k].([]any); ok {
				raw = list
				break
			}
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func field(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func header(title string, actions ...any) *vdom.VNode {
	return vdom.Div(
		vdom.Class("page-header"),
		vdom.H1(title),
		vdom.Div(append([]any{vdom.Class("page-header__actions")}, actions...)...),
	)
}

func emptyState(text string) *vdom.VNode {
	return vdom.P(vdom.Class("empty"), text)
}

type notFound struct{}

func (notFound) Render(_ context.Context, c *component.Instance) (*vdom.VNode, error) {
	path, _ := c.Prop("path").(string)
	return render.NotFoundView(path), nil
}
