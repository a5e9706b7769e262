package pages

import (
	"context"

	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Home is the landing page.
type Home struct {
	component.NopHooks
	env Env
}

var sections = []struct{ href, label string }{
	{"/dashboard", "Dashboard"},
	{"/models", "Models"},
	{"/data/generate", "Generate data"},
	{"/rules", "Rules"},
	{"/tokens", "Tokens"},
}

func (p *Home) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	greeting := "Welcome to synthdesk"
	if user, ok := p.env.Session().User(); ok && user.Name != "" {
		greeting = "Welcome back, " + user.Name
	}
	return vdom.Section(
		vdom.Class("home"),
		vdom.H1(greeting),
		vdom.P("Train models on your data and generate synthetic datasets that keep its shape."),
		vdom.Nav(
			vdom.Ul(vdom.Range(sections, func(_ int, s struct{ href, label string }) *vdom.VNode {
				return vdom.Li(vdom.A(vdom.Href(s.href), s.label))
			})),
		),
		vdom.If(p.env.Session().IsAdmin(), vdom.P(vdom.A(vdom.Href("/admin"), "Administration"))),
	), nil
}
