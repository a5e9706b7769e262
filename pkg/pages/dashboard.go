package pages

import (
	"context"
	"sort"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Dashboard shows account statistics and live token usage.
type Dashboard struct {
	component.NopHooks
	env  Env
	live live
}

func (p *Dashboard) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	payload, err := fetch(ctx, p.env, config.EndpointDashboardStats, nil)
	if err != nil {
		return nil, err
	}
	stats, _ := payload.(map[string]any)
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	usage, _ := p.env.Bindings().GetData(SourceUsage)

	return vdom.Section(
		vdom.Class("dashboard"),
		header("Dashboard"),
		vdom.El("dl", vdom.Class("stats"),
			vdom.Range(keys, func(_ int, k string) *vdom.VNode {
				return vdom.Fragment(vdom.El("dt", k), vdom.El("dd", field(stats, k)))
			}),
		),
		vdom.If(len(usage) > 0, vdom.Div(
			vdom.Class("usage"),
			vdom.H2("Token usage"),
			vdom.P(field(usage, "used"), " of ", field(usage, "limit"), " tokens used"),
		)),
	), nil
}

func (p *Dashboard) OnMount(_ context.Context, c *component.Instance) {
	p.live.bind(p.env, c, SourceUsage)
}

func (p *Dashboard) OnDestroy(c *component.Instance) {
	p.live.unbind(p.env, c)
}
