package pages

import (
	"context"

	"github.com/vango-dev/synthdesk/internal/config"
	"github.com/vango-dev/synthdesk/pkg/component"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Admin lists platform users. The route is admin-only.
type Admin struct {
	component.NopHooks
	env Env
}

func (p *Admin) Render(ctx context.Context, c *component.Instance) (*vdom.VNode, error) {
	payload, err := fetch(ctx, p.env, config.EndpointAdminUsers, nil)
	if err != nil {
		return nil, err
	}
	users := items(payload, "users")
	return vdom.Section(
		vdom.Class("admin"),
		header("Administration"),
		vdom.If(len(users) == 0, emptyState("No users.")),
		vdom.If(len(users) > 0, vdom.Table(
			vdom.Thead(vdom.Tr(vdom.Th("Email"), vdom.Th("Plan"), vdom.Th("Role"))),
			vdom.Tbody(vdom.Range(users, func(_ int, u map[string]any) *vdom.VNode {
				return vdom.Tr(
					vdom.Key(field(u, "id")),
					vdom.Td(field(u, "email")),
					vdom.Td(field(u, "plan")),
					vdom.Td(field(u, "role")),
				)
			})),
		)),
	), nil
}
