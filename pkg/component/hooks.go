package component

import (
	"context"

	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Props is a component's configuration, fixed for one render cycle.
type Props map[string]any

// State is a component's mutable local state.
type State map[string]any

// View produces a component's node tree.
type View interface {
	Render(ctx context.Context, c *Instance) (*vdom.VNode, error)
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context, c *Instance) (*vdom.VNode, error)

// Render implements View.
func (f ViewFunc) Render(ctx context.Context, c *Instance) (*vdom.VNode, error) {
	return f(ctx, c)
}

// Mounter runs after each successful attach.
type Mounter interface {
	OnMount(ctx context.Context, c *Instance)
}

// Updater observes configuration changes.
type Updater interface {
	OnUpdate(ctx context.Context, c *Instance, old, new Props)
}

// StateChanger observes state changes.
type StateChanger interface {
	OnStateChange(ctx context.Context, c *Instance, old, new State)
}

// Destroyer runs before teardown.
type Destroyer interface {
	OnDestroy(c *Instance)
}

// EventBinder binds listeners that are not expressed as vdom handlers,
// using Instance.Listen so they are removed with the component.
type EventBinder interface {
	BindEvents(c *Instance)
}

// NopHooks implements every hook as a no-op. Embed it and override the
// hooks a view needs.
type NopHooks struct{}

func (NopHooks) OnMount(context.Context, *Instance) {}
func (NopHooks) OnUpdate(context.Context, *Instance, Props, Props) {}
func (NopHooks) OnStateChange(context.Context, *Instance, State, State) {}
func (NopHooks) OnDestroy(*Instance) {}
func (NopHooks) BindEvents(*Instance) {}
