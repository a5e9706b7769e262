package component

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/internal/metrics"
	"github.com/vango-dev/synthdesk/pkg/dom"
	"github.com/vango-dev/synthdesk/pkg/render"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Instance is a mounted (or mountable) component.
type Instance struct {
	id        string
	name      string
	view      View
	container *dom.Container
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu sync.Mutex

	props       Props
	state       State
	children    []*Instance
	listenerIDs []dom.ListenerID
	mounted     bool
	destroyed   bool
	renderCount int
	lastErr     error

	// rendering is set while a render pass runs; a Render requested
	// meanwhile (e.g. SetState from OnMount) sets pending and is run by
	// the active pass once it finishes.
	rendering bool
	pending   bool
}

// Option configures an Instance.
type Option func(*Instance)

// WithLogger sets the instance logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Instance) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records renders on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Instance) {
		c.metrics = m
	}
}

// WithName sets the registry name used in logs.
func WithName(name string) Option {
	return func(c *Instance) {
		c.name = name
	}
}

// WithState sets the initial local state.
func WithState(s State) Option {
	return func(c *Instance) {
		c.state = clone(s)
	}
}

// New creates an unmounted instance rendering view into container.
func New(view View, container *dom.Container, props Props, opts ...Option) *Instance {
	c := &Instance{
		id:        uuid.NewString(),
		view:      view,
		container: container,
		props:     clone(props),
		state:     State{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = fmt.Sprintf("%T", view)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "ui")
	}
	c.logger = c.logger.With("instance", c.name, "instance_id", c.id)
	return c
}

// ID returns the instance identity.
func (c *Instance) ID() string { return c.id }

// Name returns the registry name or the view type.
func (c *Instance) Name() string { return c.name }

// View returns the wrapped view.
func (c *Instance) View() View { return c.view }

// Container returns the mount point.
func (c *Instance) Container() *dom.Container { return c.container }

// Logger returns the instance logger.
func (c *Instance) Logger() *slog.Logger { return c.logger }

// Props returns a copy of the current configuration.
func (c *Instance) Props() Props {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.props)
}

// Prop returns one configuration value.
func (c *Instance) Prop(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props[key]
}

// State returns a copy of the local state.
func (c *Instance) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clone(c.state)
}

// StateValue returns one state value.
func (c *Instance) StateValue(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[key]
}

// Mounted reports whether the last render attached content.
func (c *Instance) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Destroyed reports whether Destroy ran.
func (c *Instance) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// RenderCount returns how many times View.Render was invoked.
func (c *Instance) RenderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderCount
}

// Err returns the error of the last render, if it failed.
func (c *Instance) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Children returns the child instances.
func (c *Instance) Children() []*Instance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Instance(nil), c.children...)
}

// AddChild creates a child rendering into the named slot of this
// instance's container. The parent must render dom.SlotNode(slot).
func (c *Instance) AddChild(slot string, view View, props Props, opts ...Option) *Instance {
	base := []Option{WithLogger(c.logger), WithMetrics(c.metrics)}
	child := New(view, c.container.Slot(slot), props, append(base, opts...)...)

	c.mu.Lock()
	c.children = append(c.children, child)
	c.mu.Unlock()
	return child
}

// RemoveChild destroys a child and forgets it.
func (c *Instance) RemoveChild(child *Instance) {
	c.mu.Lock()
	for i, ch := range c.children {
		if ch == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	child.Destroy()
}

// Listen registers a listener on the container and records it so the
// next render or Destroy removes it.
//
// A destroyed instance binds nothing and Listen returns 0.
func (c *Instance) Listen(target, event string, handler vdom.Handler, opts vdom.ListenerOptions) dom.ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return 0
	}
	id := c.container.Listeners().Add(target, event, handler, opts)
	c.listenerIDs = append(c.listenerIDs, id)
	return id
}

// ListenerCount returns the number of listeners this instance holds.
func (c *Instance) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listenerIDs)
}

func (c *Instance) removeListeners() {
	c.mu.Lock()
	ids := c.listenerIDs
	c.listenerIDs = nil
	c.mu.Unlock()

	reg := c.container.Listeners()
	for _, id := range ids {
		reg.Remove(id)
	}
}

// Render replaces the container content with a fresh render. Errors are
// shown in place and logged; they never reach the caller.
func (c *Instance) Render(ctx context.Context) {
	c.mu.Lock()
	if c.rendering {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.rendering = true
	c.mu.Unlock()

	for {
		c.renderPass(ctx)

		c.mu.Lock()
		if !c.pending {
			c.rendering = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Instance) renderPass(ctx context.Context) {
	if c.Destroyed() {
		c.logger.Debug("render skipped, component destroyed")
		return
	}

	c.removeListeners()
	c.container.Clear()

	c.mu.Lock()
	c.renderCount++
	c.mu.Unlock()

	err := c.renderOnce(ctx)
	c.metrics.Render(err)
	if err != nil {
		c.showError(err)
		return
	}

	for _, child := range c.Children() {
		child.Render(ctx)
	}
}

func (c *Instance) renderOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("E201").
				WithDetail(string(debug.Stack())).
				Wrap(fmt.Errorf("panic: %v", r))
		}
	}()

	node, err := c.view.Render(ctx, c)
	if err != nil {
		return errors.FromError(err, "E201")
	}
	if node == nil {
		node = vdom.Fragment()
	}

	type binding struct {
		hid string
		h   vdom.EventHandler
	}
	var bindings []binding
	r := render.NewRenderer(render.RendererConfig{
		HIDPrefix: c.id[:8] + "-",
		OnHandler: func(hid string, h vdom.EventHandler) {
			bindings = append(bindings, binding{hid, h})
		},
	})
	html, err := r.RenderToString(node)
	if err != nil {
		return errors.New("E201").Wrap(err)
	}

	if !c.attach(node, html) {
		c.logger.Debug("container detached or component destroyed, render dropped")
		return nil
	}

	for _, b := range bindings {
		c.Listen(b.hid, b.h.Event, b.h.Handler, b.h.Options)
	}
	if binder, ok := c.view.(EventBinder); ok {
		binder.BindEvents(c)
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.lastErr = nil
	c.mu.Unlock()

	if m, ok := c.view.(Mounter); ok {
		m.OnMount(ctx, c)
	}
	return nil
}

// attach writes html into the container unless the instance was destroyed
// while its view rendered. Destroy takes the same lock, so a pass that
// loses the race never writes over the next occupant of the container.
func (c *Instance) attach(node *vdom.VNode, html string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return false
	}
	return c.container.Attach(node, html)
}

func (c *Instance) showError(err error) {
	c.logger.Error("render failed", "error", err)

	c.removeListeners()
	html, rerr := render.NewRenderer(render.RendererConfig{}).RenderToString(render.ErrorView(err))
	if rerr == nil {
		c.attach(nil, html)
	}

	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Update merges partial over the configuration and re-renders when the
// result differs shallowly from the previous configuration. It reports
// whether a render happened.
func (c *Instance) Update(ctx context.Context, partial Props) bool {
	c.mu.Lock()
	old := c.props
	next := merge(old, partial)
	c.props = next
	c.mu.Unlock()

	if u, ok := c.view.(Updater); ok {
		c.safeHook("OnUpdate", func() { u.OnUpdate(ctx, c, clone(old), clone(next)) })
	}
	if shallowEqual(old, next) {
		return false
	}
	c.Render(ctx)
	return true
}

// SetState merges partial over the local state and re-renders when the
// result differs shallowly. It reports whether a render happened.
func (c *Instance) SetState(ctx context.Context, partial State) bool {
	c.mu.Lock()
	old := c.state
	next := merge(old, partial)
	c.state = next
	c.mu.Unlock()

	if s, ok := c.view.(StateChanger); ok {
		c.safeHook("OnStateChange", func() { s.OnStateChange(ctx, c, clone(old), clone(next)) })
	}
	if shallowEqual(old, next) {
		return false
	}
	c.Render(ctx)
	return true
}

// Destroy tears the instance down. It never panics.
func (c *Instance) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	children := c.children
	c.children = nil
	c.mu.Unlock()

	if d, ok := c.view.(Destroyer); ok {
		c.safeHook("OnDestroy", func() { d.OnDestroy(c) })
	}
	for _, child := range children {
		child.Destroy()
	}

	c.removeListeners()
	c.container.Clear()

	c.mu.Lock()
	c.mounted = false
	c.mu.Unlock()
}

func (c *Instance) safeHook(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("hook panicked",
				"hook", name,
				"error", errors.New("E203").Wrap(fmt.Errorf("%v", r)),
			)
		}
	}()
	fn()
}
