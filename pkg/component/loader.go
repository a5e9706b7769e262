package component

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vango-dev/synthdesk/internal/errors"
	"github.com/vango-dev/synthdesk/pkg/dom"
)

// ErrUnknownComponent is returned when a name has no registration.
var ErrUnknownComponent = errors.New("E202")

// Factory builds a view for one instantiation. Factories close over the
// application context they were registered with.
type Factory func(props Props) (View, error)

type entry struct {
	name    string
	factory Factory
	deps    []string
	preload func(ctx context.Context) error
	loaded  bool
}

// RegisterOption configures a registration.
type RegisterOption func(*entry)

// DependsOn names components that must be preloaded first.
func DependsOn(names ...string) RegisterOption {
	return func(e *entry) {
		e.deps = append(e.deps, names...)
	}
}

// WithPreload sets work to run once before the first instantiation,
// such as warming the API cache the component reads from.
func WithPreload(fn func(ctx context.Context) error) RegisterOption {
	return func(e *entry) {
		e.preload = fn
	}
}

// Loader maps component names to factories.
type Loader struct {
	mu       sync.Mutex
	entries  map[string]*entry
	logger   *slog.Logger
	instOpts []Option
}

// NewLoader creates an empty loader. opts are applied to every instance
// it creates.
func NewLoader(logger *slog.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default().With("component", "loader")
	}
	return &Loader{
		entries:  make(map[string]*entry),
		logger:   logger,
		instOpts: opts,
	}
}

// Register adds or replaces a named factory.
func (l *Loader) Register(name string, factory Factory, opts ...RegisterOption) error {
	if name == "" || factory == nil {
		return errors.Newf(errors.CategoryRender, "component registration needs a name and a factory")
	}
	e := &entry{name: name, factory: factory}
	for _, opt := range opts {
		opt(e)
	}

	l.mu.Lock()
	if _, exists := l.entries[name]; exists {
		l.logger.Warn("component re-registered", "name", name)
	}
	l.entries[name] = e
	l.mu.Unlock()
	return nil
}

// Has reports whether name is registered.
func (l *Loader) Has(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[name]
	return ok
}

// Names returns the registered names in sorted order.
func (l *Loader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preload runs the preload work of names and their dependencies,
// dependencies first. Each component's preload succeeds at most once;
// a failed preload is retried on the next call.
func (l *Loader) Preload(ctx context.Context, names ...string) error {
	visiting := make(map[string]bool)
	for _, name := range names {
		if err := l.preload(ctx, name, visiting); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) preload(ctx context.Context, name string, visiting map[string]bool) error {
	if visiting[name] {
		return errors.Newf(errors.CategoryRender, "component dependency cycle at %q", name)
	}

	l.mu.Lock()
	e, ok := l.entries[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}

	visiting[name] = true
	defer delete(visiting, name)

	for _, dep := range e.deps {
		if err := l.preload(ctx, dep, visiting); err != nil {
			return err
		}
	}

	l.mu.Lock()
	done := e.loaded
	l.mu.Unlock()
	if done {
		return nil
	}

	if e.preload != nil {
		if err := e.preload(ctx); err != nil {
			return fmt.Errorf("preload %s: %w", name, err)
		}
	}

	l.mu.Lock()
	e.loaded = true
	l.mu.Unlock()
	l.logger.Debug("component preloaded", "name", name)
	return nil
}

// Create preloads name and instantiates it into container. The instance
// is not rendered.
func (l *Loader) Create(ctx context.Context, name string, container *dom.Container, props Props, opts ...Option) (*Instance, error) {
	if err := l.Preload(ctx, name); err != nil {
		return nil, err
	}

	l.mu.Lock()
	e := l.entries[name]
	l.mu.Unlock()

	view, err := e.factory(props)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	all := make([]Option, 0, len(l.instOpts)+len(opts)+1)
	all = append(all, l.instOpts...)
	all = append(all, WithName(name))
	all = append(all, opts...)
	return New(view, container, props, all...), nil
}
