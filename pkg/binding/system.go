package binding

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Update is what a bound component receives.
type Update struct {
	ComponentID string
	Source      string
	Property    string
	Value       any
	OldValue    any
	Deleted     bool
}

// BindOptions configures one binding.
type BindOptions struct {
	// OnUpdate receives flushed updates. Required.
	OnUpdate func(Update)

	// Transform maps a value before delivery.
	Transform func(value any) any

	// Filter drops changes before they are queued.
	Filter func(Change) bool

	// Debounce delays delivery until writes pause for this long.
	Debounce time.Duration

	// Throttle delivers at most once per interval, keeping the latest
	// value per property.
	Throttle time.Duration

	// Immediate delivers the current snapshot on bind, with an empty
	// Property and the whole mapping as Value.
	Immediate bool
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScheduler sets the frame scheduler.
func WithScheduler(fs FrameScheduler) Option {
	return func(s *System) {
		if fs != nil {
			s.scheduler = fs
		}
	}
}

// WithClock sets the clock used for debounce and throttle.
func WithClock(c Clock) Option {
	return func(s *System) {
		if c != nil {
			s.clock = c
		}
	}
}

type queueKey struct {
	component string
	property  string
}

// System owns the reactive sources and the bindings between them and
// components.
type System struct {
	logger    *slog.Logger
	scheduler FrameScheduler
	clock     Clock

	mu        sync.Mutex
	sources   map[string]*Source
	bindings  map[string]*binding
	queue     []Update
	index     map[queueKey]int
	scheduled bool
}

// New creates an empty System.
func New(opts ...Option) *System {
	s := &System{
		logger:    slog.Default().With("component", "binding"),
		scheduler: NewTimerScheduler(0),
		clock:     realClock{},
		sources:   make(map[string]*Source),
		bindings:  make(map[string]*binding),
		index:     make(map[queueKey]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Source returns the source for key, creating an empty one if needed.
func (s *System) Source(key string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLocked(key)
}

func (s *System) sourceLocked(key string) *Source {
	src, ok := s.sources[key]
	if !ok {
		src = NewSource(key, nil)
		s.sources[key] = src
	}
	return src
}

// SetData replaces the contents of source key. Existing bindings stay
// attached; the replacement itself does not notify.
func (s *System) SetData(key string, data map[string]any) *Source {
	src := s.Source(key)
	src.replace(data)
	return src
}

// UpdateData writes one property of source key.
func (s *System) UpdateData(key, prop string, value any) {
	s.Source(key).Set(prop, value)
}

// DeleteData removes one property of source key.
func (s *System) DeleteData(key, prop string) {
	s.Source(key).Delete(prop)
}

// GetData returns a snapshot of source key.
func (s *System) GetData(key string) (map[string]any, bool) {
	s.mu.Lock()
	src, ok := s.sources[key]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return src.Snapshot(), true
}

// BindComponent binds component id to source key, replacing any earlier
// binding of the same id.
func (s *System) BindComponent(id, key string, opts BindOptions) error {
	if id == "" || key == "" {
		return fmt.Errorf("binding needs a component id and a source key")
	}
	if opts.OnUpdate == nil {
		return fmt.Errorf("binding %s: OnUpdate is required", id)
	}
	s.Unbind(id)

	b := &binding{system: s, id: id, source: key, opts: opts}
	src := s.Source(key)
	b.cancel = src.Subscribe(func(c Change) {
		if opts.Filter != nil && !opts.Filter(c) {
			return
		}
		s.enqueue(Update{
			ComponentID: id,
			Source:      c.Source,
			Property:    c.Property,
			Value:       c.Value,
			OldValue:    c.OldValue,
			Deleted:     c.Deleted,
		})
	})

	s.mu.Lock()
	s.bindings[id] = b
	s.mu.Unlock()

	s.logger.Debug("component bound", "component_id", id, "source", key)
	if opts.Immediate {
		b.call(Update{ComponentID: id, Source: key, Value: src.Snapshot()})
	}
	return nil
}

// Unbind removes the binding of component id and its queued updates.
func (s *System) Unbind(id string) {
	s.mu.Lock()
	b, ok := s.bindings[id]
	if ok {
		delete(s.bindings, id)
		s.dropQueuedLocked(id)
	}
	s.mu.Unlock()

	if ok {
		b.close()
	}
}

// Bindings returns the ids bound to source key, sorted.
func (s *System) Bindings(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, b := range s.bindings {
		if b.source == key {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Pending returns the number of queued updates.
func (s *System) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *System) enqueue(u Update) {
	k := queueKey{u.ComponentID, u.Property}

	s.mu.Lock()
	if i, ok := s.index[k]; ok {
		// Keep the first old value so the update spans the whole frame.
		u.OldValue = s.queue[i].OldValue
		s.queue[i] = u
	} else {
		s.index[k] = len(s.queue)
		s.queue = append(s.queue, u)
	}
	schedule := !s.scheduled
	s.scheduled = true
	s.mu.Unlock()

	if schedule {
		s.scheduler.Schedule(s.Flush)
	}
}

// dropQueuedLocked removes every queued update for id. Callers hold mu.
func (s *System) dropQueuedLocked(id string) {
	kept := s.queue[:0]
	for _, u := range s.queue {
		if u.ComponentID != id {
			kept = append(kept, u)
		}
	}
	s.queue = kept
	s.index = make(map[queueKey]int, len(kept))
	for i, u := range kept {
		s.index[queueKey{u.ComponentID, u.Property}] = i
	}
}

// Flush delivers every queued update in insertion order. The frame
// scheduler calls it; tests and shutdown may call it directly.
func (s *System) Flush() {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.index = make(map[queueKey]int)
	s.scheduled = false
	s.mu.Unlock()

	for _, u := range pending {
		s.mu.Lock()
		b := s.bindings[u.ComponentID]
		s.mu.Unlock()
		if b == nil {
			continue
		}
		b.deliver(u)
	}
}

// Close unbinds everything.
func (s *System) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.bindings))
	for id := range s.bindings {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Unbind(id)
	}
}
