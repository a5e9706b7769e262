package dom

import (
	"sync"

	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// ListenerID identifies one registered listener.
type ListenerID uint64

// Listener is one (target, event, handler, options) registration.
type Listener struct {
	ID      ListenerID
	Target  string
	Event   string
	Handler vdom.Handler
	Options vdom.ListenerOptions
}

// ListenerRegistry records listeners so they can be removed exactly.
type ListenerRegistry struct {
	mu        sync.Mutex
	next      ListenerID
	listeners []Listener
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{}
}

// Add registers a listener and returns its id.
func (r *ListenerRegistry) Add(target, event string, handler vdom.Handler, opts vdom.ListenerOptions) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.listeners = append(r.listeners, Listener{
		ID:      r.next,
		Target:  target,
		Event:   event,
		Handler: handler,
		Options: opts,
	})
	return r.next
}

// Remove unregisters a listener. It reports whether it was present.
func (r *ListenerRegistry) Remove(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, l := range r.listeners {
		if l.ID == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll unregisters every listener.
func (r *ListenerRegistry) RemoveAll() {
	r.mu.Lock()
	r.listeners = nil
	r.mu.Unlock()
}

// Len returns the number of registered listeners.
func (r *ListenerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Snapshot returns a copy of the registered listeners.
func (r *ListenerRegistry) Snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Listener(nil), r.listeners...)
}

// Dispatch invokes every listener for (target, event) in registration
// order and returns how many ran. Once listeners are removed before they
// run. Handlers run without the registry lock held.
func (r *ListenerRegistry) Dispatch(target, event string, ev vdom.Event) int {
	r.mu.Lock()
	var matched []Listener
	kept := r.listeners[:0]
	for _, l := range r.listeners {
		if l.Target == target && l.Event == event {
			matched = append(matched, l)
			if l.Options.Once {
				continue
			}
		}
		kept = append(kept, l)
	}
	r.listeners = kept
	r.mu.Unlock()

	ev.Type = event
	ev.Target = target
	for _, l := range matched {
		l.Handler(ev)
	}
	return len(matched)
}
