package binding

import (
	"sort"
	"sync"
)

// Change describes one mutation of a Source.
type Change struct {
	Source   string
	Property string
	Value    any
	OldValue any
	Deleted  bool
}

// Source is an observable mapping. Every Set and Delete notifies the
// source's own subscribers, in subscription order, after the write.
type Source struct {
	key string

	mu     sync.RWMutex
	data   map[string]any
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(Change)
}

// NewSource creates a source holding a copy of data.
func NewSource(key string, data map[string]any) *Source {
	s := &Source{key: key, data: make(map[string]any, len(data))}
	for k, v := range data {
		s.data[k] = v
	}
	return s
}

// Key returns the source key.
func (s *Source) Key() string { return s.key }

// Get returns one property.
func (s *Source) Get(prop string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[prop]
	return v, ok
}

// Set writes a property and notifies subscribers.
func (s *Source) Set(prop string, value any) {
	s.mu.Lock()
	old := s.data[prop]
	s.data[prop] = value
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	notify(subs, Change{Source: s.key, Property: prop, Value: value, OldValue: old})
}

// Delete removes a property and notifies subscribers. Deleting a missing
// property is silent.
func (s *Source) Delete(prop string) {
	s.mu.Lock()
	old, ok := s.data[prop]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.data, prop)
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	notify(subs, Change{Source: s.key, Property: prop, OldValue: old, Deleted: true})
}

// Keys returns the property names in sorted order.
func (s *Source) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the data.
func (s *Source) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Subscribe registers fn for changes and returns its cancel function.
func (s *Source) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// replace swaps the data wholesale without notifying.
func (s *Source) replace(data map[string]any) {
	next := make(map[string]any, len(data))
	for k, v := range data {
		next[k] = v
	}
	s.mu.Lock()
	s.data = next
	s.mu.Unlock()
}

func notify(subs []subscriber, c Change) {
	for _, sub := range subs {
		sub.fn(c)
	}
}
