package binding

import "fmt"

// CreateComputed keeps property name of source key equal to fn applied
// to the source's snapshot, recomputing when any of deps changes. The
// value is computed once immediately. The returned function stops it.
func (s *System) CreateComputed(name, key string, deps []string, fn func(data map[string]any) any) (func(), error) {
	if name == "" || fn == nil {
		return nil, fmt.Errorf("computed property needs a name and a function")
	}
	watched := make(map[string]bool, len(deps))
	for _, d := range deps {
		if d == name {
			return nil, fmt.Errorf("computed property %q cannot depend on itself", name)
		}
		watched[d] = true
	}

	src := s.Source(key)
	src.Set(name, fn(src.Snapshot()))

	return src.Subscribe(func(c Change) {
		if !watched[c.Property] {
			return
		}
		src.Set(name, fn(src.Snapshot()))
	}), nil
}

// Watch calls fn synchronously whenever property prop of source key
// changes. The returned function stops watching.
func (s *System) Watch(key, prop string, fn func(value, old any)) func() {
	return s.Source(key).Subscribe(func(c Change) {
		if c.Property == prop {
			fn(c.Value, c.OldValue)
		}
	})
}
