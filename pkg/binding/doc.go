// Package binding connects observable data sources to component update
// callbacks.
//
// A Source is a mapping whose writes notify its own subscribers. A System
// owns named sources and bindings: writes to a source queue an Update for
// every component bound to that source, and the queue is drained once per
// frame. Within a frame, repeated writes to the same (component,
// property) pair collapse into one update carrying the latest value and
// the value from before the first write.
//
//	sys := binding.New()
//	sys.SetData("usage", map[string]any{"used": 10})
//	sys.BindComponent("tokens-page", "usage", binding.BindOptions{
//	    OnUpdate: func(u binding.Update) { ... },
//	})
//	sys.UpdateData("usage", "used", 11)
package binding
