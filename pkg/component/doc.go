// Package component implements the component lifecycle and the named
// component registry.
//
// A component is a View plus optional hook interfaces. The Instance that
// wraps it owns the configuration (Props), local state (State), the
// container it renders into, its children and every listener it bound.
//
// # Lifecycle
//
//	Render   clear container → View.Render → HTML → attach → bind events
//	         → OnMount → render children
//	Update   merge props → OnUpdate(old, new) → Render if shallowly changed
//	SetState merge state → OnStateChange(old, new) → Render if shallowly changed
//	Destroy  OnDestroy → destroy children → drop listeners → clear container
//
// Failures inside Render are turned into an in-place error block; Destroy
// never panics. Equality is one level deep: mutating a nested map or
// slice in place and passing the same reference again does not re-render.
//
// # Hooks
//
// Views opt into hooks by implementing Mounter, Updater, StateChanger,
// Destroyer or EventBinder. Embedding NopHooks gives no-op defaults.
package component
