// Package router maps canonical paths to page components.
//
// Routes are matched in registration order and the first match wins, so a
// route registered earlier shadows any later route matching the same path.
// Patterns use ":name" for a single segment and a trailing "*name" for the
// remainder of the path:
//
//	r := router.New()
//	r.AddRoute("/models", "models", router.Meta{})
//	r.AddRoute("/models/create", "model-create", router.Meta{RequiresAuth: true})
//	r.AddRoute("/models/:id", "model-detail", router.Meta{})
//
// A navigation passes through three states. Before-navigate interceptors
// and guards run while the router is resolving; change callbacks run once
// it has committed; then it returns to idle. Back and Forward run guards
// but skip interceptors, since a history move cannot be vetoed the same
// way a programmatic navigation can.
package router
