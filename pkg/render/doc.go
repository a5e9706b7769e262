// Package render converts vdom trees into HTML.
//
// Text and attribute values are always escaped; only vdom.Raw nodes are
// written verbatim. Elements carrying event handlers receive a data-hid
// attribute, and every (hid, event, handler) triple is reported to the
// configured OnHandler callback so the caller can record listeners.
//
//	r := render.NewRenderer(render.RendererConfig{
//	    HIDPrefix: "c1-",
//	    OnHandler: func(hid string, h vdom.EventHandler) { ... },
//	})
//	html, err := r.RenderToString(node)
package render
