// Package vdom provides the node tree that synthdesk components return
// from Render.
//
// Trees are built with plain Go function calls, so markup is data, not
// strings: text content and attribute values are escaped by the renderer
// and can never inject elements or handlers.
//
//	Div(Class("card"),
//	    H2(Text(model.Name)),
//	    Button(OnClick(func(Event) { remove(model.ID) }), Text("Delete")),
//	)
//
// Event handlers live in Props under "on<event>" keys and are never
// written into markup; the renderer reports them so the component runtime
// can track one listener per (element, event) pair.
package vdom
