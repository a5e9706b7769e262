package vdom

// Event is a DOM event delivered to a handler.
type Event struct {
	// Type is the event name without the "on" prefix ("click").
	Type string

	// Target is the HID of the element the listener was bound to.
	Target string

	// Value carries the element value for input and change events.
	Value string

	// Data carries any additional form or dataset values.
	Data map[string]string
}

// Handler receives dispatched events.
type Handler func(Event)

// ListenerOptions mirrors addEventListener options.
type ListenerOptions struct {
	Once    bool
	Passive bool
	Capture bool
}

// EventHandler binds a handler to an event name.
type EventHandler struct {
	Event   string
	Handler Handler
	Options ListenerOptions
}

// On binds handler to an arbitrary event name.
func On(name string, handler Handler, opts ...ListenerOptions) EventHandler {
	h := EventHandler{Event: name, Handler: handler}
	if len(opts) > 0 {
		h.Options = opts[0]
	}
	return h
}

// OnClick binds a click handler.
func OnClick(handler Handler) EventHandler { return On("click", handler) }

// OnInput binds an input handler.
func OnInput(handler Handler) EventHandler { return On("input", handler) }

// OnChange binds a change handler.
func OnChange(handler Handler) EventHandler { return On("change", handler) }

// OnSubmit binds a submit handler.
func OnSubmit(handler Handler) EventHandler { return On("submit", handler) }

// OnKeyDown binds a keydown handler.
func OnKeyDown(handler Handler) EventHandler { return On("keydown", handler) }
