package dom

import (
	"testing"

	"github.com/vango-dev/synthdesk/pkg/vdom"
)

func TestListenerRegistryAddRemove(t *testing.T) {
	r := NewListenerRegistry()
	calls := 0
	id := r.Add("h1", "click", func(vdom.Event) { calls++ }, vdom.ListenerOptions{})
	r.Add("h2", "click", func(vdom.Event) { calls += 10 }, vdom.ListenerOptions{})

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if n := r.Dispatch("h1", "click", vdom.Event{}); n != 1 || calls != 1 {
		t.Errorf("Dispatch ran %d handlers, calls = %d", n, calls)
	}
	if !r.Remove(id) {
		t.Error("Remove should report the listener was present")
	}
	if r.Remove(id) {
		t.Error("second Remove should report false")
	}
	if n := r.Dispatch("h1", "click", vdom.Event{}); n != 0 {
		t.Errorf("removed listener still ran (%d)", n)
	}
}

func TestListenerRegistryOnce(t *testing.T) {
	r := NewListenerRegistry()
	calls := 0
	r.Add("h1", "click", func(vdom.Event) { calls++ }, vdom.ListenerOptions{Once: true})

	r.Dispatch("h1", "click", vdom.Event{})
	r.Dispatch("h1", "click", vdom.Event{})
	if calls != 1 {
		t.Errorf("once listener ran %d times", calls)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after once listener fired", r.Len())
	}
}

func TestDispatchFillsEvent(t *testing.T) {
	r := NewListenerRegistry()
	var got vdom.Event
	r.Add("h3", "input", func(ev vdom.Event) { got = ev }, vdom.ListenerOptions{})
	r.Dispatch("h3", "input", vdom.Event{Value: "abc"})
	if got.Type != "input" || got.Target != "h3" || got.Value != "abc" {
		t.Errorf("event = %+v", got)
	}
}

func TestContainerAttachAndDetach(t *testing.T) {
	c := NewContainer("app")
	if !c.Empty() {
		t.Error("new container should be empty")
	}
	node := vdom.P("hi")
	if !c.Attach(node, "<p>hi</p>") {
		t.Fatal("Attach on live container should succeed")
	}
	if c.HTML() != "<p>hi</p>" || c.Root() != node {
		t.Errorf("HTML() = %q", c.HTML())
	}

	c.Clear()
	if !c.Empty() || c.Root() != nil {
		t.Error("Clear should empty the container")
	}

	c.Listeners().Add("h1", "click", func(vdom.Event) {}, vdom.ListenerOptions{})
	c.Detach()
	if c.Attach(node, "<p>late</p>") {
		t.Error("Attach on detached container should be refused")
	}
	if c.HTML() != "" {
		t.Errorf("detached container HTML = %q", c.HTML())
	}
	if c.Listeners().Len() != 0 {
		t.Error("Detach should drop listeners")
	}
}

func TestContainerSlots(t *testing.T) {
	parent := NewContainer("app")
	parent.Attach(nil, `<main><div data-slot="page"></div><div data-slot="side"></div></main>`)

	page := parent.Slot("page")
	if parent.Slot("page") != page {
		t.Fatal("Slot should return the same container")
	}
	page.Attach(nil, "<h1>Models</h1>")
	parent.Slot("side").Attach(nil, "<nav></nav>")

	want := `<main><div data-slot="page"><h1>Models</h1></div><div data-slot="side"><nav></nav></div></main>`
	if got := parent.HTML(); got != want {
		t.Errorf("HTML() =\n%s\nwant\n%s", got, want)
	}

	clicked := 0
	page.Listeners().Add("p-h1", "click", func(vdom.Event) { clicked++ }, vdom.ListenerOptions{})
	if n := parent.Dispatch("p-h1", "click", vdom.Event{}); n != 1 || clicked != 1 {
		t.Errorf("slot dispatch ran %d handlers", n)
	}

	parent.RemoveSlot("page")
	if !page.Detached() {
		t.Error("RemoveSlot should detach the slot")
	}
	if n := parent.Dispatch("p-h1", "click", vdom.Event{}); n != 0 {
		t.Error("removed slot should not receive events")
	}
}

func TestSlotNodeMatchesPlaceholder(t *testing.T) {
	n := SlotNode("page")
	if n.Tag != "div" || n.Props["data-slot"] != "page" {
		t.Errorf("SlotNode = %+v", n)
	}
}
