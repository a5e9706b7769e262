package dom

import (
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/synthdesk/pkg/render"
	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Container is a mount point for one component.
type Container struct {
	mu       sync.RWMutex
	id       string
	html     string
	root     *vdom.VNode
	detached bool
	slots    map[string]*Container

	listeners *ListenerRegistry
}

// NewContainer creates an empty, attached container.
func NewContainer(id string) *Container {
	return &Container{
		id:        id,
		slots:     make(map[string]*Container),
		listeners: NewListenerRegistry(),
	}
}

// ID returns the container id.
func (c *Container) ID() string {
	return c.id
}

// Listeners returns the container's listener registry.
func (c *Container) Listeners() *ListenerRegistry {
	return c.listeners
}

// Clear removes the container's content. Slots are kept so nested
// components can re-render into them.
func (c *Container) Clear() {
	c.mu.Lock()
	c.html = ""
	c.root = nil
	c.mu.Unlock()
}

// Attach replaces the container's content wholesale. It returns false
// when the container is detached.
func (c *Container) Attach(node *vdom.VNode, html string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return false
	}
	c.root = node
	c.html = html
	return true
}

// Root returns the node tree of the last attach.
func (c *Container) Root() *vdom.VNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Empty reports whether the container has no content.
func (c *Container) Empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.html == ""
}

// Detach marks the container and its slots as gone from the document.
// All listeners are dropped.
func (c *Container) Detach() {
	c.mu.Lock()
	c.detached = true
	c.html = ""
	c.root = nil
	slots := make([]*Container, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.Unlock()

	c.listeners.RemoveAll()
	for _, s := range slots {
		s.Detach()
	}
}

// Detached reports whether Detach was called.
func (c *Container) Detached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detached
}

// Slot returns the named child container, creating it on first use.
// Its content is spliced into the placeholder rendered by SlotNode.
func (c *Container) Slot(name string) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[name]; ok {
		return s
	}
	s := NewContainer(c.id + "/" + name)
	if c.detached {
		s.detached = true
	}
	c.slots[name] = s
	return s
}

// RemoveSlot detaches and forgets a child container.
func (c *Container) RemoveSlot(name string) {
	c.mu.Lock()
	s, ok := c.slots[name]
	delete(c.slots, name)
	c.mu.Unlock()
	if ok {
		s.Detach()
	}
}

// SlotNode is the placeholder a parent renders where a slot goes.
func SlotNode(name string) *vdom.VNode {
	return vdom.Div(vdom.Data("slot", name))
}

func slotPlaceholder(name string) string {
	return `<div data-slot="` + render.EscapeAttr(name) + `"></div>`
}

// HTML returns the container markup with slot contents spliced in.
func (c *Container) HTML() string {
	type slot struct {
		name string
		c    *Container
	}

	c.mu.RLock()
	html := c.html
	slots := make([]slot, 0, len(c.slots))
	for name, s := range c.slots {
		slots = append(slots, slot{name, s})
	}
	c.mu.RUnlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].name < slots[j].name })
	for _, s := range slots {
		open := `<div data-slot="` + render.EscapeAttr(s.name) + `">`
		html = strings.Replace(html, slotPlaceholder(s.name), open+s.c.HTML()+`</div>`, 1)
	}
	return html
}

// Dispatch delivers an event to listeners on this container or any slot.
// It returns how many handlers ran; a detached container runs none.
func (c *Container) Dispatch(target, event string, ev vdom.Event) int {
	if c.Detached() {
		return 0
	}
	n := c.listeners.Dispatch(target, event, ev)

	c.mu.RLock()
	slots := make([]*Container, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.RUnlock()

	for _, s := range slots {
		n += s.Dispatch(target, event, ev)
	}
	return n
}
