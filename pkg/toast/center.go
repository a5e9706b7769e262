package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// Toast is one banner held by a Center.
type Toast struct {
	ID          string
	Level       Type
	Title       string
	Message     string
	ActionLabel string
	ActionHref  string

	// Sticky toasts stay until dismissed or pushed out by newer ones.
	Sticky  bool
	Created time.Time
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithLimit sets how many toasts are kept. Older ones are dropped first.
func WithLimit(n int) CenterOption {
	return func(c *Center) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithTTL sets how long non-sticky toasts are shown.
func WithTTL(d time.Duration) CenterOption {
	return func(c *Center) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) CenterOption {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

// Center is an in-memory Sink that keeps recent toasts. Error toasts are
// sticky unless the event data says otherwise.
type Center struct {
	limit int
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	toasts []Toast
}

// NewCenter creates an empty center.
func NewCenter(opts ...CenterOption) *Center {
	c := &Center{
		limit: 5,
		ttl:   5 * time.Second,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Emit implements Sink. Events other than EventName are ignored.
func (c *Center) Emit(name string, data any) {
	if name != EventName {
		return
	}
	m, ok := data.(map[string]any)
	if !ok {
		return
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	t := Toast{
		ID:          uuid.NewString(),
		Level:       Type(str("level")),
		Title:       str("title"),
		Message:     str("message"),
		ActionLabel: str("actionLabel"),
		ActionHref:  str("actionHref"),
		Created:     c.now(),
	}
	if t.Level == "" {
		t.Level = TypeInfo
	}
	t.Sticky = t.Level == TypeError
	if sticky, ok := m["sticky"].(bool); ok {
		t.Sticky = sticky
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, t)
	if over := len(c.toasts) - c.limit; over > 0 {
		c.toasts = append([]Toast(nil), c.toasts[over:]...)
	}
}

// Toasts returns the live toasts, oldest first, dropping expired ones.
func (c *Center) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	live := c.toasts[:0]
	for _, t := range c.toasts {
		if t.Sticky || now.Sub(t.Created) < c.ttl {
			live = append(live, t)
		}
	}
	c.toasts = live
	return append([]Toast(nil), live...)
}

// Dismiss removes a toast. It reports whether the toast was present.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every toast.
func (c *Center) Clear() {
	c.mu.Lock()
	c.toasts = nil
	c.mu.Unlock()
}

// Render returns the banner strip, or nil when there is nothing to show.
func (c *Center) Render() *vdom.VNode {
	toasts := c.Toasts()
	if len(toasts) == 0 {
		return nil
	}
	return vdom.Div(
		vdom.Class("toasts"),
		vdom.Role("status"),
		vdom.Range(toasts, func(_ int, t Toast) *vdom.VNode {
			return vdom.Div(
				vdom.Key(t.ID),
				vdom.Class("toast", "toast--"+string(t.Level)),
				vdom.Data("toast-id", t.ID),
				vdom.If(t.Title != "", vdom.El("strong", vdom.Class("toast__title"), t.Title)),
				vdom.Span(vdom.Class("toast__message"), t.Message),
				vdom.If(t.ActionHref != "", vdom.A(vdom.Class("toast__action"), vdom.Href(t.ActionHref), t.ActionLabel)),
				vdom.Button(
					vdom.Class("toast__dismiss"),
					vdom.AttrOf("aria-label", "Dismiss"),
					vdom.OnClick(func(vdom.Event) { c.Dismiss(t.ID) }),
					"×",
				),
			)
		}),
	)
}
