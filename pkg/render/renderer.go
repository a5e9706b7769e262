package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/synthdesk/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// HIDPrefix namespaces the handler ids of one render pass, so two
	// components mounted on one page never share an id.
	HIDPrefix string

	// OnHandler is called for every event handler found while rendering.
	OnHandler func(hid string, h vdom.EventHandler)
}

// Renderer renders VNode trees to HTML. A Renderer is not safe for
// concurrent use; create one per render pass.
type Renderer struct {
	config     RendererConfig
	hidCounter int
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	return &Renderer{config: config}
}

// RenderToString renders a VNode tree to an HTML string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	return r.renderNode(w, node)
}

// Reset clears the HID counter for reuse.
func (r *Renderer) Reset() {
	r.hidCounter = 0
}

func (r *Renderer) renderNode(w io.Writer, node *vdom.VNode) error {
	if node == nil {
		return nil
	}

	switch node.Kind {
	case vdom.KindElement:
		return r.renderElement(w, node)
	case vdom.KindText:
		_, err := io.WriteString(w, EscapeHTML(node.Text))
		return err
	case vdom.KindFragment:
		for _, child := range node.Children {
			if err := r.renderNode(w, child); err != nil {
				return err
			}
		}
		return nil
	case vdom.KindRaw:
		_, err := io.WriteString(w, node.Text)
		return err
	default:
		return fmt.Errorf("unknown node kind: %d", node.Kind)
	}
}

func (r *Renderer) renderElement(w io.Writer, node *vdom.VNode) error {
	tag := strings.ToLower(node.Tag)
	if !validAttrName(tag) {
		return fmt.Errorf("invalid tag name %q", node.Tag)
	}

	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tag)

	if err := writeAttributes(&b, node.Props); err != nil {
		return err
	}

	if handlers := node.Handlers(); len(handlers) > 0 {
		r.hidCounter++
		hid := r.config.HIDPrefix + "h" + strconv.Itoa(r.hidCounter)
		node.HID = hid
		b.WriteString(` data-hid="`)
		b.WriteString(EscapeAttr(hid))
		b.WriteByte('"')

		if r.config.OnHandler != nil {
			events := make([]string, 0, len(handlers))
			for name := range handlers {
				events = append(events, name)
			}
			sort.Strings(events)
			for _, name := range events {
				r.config.OnHandler(hid, handlers[name])
			}
		}
	}
	b.WriteByte('>')

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if vdom.IsVoidElement(tag) {
		return nil
	}

	for _, child := range node.Children {
		if err := r.renderNode(w, child); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "</%s>", tag)
	return err
}

// writeAttributes writes props in sorted order, skipping event handlers.
func writeAttributes(b *strings.Builder, props vdom.Props) error {
	if len(props) == 0 {
		return nil
	}

	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := props[key]
		if _, ok := value.(vdom.EventHandler); ok {
			continue
		}
		if !validAttrName(key) {
			return fmt.Errorf("invalid attribute name %q", key)
		}

		switch v := value.(type) {
		case nil:
			continue
		case bool:
			if v {
				b.WriteByte(' ')
				b.WriteString(key)
			}
			continue
		}

		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(EscapeAttr(attrToString(value)))
		b.WriteByte('"')
	}
	return nil
}

func attrToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ErrorView is the in-place block shown when a component fails.
func ErrorView(err error) *vdom.VNode {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return vdom.Div(
		vdom.Class("component-error"),
		vdom.Role("alert"),
		vdom.Div(vdom.Class("component-error__title"), "Something went wrong"),
		vdom.Div(vdom.Class("component-error__message"), msg),
	)
}

// NotFoundView is the default view for paths without a route.
func NotFoundView(path string) *vdom.VNode {
	return vdom.Section(
		vdom.Class("not-found"),
		vdom.H1("Page not found"),
		vdom.P("No page exists at ", vdom.El("code", path), "."),
		vdom.A(vdom.Href("/"), "Back to dashboard"),
	)
}
