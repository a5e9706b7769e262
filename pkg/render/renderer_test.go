package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	. "github.com/vango-dev/synthdesk/pkg/vdom"
)

func TestRenderGolden(t *testing.T) {
	var bound []string
	r := NewRenderer(RendererConfig{
		HIDPrefix: "c1-",
		OnHandler: func(hid string, h EventHandler) {
			bound = append(bound, hid+":"+h.Event)
		},
	})

	node := Div(
		ID("card"),
		Class("model"),
		H2("Models & <Rules>"),
		Button(OnClick(func(Event) {}), Disabled(false), Type("button"), "Delete"),
		Input(Type("text"), Value(`a"b`), Disabled(true)),
	)

	html, err := r.RenderToString(node)
	if err != nil {
		t.Fatalf("RenderToString: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "card", []byte(html))

	if len(bound) != 1 || bound[0] != "c1-h1:click" {
		t.Errorf("bound handlers = %v", bound)
	}
	if node.Children[1].HID != "c1-h1" {
		t.Errorf("HID = %q, want c1-h1", node.Children[1].HID)
	}
}

func TestRenderEscapesText(t *testing.T) {
	tests := []struct {
		name string
		node *VNode
		want string
	}{
		{"script text", P(`<script>alert("x")</script>`), `<p>&lt;script&gt;alert(&quot;x&quot;)&lt;/script&gt;</p>`},
		{"attribute breakout", Div(AttrOf("title", "\" onmouseover=\"x")), `<div title="&quot; onmouseover=&quot;x"></div>`},
		{"newline in attr", Div(AttrOf("title", "a\nb")), `<div title="a&#10;b"></div>`},
		{"raw passthrough", Raw("<b>ok</b>"), `<b>ok</b>`},
		{"fragment", Fragment(Span("a"), "b"), `<span>a</span>b`},
		{"void element", El("br"), `<br>`},
		{"numeric attr", Td(AttrOf("colspan", 2)), `<td colspan="2"></td>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRenderer(RendererConfig{}).RenderToString(tt.node)
			if err != nil {
				t.Fatalf("RenderToString: %v", err)
			}
			if got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestRenderRejectsInvalidNames(t *testing.T) {
	r := NewRenderer(RendererConfig{})
	if _, err := r.RenderToString(Div(AttrOf("x onload", "1"))); err == nil {
		t.Error("expected error for attribute name with space")
	}
	if _, err := r.RenderToString(El("div><script")); err == nil {
		t.Error("expected error for bad tag name")
	}
}

func TestRenderHIDsAreSequential(t *testing.T) {
	noop := func(Event) {}
	var hids []string
	r := NewRenderer(RendererConfig{OnHandler: func(hid string, _ EventHandler) {
		hids = append(hids, hid)
	}})

	_, err := r.RenderToString(Div(
		Button(OnClick(noop)),
		Span("static"),
		Input(OnInput(noop), OnChange(noop)),
	))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"h1", "h2", "h2"}
	if strings.Join(hids, ",") != strings.Join(want, ",") {
		t.Errorf("hids = %v, want %v", hids, want)
	}

	r.Reset()
	hids = nil
	_, _ = r.RenderToString(Button(OnClick(noop)))
	if len(hids) != 1 || hids[0] != "h1" {
		t.Errorf("after Reset hids = %v", hids)
	}
}

func TestErrorView(t *testing.T) {
	html, err := NewRenderer(RendererConfig{}).RenderToString(ErrorView(errors.New("<boom>")))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, `class="component-error"`) || !strings.Contains(html, "&lt;boom&gt;") {
		t.Errorf("ErrorView html = %s", html)
	}
}

func TestNotFoundView(t *testing.T) {
	html, _ := NewRenderer(RendererConfig{}).RenderToString(NotFoundView("/nope"))
	if !strings.Contains(html, "<code>/nope</code>") {
		t.Errorf("NotFoundView html = %s", html)
	}
}

func TestRenderPage(t *testing.T) {
	var b strings.Builder
	err := RenderPage(&b, PageData{
		Title:   "Models & Rules",
		Banners: `<div class="banners"></div>`,
		Body:    "<p>hi</p>",
		Scripts: []string{"/static/app.js"},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>Models &amp; Rules</title>",
		`<div class="banners"></div>`,
		`<div id="app"><p>hi</p></div>`,
		`<script src="/static/app.js" defer></script>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("page missing %q", want)
		}
	}
}
