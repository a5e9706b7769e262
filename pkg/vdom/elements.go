package vdom

// voidElements are elements that cannot have children.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoidElement returns true if the tag is a void element.
func IsVoidElement(tag string) bool {
	return voidElements[tag]
}

// El creates an element. Arguments can be: nil, Attr, []Attr,
// EventHandler, *VNode, []*VNode, or string (text child).
func El(tag string, args ...any) *VNode {
	node := &VNode{
		Kind:  KindElement,
		Tag:   tag,
		Props: make(Props),
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			continue
		case Attr:
			node.setAttr(v)
		case []Attr:
			for _, a := range v {
				node.setAttr(a)
			}
		case EventHandler:
			if v.Event != "" && v.Handler != nil {
				node.Props["on"+v.Event] = v
			}
		case *VNode:
			if v != nil {
				node.Children = append(node.Children, v)
			}
		case []*VNode:
			for _, c := range v {
				if c != nil {
					node.Children = append(node.Children, c)
				}
			}
		case string:
			node.Children = append(node.Children, Text(v))
		}
	}

	return node
}

func (v *VNode) setAttr(a Attr) {
	if a.IsEmpty() {
		return
	}
	if a.Key == "key" {
		if s, ok := a.Value.(string); ok {
			v.Key = s
		}
		return
	}
	v.Props[a.Key] = a.Value
}

func Div(args ...any) *VNode     { return El("div", args...) }
func Span(args ...any) *VNode    { return El("span", args...) }
func P(args ...any) *VNode       { return El("p", args...) }
func H1(args ...any) *VNode      { return El("h1", args...) }
func H2(args ...any) *VNode      { return El("h2", args...) }
func H3(args ...any) *VNode      { return El("h3", args...) }
func A(args ...any) *VNode       { return El("a", args...) }
func Button(args ...any) *VNode  { return El("button", args...) }
func Ul(args ...any) *VNode      { return El("ul", args...) }
func Li(args ...any) *VNode      { return El("li", args...) }
func Table(args ...any) *VNode   { return El("table", args...) }
func Thead(args ...any) *VNode   { return El("thead", args...) }
func Tbody(args ...any) *VNode   { return El("tbody", args...) }
func Tr(args ...any) *VNode      { return El("tr", args...) }
func Th(args ...any) *VNode      { return El("th", args...) }
func Td(args ...any) *VNode      { return El("td", args...) }
func Form(args ...any) *VNode    { return El("form", args...) }
func Input(args ...any) *VNode   { return El("input", args...) }
func Label(args ...any) *VNode   { return El("label", args...) }
func Section(args ...any) *VNode { return El("section", args...) }
func Nav(args ...any) *VNode     { return El("nav", args...) }
func Main(args ...any) *VNode    { return El("main", args...) }
