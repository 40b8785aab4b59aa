package dom

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type Attribute struct {
	Name  string
	Value string
}

// Rect is an absolute box in document coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Element is an identity-stable handle on an element node: the same node
// always yields the same *Element.
type Element struct {
	doc       *Document
	node      *html.Node
	style     map[string]string
	data      map[string]any
	listeners map[string][]*listener
	nextID    int
}

func (e *Element) Document() *Document { return e.doc }
func (e *Element) Node() *html.Node    { return e.node }
func (e *Element) Tag() string         { return e.node.Data }

func (e *Element) ID() string {
	id, _ := e.Attr("id")
	return id
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) RemoveAttr(name string) {
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			return
		}
	}
}

// Attrs returns the attributes in declaration order.
func (e *Element) Attrs() []Attribute {
	out := make([]Attribute, 0, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out = append(out, Attribute{Name: a.Key, Value: a.Val})
	}
	return out
}

func (e *Element) Classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) HasClass(class string) bool {
	for _, c := range e.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// AddClass adds the missing classes and reports whether anything changed.
func (e *Element) AddClass(classes ...string) bool {
	cur := e.Classes()
	changed := false
	for _, c := range classes {
		if c == "" || contains(cur, c) {
			continue
		}
		cur = append(cur, c)
		changed = true
	}
	if changed {
		e.SetAttr("class", strings.Join(cur, " "))
	}
	return changed
}

func (e *Element) RemoveClass(classes ...string) bool {
	cur := e.Classes()
	kept := cur[:0]
	for _, c := range cur {
		if !contains(classes, c) {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(e.Classes()) {
		return false
	}
	e.SetAttr("class", strings.Join(kept, " "))
	return true
}

func (e *Element) Style(name string) string { return e.style[name] }

func (e *Element) SetStyle(name, value string) {
	if e.style == nil {
		e.style = make(map[string]string)
	}
	if value == "" {
		delete(e.style, name)
		return
	}
	e.style[name] = value
}

// StyleString renders the style map as a CSS declaration list sorted by property.
func (e *Element) StyleString() string {
	keys := make([]string, 0, len(e.style))
	for k := range e.style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.style[k]
	}
	return strings.Join(parts, "; ")
}

func (e *Element) Data(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

func (e *Element) SetData(key string, v any) {
	if e.data == nil {
		e.data = make(map[string]any)
	}
	e.data[key] = v
}

func (e *Element) RemoveData(key string) { delete(e.data, key) }

// Rect reports the absolute box from the left/top offsets of e and its
// ancestors and e's own width/height.
func (e *Element) Rect() Rect {
	r := Rect{Width: px(e.style["width"]), Height: px(e.style["height"])}
	for cur := e; cur != nil; cur = cur.Parent() {
		r.X += px(cur.style["left"])
		r.Y += px(cur.style["top"])
	}
	return r
}

func (e *Element) Parent() *Element {
	return e.doc.wrap(e.node.Parent)
}

func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// Descendants lists every element below e in document order.
func (e *Element) Descendants() []*Element {
	var out []*Element
	walk(e.node, func(n *html.Node) { out = append(out, e.doc.wrap(n)) })
	return out
}

// Contains reports whether other is a strict descendant of e.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	for p := other.node.Parent; p != nil; p = p.Parent {
		if p == e.node {
			return true
		}
	}
	return false
}

// Closest returns e or its nearest ancestor accepted by fn.
func (e *Element) Closest(fn func(*Element) bool) *Element {
	for cur := e; cur != nil; cur = cur.Parent() {
		if fn(cur) {
			return cur
		}
	}
	return nil
}

// Find returns the descendants of e matching selector.
func (e *Element) Find(selector string) (Selection, error) {
	match, err := e.doc.compile(selector)
	if err != nil {
		return nil, err
	}
	var out Selection
	walk(e.node, func(n *html.Node) {
		if match.Match(n) {
			out = append(out, e.doc.wrap(n))
		}
	})
	return out, nil
}

func (e *Element) Matches(selector string) (bool, error) {
	match, err := e.doc.compile(selector)
	if err != nil {
		return false, err
	}
	return match.Match(e.node), nil
}

func (e *Element) Text() string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(e.node)
	return strings.TrimSpace(b.String())
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func px(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil {
		return 0
	}
	return f
}
