// Package dom is the element collaborator the scope machinery binds to: a
// headless document parsed from HTML with the handful of operations the core
// needs (lookup, attributes, classes, style, data, geometry, events).
//
// A Document is not safe for concurrent use; like a browser page it belongs
// to the goroutine driving the game.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var ErrBadSelector = errors.New("dom: invalid selector")

type Document struct {
	root      *html.Node
	elements  map[*html.Node]*Element
	selectors map[string]cascadia.Selector
	ready     bool
	readyFns  []func()
}

// Parse builds a Document from HTML markup.
func Parse(r io.Reader) (*Document, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{
		root:      n,
		elements:  make(map[*html.Node]*Element),
		selectors: make(map[string]cascadia.Selector),
	}, nil
}

func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

// Root returns the <html> element.
func (d *Document) Root() *Element {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return nil
}

// Query returns every element in the document matching selector, in document order.
func (d *Document) Query(selector string) (Selection, error) {
	match, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	var out Selection
	walk(d.root, func(n *html.Node) {
		if match.Match(n) {
			out = append(out, d.wrap(n))
		}
	})
	return out, nil
}

// Ready runs fn once the document has been marked ready, immediately if it already is.
func (d *Document) Ready(fn func()) {
	if d.ready {
		fn()
		return
	}
	d.readyFns = append(d.readyFns, fn)
}

// MarkReady flips the document into the ready state and flushes Ready callbacks in order.
func (d *Document) MarkReady() {
	if d.ready {
		return
	}
	d.ready = true
	fns := d.readyFns
	d.readyFns = nil
	for _, fn := range fns {
		fn()
	}
}

func (d *Document) IsReady() bool { return d.ready }

func (d *Document) compile(selector string) (cascadia.Selector, error) {
	if s, ok := d.selectors[selector]; ok {
		return s, nil
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadSelector, selector, err)
	}
	d.selectors[selector] = s
	return s, nil
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elements[n] = el
	return el
}

// walk visits element nodes below n in document order, n excluded.
func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}
