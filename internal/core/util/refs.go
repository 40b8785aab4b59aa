package util

import "github.com/zeusync/playscope/internal/core/dom"

// CollectRefs maps the value of attr to its element for every element in sel
// and their descendants. When two elements share a ref the first in document
// order wins.
func CollectRefs(sel dom.Selection, attr string) map[string]*dom.Element {
	refs := make(map[string]*dom.Element)
	add := func(el *dom.Element) {
		if name, ok := el.Attr(attr); ok && name != "" {
			if _, dup := refs[name]; !dup {
				refs[name] = el
			}
		}
	}
	for _, el := range sel {
		add(el)
		for _, d := range el.Descendants() {
			add(d)
		}
	}
	return refs
}
