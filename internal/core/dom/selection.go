package dom

// Selection is an ordered set of elements treated as one addressable unit.
// Reads come from the first element, writes apply to all of them.
type Selection []*Element

func (s Selection) Len() int { return len(s) }

func (s Selection) First() *Element {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

func (s Selection) Index(el *Element) int {
	for i, cur := range s {
		if cur == el {
			return i
		}
	}
	return -1
}

func (s Selection) Has(el *Element) bool { return s.Index(el) >= 0 }

func (s Selection) Filter(fn func(*Element) bool) Selection {
	var out Selection
	for _, el := range s {
		if fn(el) {
			out = append(out, el)
		}
	}
	return out
}

// Find returns the union of matching descendants without duplicates.
func (s Selection) Find(selector string) (Selection, error) {
	var out Selection
	seen := make(map[*Element]struct{})
	for _, el := range s {
		found, err := el.Find(selector)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out, nil
}

// Owns reports whether el is one of s or a descendant of one of them.
func (s Selection) Owns(el *Element) bool {
	for _, cur := range s {
		if cur == el || cur.Contains(el) {
			return true
		}
	}
	return false
}

func (s Selection) Attr(name string) (string, bool) {
	if first := s.First(); first != nil {
		return first.Attr(name)
	}
	return "", false
}

func (s Selection) SetAttr(name, value string) {
	for _, el := range s {
		el.SetAttr(name, value)
	}
}

// HasClass reports whether any element carries class.
func (s Selection) HasClass(class string) bool {
	for _, el := range s {
		if el.HasClass(class) {
			return true
		}
	}
	return false
}

func (s Selection) AddClass(classes ...string) {
	for _, el := range s {
		el.AddClass(classes...)
	}
}

func (s Selection) RemoveClass(classes ...string) {
	for _, el := range s {
		el.RemoveClass(classes...)
	}
}

func (s Selection) SetStyle(name, value string) {
	for _, el := range s {
		el.SetStyle(name, value)
	}
}

// On registers fn on every element and returns a func removing all of them.
func (s Selection) On(typ string, fn Listener) func() {
	cancels := make([]func(), 0, len(s))
	for _, el := range s {
		cancels = append(cancels, el.On(typ, fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
