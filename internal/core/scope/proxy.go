package scope

import (
	"github.com/zeusync/playscope/internal/core/dom"
)

type deferredListener struct {
	typ     string
	fn      dom.Listener
	cancel  func()
	removed bool
}

// On subscribes fn to events of typ on every backing element. Before the
// scope is bound the subscription is recorded and attached at bind time; the
// returned func cancels it in either case.
func (s *Scope) On(typ string, fn dom.Listener) func() {
	d := &deferredListener{typ: typ, fn: fn}
	if s.Bound() {
		d.cancel = s.elements.On(typ, fn)
	} else {
		s.deferred = append(s.deferred, d)
	}
	return func() {
		if d.removed {
			return
		}
		d.removed = true
		if d.cancel != nil {
			d.cancel()
		}
	}
}

func (s *Scope) replay() {
	pending := s.deferred
	s.deferred = nil
	for _, d := range pending {
		if d.removed {
			continue
		}
		d.cancel = s.elements.On(d.typ, d.fn)
	}
}

// Trigger dispatches typ from the first backing element.
func (s *Scope) Trigger(typ string, detail any) *dom.Event {
	el := s.Element()
	if el == nil {
		s.logger.Warn("trigger on unbound scope ignored")
		return nil
	}
	return el.Trigger(typ, detail)
}

func (s *Scope) AddClass(classes ...string)    { s.elements.AddClass(classes...) }
func (s *Scope) RemoveClass(classes ...string) { s.elements.RemoveClass(classes...) }

// HasClass reports whether any backing element carries class.
func (s *Scope) HasClass(class string) bool { return s.elements.HasClass(class) }

// Attr reads from the first backing element.
func (s *Scope) Attr(name string) (string, bool) { return s.elements.Attr(name) }
func (s *Scope) SetAttr(name, value string)      { s.elements.SetAttr(name, value) }

// Css sets one style property on every backing element.
func (s *Scope) Css(name, value string) { s.elements.SetStyle(name, value) }

// Find looks up descendants of the backing elements.
func (s *Scope) Find(selector string) (dom.Selection, error) {
	if !s.Bound() {
		return nil, ErrNotBound
	}
	return s.elements.Find(selector)
}
