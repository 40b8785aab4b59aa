package scope

import (
	"strconv"
	"strings"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/util"
)

// Marker classes the framework toggles on elements.
const (
	ClassDraggable = "DRAGGABLE"
	ClassDropzone  = "DROPZONE"
	ClassStarted   = "STARTED"
	ClassComplete  = "COMPLETE"
	ClassOpen      = "OPEN"
	ClassLeave     = "LEAVE"
	framePrefix    = "FRAME-"
)

// Built-in property names.
const (
	PropSize      = "size"
	PropPosition  = "position"
	PropDraggable = "draggable"
	PropDropzone  = "dropzone"
	PropFrame     = "frame"
	PropComponent = "component"
	PropRequired  = "required"
	PropRef       = "ref"
)

// Properties are the prefixed attributes captured from a scope's elements,
// in declaration order.
type Properties struct {
	names  []string
	values map[string]string
}

func newProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

func (p *Properties) set(name, value string) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns a captured value. A camelCase name also finds the kebab-case
// attribute, so Get("dropTarget") reads pl-drop-target.
func (p *Properties) Get(name string) (string, bool) {
	if v, ok := p.values[name]; ok {
		return v, true
	}
	v, ok := p.values[util.Kebab(name)]
	return v, ok
}

func (p *Properties) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

func (p *Properties) Len() int { return len(p.names) }

// Names lists captured property names in capture order.
func (p *Properties) Names() []string { return append([]string(nil), p.names...) }

// Map copies the captured values.
func (p *Properties) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func (s *Scope) installBuiltins() {
	s.screenHandlers[PropSize] = s.handleSize
	s.screenHandlers[PropPosition] = s.handlePosition
	s.screenHandlers[PropDraggable] = s.handleDraggable
	s.screenHandlers[PropDropzone] = s.handleDropzone
	s.screenHandlers[PropFrame] = s.handleFrame
	s.screenHandlers[PropComponent] = s.handleComponent
	s.screenHandlers[PropRequired] = s.handleRequired
}

func (s *Scope) handleSize(el *dom.Element, name, value string) {
	w, h, ok := pair(value, "x")
	if !ok {
		s.logger.Warn("malformed size property", log.String("value", value))
		return
	}
	el.SetStyle("width", w)
	el.SetStyle("height", h)
}

func (s *Scope) handlePosition(el *dom.Element, name, value string) {
	x, y, ok := pair(value, ",")
	if !ok {
		s.logger.Warn("malformed position property", log.String("value", value))
		return
	}
	el.SetStyle("left", x)
	el.SetStyle("top", y)
}

func (s *Scope) handleDraggable(el *dom.Element, name, value string) {
	el.AddClass(ClassDraggable)
	el.SetData(PropDraggable, value)
	if e := s.nearestEntity(); e != nil {
		e.enableDrag(el)
	}
}

func (s *Scope) handleDropzone(el *dom.Element, name, value string) {
	el.AddClass(ClassDropzone)
	el.SetData(PropDropzone, value)
	if e := s.nearestEntity(); e != nil {
		e.addDropzone(el)
	}
}

func (s *Scope) handleFrame(el *dom.Element, name, value string) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		s.logger.Warn("malformed frame property", log.String("value", value), log.Error(err))
		return
	}
	SetFrame(el, n)
}

// SetFrame moves el to animation frame n.
func SetFrame(el *dom.Element, n int) {
	for _, c := range el.Classes() {
		if strings.HasPrefix(c, framePrefix) {
			el.RemoveClass(c)
		}
	}
	el.SetData(PropFrame, n)
	el.AddClass(framePrefix + strconv.Itoa(n))
}

// handleComponent instantiates the named component on an owned descendant.
func (s *Scope) handleComponent(el *dom.Element, name, value string) {
	if s.elements.Has(el) {
		return
	}
	if _, bound := Of(el); bound {
		return
	}
	typ, err := s.rt.Components().Lookup(value)
	if err != nil {
		s.logger.Error("component property not resolved", log.String("component", value), log.Error(err))
		return
	}
	e := newEntity(s.rt, typ, TypeEntity)
	e.parent = s
	e.outer = e
	e.define()
	if s.adopt(e.Scope, el) {
		s.entities = append(s.entities, e)
	}
}

// handleRequired makes the requiring entity wait for el's scope. On the
// scope's own element the requirer is the parent.
func (s *Scope) handleRequired(el *dom.Element, name, value string) {
	requirer := s
	if s.elements.Has(el) {
		requirer = s.parent
	}
	if requirer == nil {
		return
	}
	e := requirer.nearestEntity()
	if e == nil {
		return
	}
	id := el.ID()
	if child, ok := Of(el); ok {
		id = child.ID()
	}
	if id == "" {
		s.logger.Warn("required element has no id", log.String("tag", el.Tag()))
		return
	}
	e.Require(id)
}

func (s *Scope) nearestEntity() *Entity {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.entity != nil {
			return cur.entity
		}
	}
	return nil
}

func pair(value, sep string) (string, string, bool) {
	a, b, ok := strings.Cut(value, sep)
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return cssLength(a), cssLength(b), true
}

func cssLength(v string) string {
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v + "px"
	}
	return v
}
