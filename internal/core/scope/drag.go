package scope

import (
	"fmt"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
)

// Pointer events delivered by the drag manager. Their detail is a Point.
const (
	EventDragStart = "dragstart"
	EventDragMove  = "dragmove"
	EventDragEnd   = "dragend"
)

// Behaviors a drag is routed to.
const (
	BehaviorGrab     = "grab"
	BehaviorDragging = "dragging"
	BehaviorRelease  = "release"
)

const dragBoundKey = "drag-bound"

type Point struct {
	X, Y float64
}

func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// DragState tracks one drag gesture from grab to release.
type DragState struct {
	Element *dom.Element
	// Start is the cursor at grab time, StartRect the element's box then.
	Start     Point
	StartRect dom.Rect
	// Point is the live cursor, Distance its offset from Start.
	Point    Point
	Distance Point
	// Transform is the translation applied to the element.
	Transform string
	// Dropzone is the zone under the cursor at release, if any.
	Dropzone *dom.Element
}

// Dragging returns the gesture in progress, nil when idle.
func (e *Entity) Dragging() *DragState { return e.drag }

// Dropzones lists the drop targets registered on the entity.
func (e *Entity) Dropzones() []*dom.Element { return append([]*dom.Element(nil), e.dropzones...) }

func (e *Entity) addDropzone(el *dom.Element) {
	for _, z := range e.dropzones {
		if z == el {
			return
		}
	}
	e.dropzones = append(e.dropzones, el)
}

// enableDrag routes the drag manager's pointer events on el to the grab,
// dragging and release behaviors, installing pass-through behaviors for any
// the entity has not defined.
func (e *Entity) enableDrag(el *dom.Element) {
	if _, ok := el.Data(dragBoundKey); ok {
		return
	}
	el.SetData(dragBoundKey, true)
	e.dragSources = append(e.dragSources, el)
	for _, name := range []string{BehaviorGrab, BehaviorDragging, BehaviorRelease} {
		if !e.HasBehavior(name) {
			e.Behavior(name, nil)
		}
	}
	el.On(EventDragStart, func(ev *dom.Event) {
		ev.StopPropagation()
		p, ok := pointOf(ev.Detail)
		if !ok {
			return
		}
		e.drag = &DragState{Element: el, Start: p, StartRect: el.Rect(), Point: p}
		e.Do(BehaviorGrab, e.drag)
	})
	el.On(EventDragMove, func(ev *dom.Event) {
		ev.StopPropagation()
		p, ok := pointOf(ev.Detail)
		if !ok || e.drag == nil || e.drag.Element != el {
			return
		}
		e.drag.Point = p
		e.drag.Distance = p.Sub(e.drag.Start)
		e.drag.Transform = fmt.Sprintf("translate(%gpx, %gpx)", e.drag.Distance.X, e.drag.Distance.Y)
		el.SetStyle("transform", e.drag.Transform)
		e.Do(BehaviorDragging, e.drag)
	})
	el.On(EventDragEnd, func(ev *dom.Event) {
		ev.StopPropagation()
		st := e.drag
		if st == nil || st.Element != el {
			return
		}
		if p, ok := pointOf(ev.Detail); ok {
			st.Point = p
			st.Distance = p.Sub(st.Start)
		}
		st.Dropzone = e.dropzoneAt(st.Point, el)
		e.drag = nil
		e.Do(BehaviorRelease, st)
	})
	e.logger.Debug("drag source enabled", log.String("entity", e.id), log.String("element", describe(el)))
}

// dropzoneAt hit-tests the dropzones of e and its ancestors, nearest entity
// first.
func (e *Entity) dropzoneAt(p Point, source *dom.Element) *dom.Element {
	for cur := e.Scope; cur != nil; cur = cur.parent {
		if cur.entity == nil {
			continue
		}
		for _, z := range cur.entity.dropzones {
			if z == source {
				continue
			}
			if z.Rect().Contains(p.X, p.Y) {
				return z
			}
		}
	}
	return nil
}

func pointOf(detail any) (Point, bool) {
	switch p := detail.(type) {
	case Point:
		return p, true
	case *Point:
		if p != nil {
			return *p, true
		}
	}
	return Point{}, false
}
