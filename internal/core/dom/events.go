package dom

// Listener receives events dispatched on or bubbling through an element.
type Listener func(ev *Event)

type listener struct {
	id int
	fn Listener
}

// Event is a DOM-level event. Detail carries the custom payload.
type Event struct {
	Type          string
	Target        *Element
	CurrentTarget *Element
	Detail        any
	// NoBubble limits delivery to the target element.
	NoBubble bool

	stopped bool
}

func NewEvent(typ string, detail any) *Event {
	return &Event{Type: typ, Detail: detail}
}

// StopPropagation lets the current element's listeners finish and then halts bubbling.
func (ev *Event) StopPropagation() { ev.stopped = true }
func (ev *Event) Stopped() bool    { return ev.stopped }

// On registers fn for events of typ on e and returns a func that removes it.
func (e *Element) On(typ string, fn Listener) func() {
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	e.nextID++
	l := &listener{id: e.nextID, fn: fn}
	e.listeners[typ] = append(e.listeners[typ], l)
	return func() {
		ls := e.listeners[typ]
		for i, cur := range ls {
			if cur.id == l.id {
				e.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount reports how many listeners e has for typ.
func (e *Element) ListenerCount(typ string) int { return len(e.listeners[typ]) }

// Dispatch delivers ev to e and then to each ancestor until propagation stops.
func (e *Element) Dispatch(ev *Event) {
	if ev.Target == nil {
		ev.Target = e
	}
	for cur := e; cur != nil; cur = cur.Parent() {
		ev.CurrentTarget = cur
		ls := append([]*listener(nil), cur.listeners[ev.Type]...)
		for _, l := range ls {
			l.fn(ev)
		}
		if ev.stopped || ev.NoBubble {
			return
		}
	}
}

// Trigger dispatches a fresh event of typ carrying detail.
func (e *Element) Trigger(typ string, detail any) *Event {
	ev := NewEvent(typ, detail)
	e.Dispatch(ev)
	return ev
}
