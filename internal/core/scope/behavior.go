package scope

import (
	"sort"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/types"
	"github.com/zeusync/playscope/internal/core/util"
)

// BehaviorComplete is emitted by Complete.
const BehaviorComplete = "complete"

// EventBehaviorPrefix prefixes the DOM event type a behavior is re-dispatched
// under once responders have run.
const EventBehaviorPrefix = "behavior:"

// BusBehavior is the bus event type carrying behavior events.
const BusBehavior = "behavior"

// BehaviorFunc runs when a behavior is invoked. Returning false suppresses
// the event; returning a map[string]any merges it into the event.
type BehaviorFunc func(e *Entity, args ...any) any

// ResponderFunc reacts to a behavior event emitted by e or one of its
// descendants.
type ResponderFunc func(e *Entity, ev *BehaviorEvent)

type Responder struct {
	Name string
	Fn   ResponderFunc
}

// BehaviorEvent is the record routed to responders when a behavior fires.
type BehaviorEvent struct {
	Name           string
	Message        any
	TargetScope    *Entity
	BehaviorTarget *dom.Element
	Args           []any
	Extra          map[string]any

	stopped bool
}

// StopPropagation lets the current entity's responders finish and then
// halts routing to further ancestors.
func (ev *BehaviorEvent) StopPropagation() { ev.stopped = true }
func (ev *BehaviorEvent) Stopped() bool    { return ev.stopped }

func (ev *BehaviorEvent) merge(m map[string]any) {
	for k, v := range m {
		switch k {
		case "message":
			ev.Message = v
		case "behaviorTarget":
			if el, ok := v.(*dom.Element); ok {
				ev.BehaviorTarget = el
			}
		default:
			ev.Extra = util.Mixin(ev.Extra, map[string]any{k: v})
		}
	}
}

// Behavior installs a named behavior. Invoking it through Do or the
// implementation instance runs fn and emits the resulting event. Lifecycle
// hook names are reserved and rejected.
func (e *Entity) Behavior(name string, fn BehaviorFunc) bool {
	if isHook(name) {
		e.logger.Warn("behavior name is a lifecycle hook", log.String("behavior", name), log.String("entity", e.id))
		return false
	}
	if _, dup := e.behaviors[name]; dup {
		e.logger.Debug("behavior replaced", log.String("behavior", name))
	}
	e.behaviors[name] = fn
	e.impl.Define(name, func(c *types.Call, args ...any) any {
		return e.Do(name, args...)
	})
	return true
}

func isHook(name string) bool {
	switch name {
	case HookDefine, HookReady, HookStart, HookStop, HookComplete:
		return true
	}
	return false
}

// HasBehavior reports whether name was installed with Behavior.
func (e *Entity) HasBehavior(name string) bool {
	_, ok := e.behaviors[name]
	return ok
}

// Do invokes a behavior and returns the emitted event, or nil when the
// behavior is unknown or its handler suppressed the event. A leading
// *dom.Element or *DragState argument becomes the behavior target.
func (e *Entity) Do(name string, args ...any) *BehaviorEvent {
	fn, ok := e.behaviors[name]
	if !ok {
		e.logger.Warn("undefined behavior", log.String("behavior", name), log.String("entity", e.id))
		return nil
	}
	ev := e.newEvent(name, args)
	if fn != nil {
		switch out := fn(e, args...).(type) {
		case bool:
			if !out {
				e.logger.Debug("behavior suppressed", log.String("behavior", name))
				return nil
			}
		case map[string]any:
			ev.merge(out)
		}
	}
	e.emit(ev)
	return ev
}

func (e *Entity) newEvent(name string, args []any) *BehaviorEvent {
	ev := &BehaviorEvent{
		Name:           name,
		TargetScope:    e,
		BehaviorTarget: e.Element(),
		Args:           args,
		Extra:          make(map[string]any),
	}
	if len(args) > 0 {
		switch t := args[0].(type) {
		case *dom.Element:
			ev.BehaviorTarget = t
		case *DragState:
			ev.BehaviorTarget = t.Element
			ev.Extra["drag"] = t
		}
	}
	return ev
}

// emit routes ev to responders from e up through its ancestors, then
// re-dispatches it on the DOM and the runtime bus for outside observers.
func (e *Entity) emit(ev *BehaviorEvent) {
	e.route(ev)
	if el := e.Element(); el != nil {
		el.Dispatch(&dom.Event{Type: EventBehaviorPrefix + ev.Name, Detail: ev})
	}
	topic := e.root().ID()
	if err := e.rt.Events().PublishToTopic(topic, bus.NewEvent(BusBehavior, e.id, ev, map[string]any{"name": ev.Name})); err != nil {
		e.logger.Warn("behavior observers failed", log.String("behavior", ev.Name), log.Error(err))
	}
}

func (e *Entity) route(ev *BehaviorEvent) {
	for cur := e.Scope; cur != nil; cur = cur.parent {
		ent := cur.entity
		if ent == nil {
			continue
		}
		if ent != e && ev.Name == BehaviorComplete && ent.Requires(e.id) {
			ent.Ready(e.id)
		}
		for _, r := range ent.Responders() {
			if r.Name == ev.Name {
				r.Fn(ent, ev)
			}
		}
		if ev.stopped {
			return
		}
	}
}

func (s *Scope) root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Responders returns the entity's responders, seeding them from its type
// chain first.
func (e *Entity) Responders() []Responder {
	e.seed()
	return append([]Responder(nil), e.responders...)
}

// DisableInheritance stops the entity from seeding responders declared on
// its type chain. It has no effect once responders were seeded.
func (e *Entity) DisableInheritance() {
	if e.seeded {
		e.logger.Warn("responders already inherited", log.String("entity", e.id))
		return
	}
	e.noInherit = true
}

// Respond appends a responder for the named behavior event.
func (e *Entity) Respond(name string, fn ResponderFunc) {
	e.seed()
	e.responders = append(e.responders, Responder{Name: name, Fn: fn})
}

// RespondAll appends one responder per entry, in name order.
func (e *Entity) RespondAll(m map[string]ResponderFunc) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.Respond(name, m[name])
	}
}

func (e *Entity) seed() {
	if e.seeded {
		return
	}
	e.seeded = true
	if e.noInherit {
		return
	}
	owner, ok := e.typ.KeyOf(fieldResponders)
	if !ok {
		return
	}
	v, _ := owner.Own(fieldResponders)
	if inherited, ok := v.([]Responder); ok {
		e.responders = append(append([]Responder(nil), inherited...), e.responders...)
	}
}

// Respond declares a responder on the type being built. The first call on a
// type copies the responders of its nearest ancestor that declares any.
func Respond(b *types.Builder, name string, fn ResponderFunc) {
	var prev []Responder
	if own, ok := b.Type().Own(fieldResponders); ok {
		prev, _ = own.([]Responder)
	} else if inherited, ok := b.Get(fieldResponders); ok {
		prev, _ = inherited.([]Responder)
	}
	list := append(append([]Responder(nil), prev...), Responder{Name: name, Fn: fn})
	b.Field(fieldResponders, list)
}
