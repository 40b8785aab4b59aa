package scope

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

// Entity is a scope with behaviors, responders, state flags, frame and
// timer scheduling, drag routing and completion tracking.
type Entity struct {
	*Scope

	behaviors  map[string]BehaviorFunc
	responders []Responder
	seeded     bool
	noInherit  bool

	required    []string
	requiredSet map[string]struct{}
	complete    bool
	started     bool

	states  map[string]*State
	testers map[string]*State

	frames     []*FrameHandle
	frameArmed bool
	timers     []*runtime.Timer

	drag        *DragState
	dragSources []*dom.Element
	dropzones   []*dom.Element
}

// NewEntity declares an unbound entity implemented by impl, a type
// descending from Entity. A nil impl uses the Entity base type.
func NewEntity(rt *runtime.Runtime, impl *types.Type) *Entity {
	e := newEntity(rt, impl, TypeEntity)
	e.outer = e
	e.define()
	return e
}

// AttachEntity declares an entity and binds it to target in one step.
func AttachEntity(rt *runtime.Runtime, target any, impl *types.Type) (*Entity, error) {
	e := NewEntity(rt, impl)
	if err := e.Bind(target); err != nil {
		return nil, err
	}
	return e, nil
}

func newEntity(rt *runtime.Runtime, impl *types.Type, base string) *Entity {
	e := &Entity{
		Scope:       newScope(rt, impl, base),
		behaviors:   make(map[string]BehaviorFunc),
		requiredSet: make(map[string]struct{}),
		states:      make(map[string]*State),
		testers:     make(map[string]*State),
	}
	e.entity = e
	return e
}

// IsComplete reports whether Complete has run. Completion is permanent.
func (e *Entity) IsComplete() bool { return e.complete }
func (e *Entity) IsStarted() bool  { return e.started }

// Require adds id to the items gating completion.
func (e *Entity) Require(id string) bool {
	if e.complete {
		e.logger.Warn("require after completion ignored", log.String("entity", e.id), log.String("required", id))
		return false
	}
	if _, dup := e.requiredSet[id]; dup {
		return false
	}
	e.requiredSet[id] = struct{}{}
	e.required = append(e.required, id)
	return true
}

// Requires reports whether id is still pending.
func (e *Entity) Requires(id string) bool {
	_, ok := e.requiredSet[id]
	return ok
}

// Pending lists required ids not yet ready, in the order they were required.
func (e *Entity) Pending() []string { return append([]string(nil), e.required...) }

// Ready marks a required item done. Readying the last one completes the
// entity. Unknown or already-ready ids are logged and ignored.
func (e *Entity) Ready(id string) bool {
	if _, ok := e.requiredSet[id]; !ok {
		e.logger.Warn("ready for unknown required id", log.String("entity", e.id), log.String("required", id))
		return false
	}
	delete(e.requiredSet, id)
	for i, r := range e.required {
		if r == id {
			e.required = append(e.required[:i:i], e.required[i+1:]...)
			break
		}
	}
	if len(e.required) == 0 {
		e.Complete()
	}
	return true
}

// Complete marks the entity complete, runs the complete hook and emits the
// complete behavior event. It returns false when already complete.
func (e *Entity) Complete() bool {
	if e.complete {
		e.logger.Debug("entity already complete", log.String("entity", e.id))
		return false
	}
	e.complete = true
	e.AddClass(ClassComplete)
	e.impl.TryCall(HookComplete, e.outer)
	e.emit(e.newEvent(BehaviorComplete, nil))
	e.logger.Debug("entity complete", log.String("entity", e.id))
	return true
}

// CompleteOnStart makes Start complete the entity when nothing is required.
// Implementation types set the same flag through the completeOnStart field.
func (e *Entity) CompleteOnStart(v bool) { e.impl.Set(fieldCompleteOnStart, v) }

func (e *Entity) completesOnStart() bool {
	v, _ := e.impl.Get(fieldCompleteOnStart)
	b, _ := v.(bool)
	return b
}

// Start marks the entity STARTED and runs the start hook.
func (e *Entity) Start() bool {
	if e.started {
		return false
	}
	e.started = true
	e.AddClass(ClassStarted)
	e.impl.TryCall(HookStart, e.outer)
	e.logger.Debug("entity started", log.String("entity", e.id))
	if e.completesOnStart() && len(e.required) == 0 {
		e.Complete()
	}
	return true
}

// Stop clears STARTED, drops frame handlers and pending timers, and runs the
// stop hook.
func (e *Entity) Stop() bool {
	if !e.started {
		return false
	}
	e.started = false
	e.RemoveClass(ClassStarted)
	e.StopFrames()
	e.Kill()
	e.impl.TryCall(HookStop, e.outer)
	e.logger.Debug("entity stopped", log.String("entity", e.id))
	return true
}

// Delay runs fn once after d of game time.
func (e *Entity) Delay(d time.Duration, fn func()) *runtime.Timer {
	return e.track(e.rt.Scheduler().After(d, fn))
}

// Repeat runs fn every interval until killed.
func (e *Entity) Repeat(interval time.Duration, fn func()) *runtime.Timer {
	return e.track(e.rt.Scheduler().Every(interval, fn))
}

func (e *Entity) track(t *runtime.Timer) *runtime.Timer {
	live := e.timers[:0]
	for _, cur := range e.timers {
		if cur.Active() {
			live = append(live, cur)
		}
	}
	e.timers = append(live, t)
	return t
}

// Kill cancels the entity's pending timers of the given kinds, or all of
// them when no kind is given.
func (e *Entity) Kill(kinds ...runtime.TimerKind) int {
	n := 0
	for _, t := range e.timers {
		if !t.Active() {
			continue
		}
		if len(kinds) > 0 && !hasKind(kinds, t.Kind()) {
			continue
		}
		t.Kill()
		n++
	}
	return n
}

func hasKind(kinds []runtime.TimerKind, k runtime.TimerKind) bool {
	for _, cur := range kinds {
		if cur == k {
			return true
		}
	}
	return false
}

// Tween animates from begin to end over d, calling fn with each frame's
// value. A nil easing is linear. The handle removes the tween early.
func (e *Entity) Tween(begin, end float32, d time.Duration, easing ease.TweenFunc, fn func(v float32)) *FrameHandle {
	if easing == nil {
		easing = ease.Linear
	}
	tw := gween.New(begin, end, float32(d.Seconds()), easing)
	var h *FrameHandle
	h = e.EachFrame(func(dt time.Duration) {
		v, done := tw.Update(float32(dt.Seconds()))
		fn(v)
		if done {
			h.Remove()
		}
	})
	return h
}
