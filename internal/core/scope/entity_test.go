package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

const tree = `<div id="root"><div id="mid"><div id="leaf"></div></div></div>`

func buildTree(t *testing.T) (*runtime.Runtime, *Entity, *Entity, *Entity) {
	t.Helper()
	rt, _ := newTestRuntime(t, tree, true)
	root, err := AttachEntity(rt, "#root", nil)
	require.NoError(t, err)
	mid := root.DeclareEntity("#mid", nil, nil)
	require.NotNil(t, mid)
	leaf := mid.DeclareEntity("#leaf", nil, nil)
	require.NotNil(t, leaf)
	return rt, root, mid, leaf
}

func names(rs []Responder) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Name)
	}
	return out
}

func TestBehaviorRoutesToAncestorResponders(t *testing.T) {
	rt, root, mid, leaf := buildTree(t)

	var trail []string
	root.Respond("pick", func(e *Entity, ev *BehaviorEvent) {
		trail = append(trail, "root:"+ev.Message.(string))
	})
	mid.Respond("pick", func(e *Entity, ev *BehaviorEvent) {
		assert.Same(t, mid, e)
		trail = append(trail, "mid")
	})
	leaf.Behavior("pick", func(e *Entity, args ...any) any {
		return map[string]any{"message": "hi", "score": 3}
	})

	domSeen := 0
	root.On(EventBehaviorPrefix+"pick", func(*dom.Event) { domSeen++ })
	var published []string
	_, err := rt.Events().SubscribeTopic(root.ID(), BusBehavior, func(ev bus.Event) error {
		published = append(published, ev.Metadata()["name"].(string))
		return nil
	})
	require.NoError(t, err)

	ev := leaf.Do("pick")
	require.NotNil(t, ev)
	assert.Equal(t, []string{"mid", "root:hi"}, trail)
	assert.Same(t, leaf, ev.TargetScope)
	assert.Same(t, leaf.Element(), ev.BehaviorTarget)
	assert.Equal(t, 3, ev.Extra["score"])
	assert.Equal(t, 1, domSeen)
	assert.Equal(t, []string{"pick"}, published)

	out, err := leaf.Impl().Call("pick")
	require.NoError(t, err)
	assert.IsType(t, &BehaviorEvent{}, out)
	assert.Len(t, trail, 4)

	assert.Nil(t, leaf.Do("undefined"))
}

func TestBehaviorReturningFalseSuppressesEvent(t *testing.T) {
	_, root, _, leaf := buildTree(t)

	calls := 0
	root.Respond("answer", func(*Entity, *BehaviorEvent) { calls++ })
	valid := false
	leaf.Behavior("answer", func(e *Entity, args ...any) any { return valid })

	assert.Nil(t, leaf.Do("answer"))
	assert.Zero(t, calls)

	valid = true
	assert.NotNil(t, leaf.Do("answer"))
	assert.Equal(t, 1, calls)
}

func TestStopPropagationFinishesCurrentEntity(t *testing.T) {
	_, root, mid, leaf := buildTree(t)

	var trail []string
	root.Respond("drop", func(*Entity, *BehaviorEvent) { trail = append(trail, "root") })
	mid.RespondAll(map[string]ResponderFunc{
		"drop": func(_ *Entity, ev *BehaviorEvent) {
			trail = append(trail, "mid-1")
			ev.StopPropagation()
		},
	})
	mid.Respond("drop", func(*Entity, *BehaviorEvent) { trail = append(trail, "mid-2") })
	leaf.Behavior("drop", nil)

	ev := leaf.Do("drop")
	require.NotNil(t, ev)
	assert.True(t, ev.Stopped())
	assert.Equal(t, []string{"mid-1", "mid-2"}, trail)
}

func TestRespondersInheritThroughTypes(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div></div>`, true)
	noop := func(*Entity, *BehaviorEvent) {}

	_, err := rt.Types().Define("A : Entity", types.Initializer(func(b *types.Builder) {
		Respond(b, "x", noop)
		Respond(b, "y", noop)
	}))
	require.NoError(t, err)
	b, err := rt.Types().Define("B : A", nil)
	require.NoError(t, err)
	c, err := rt.Types().Define("C : B", types.Initializer(func(b *types.Builder) {
		Respond(b, "z", noop)
	}))
	require.NoError(t, err)
	a, _ := rt.Types().Get("A")

	assert.Equal(t, []string{"x", "y"}, names(NewEntity(rt, b).Responders()))
	assert.Equal(t, []string{"x", "y", "z"}, names(NewEntity(rt, c).Responders()))
	assert.Equal(t, []string{"x", "y"}, names(NewEntity(rt, a).Responders()))

	e := NewEntity(rt, b)
	e.Respond("w", noop)
	assert.Equal(t, []string{"x", "y", "w"}, names(e.Responders()))

	solo := NewEntity(rt, b)
	solo.DisableInheritance()
	solo.Respond("w", noop)
	assert.Equal(t, []string{"w"}, names(solo.Responders()))
}

func TestCompleteIsIdempotent(t *testing.T) {
	_, root, _, leaf := buildTree(t)

	completions := 0
	root.Respond(BehaviorComplete, func(_ *Entity, ev *BehaviorEvent) {
		if ev.TargetScope == leaf {
			completions++
		}
	})

	assert.True(t, leaf.Complete())
	assert.False(t, leaf.Complete())
	assert.Equal(t, 1, completions)
	assert.True(t, leaf.IsComplete())
	assert.True(t, leaf.HasClass(ClassComplete))
}

func TestRequiredQueueConverges(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="quiz"></div>`, true)
	e, err := AttachEntity(rt, "#quiz", nil)
	require.NoError(t, err)

	completions := 0
	e.Respond(BehaviorComplete, func(*Entity, *BehaviorEvent) { completions++ })

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, e.Require(id))
	}
	assert.False(t, e.Require("a"))

	assert.True(t, e.Ready("b"))
	assert.True(t, e.Ready("c"))
	assert.Equal(t, []string{"a"}, e.Pending())
	assert.False(t, e.IsComplete())
	assert.True(t, e.Ready("a"))

	assert.True(t, e.IsComplete())
	assert.Equal(t, 1, completions)
	assert.False(t, e.Ready("a"))
	assert.False(t, e.Require("d"))
	assert.Equal(t, 1, completions)
}

func TestRequiredChildrenCompleteOwner(t *testing.T) {
	rt, _ := newTestRuntime(t, `
<div id="screen">
  <div id="q1" pl-required></div>
  <div id="q2" pl-component="Quiz" pl-required></div>
</div>`, true)
	_, err := rt.Components().Define("Quiz : Entity", nil)
	require.NoError(t, err)

	owner := NewEntity(rt, nil)
	owner.DeclareEntity("#q1", nil, nil)
	require.NoError(t, owner.Bind("#screen"))

	assert.Equal(t, []string{"q1", "q2"}, owner.Pending())
	children := owner.Entities()
	require.Len(t, children, 2)
	assert.Equal(t, "Quiz", children[1].Type().Name())

	children[1].Complete()
	assert.Equal(t, []string{"q1"}, owner.Pending())
	assert.False(t, owner.IsComplete())
	children[0].Complete()
	assert.True(t, owner.IsComplete())
}

func TestDeclareStateTransitions(t *testing.T) {
	rt, doc := newTestRuntime(t, `<div id="panel" class="LEAVE"><span id="opt" class="OPEN"></span></div>`, true)
	e, err := AttachEntity(rt, "#panel", nil)
	require.NoError(t, err)

	var events []*StateEvent
	e.On(EventState, func(ev *dom.Event) { events = append(events, ev.Detail.(*StateEvent)) })

	var hooks []string
	st, err := e.DeclareState([]string{"open", "isOpen"}, "+OPEN -LEAVE", StateHooks{
		WillSet: func(tg StateTarget) { hooks = append(hooks, "will", boolString(tg.Elements.HasClass(ClassOpen))) },
		DidSet:  func(tg StateTarget) { hooks = append(hooks, "did", boolString(tg.Elements.HasClass(ClassOpen))) },
	})
	require.NoError(t, err)
	assert.Equal(t, "isOpen", st.Tester())

	assert.False(t, e.TestState("isOpen"))
	assert.True(t, e.SetState("open"))
	assert.True(t, e.HasClass(ClassOpen))
	assert.False(t, e.HasClass(ClassLeave))
	assert.Equal(t, []string{"will", "false", "did", "true"}, hooks)
	require.Len(t, events, 1)
	assert.Same(t, e, events[0].TargetScope)
	assert.Equal(t, "open", events[0].Name)
	assert.True(t, e.TestState("isOpen"))

	out, err := e.Impl().Call("isOpen")
	require.NoError(t, err)
	assert.Equal(t, true, out)
	assert.Len(t, st.Matching(), 2)

	notSet := 0
	_, err = e.DeclareState([]string{"lock"}, "+LOCKED", StateHooks{
		ShouldSet: func(StateTarget) bool { return false },
		NotSet:    func(StateTarget) { notSet++ },
	})
	require.NoError(t, err)
	assert.False(t, e.SetState("lock"))
	assert.Equal(t, 1, notSet)
	assert.False(t, e.HasClass("LOCKED"))
	assert.Len(t, events, 1)

	_, err = e.DeclareState([]string{"select"}, "+SELECTED", StateHooks{})
	require.NoError(t, err)
	opt := mustQuery(t, doc, "#opt")
	assert.True(t, e.SetState("select", opt))
	assert.True(t, opt.HasClass("SELECTED"))
	assert.False(t, e.HasClass("SELECTED"))
	require.Len(t, events, 2)
	assert.Same(t, opt, events[1].Target.Elements.First())
	assert.Same(t, e, events[1].TargetScope)

	_, err = e.DeclareState([]string{"bad"}, "OPEN", StateHooks{})
	assert.ErrorIs(t, err, ErrBadState)
	_, err = e.DeclareState(nil, "+OPEN", StateHooks{})
	assert.ErrorIs(t, err, ErrBadState)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestFrameHandlersRunInOrderAndSkipRemoved(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="e"></div>`, true)
	e, err := AttachEntity(rt, "#e", nil)
	require.NoError(t, err)
	clock := rt.Scheduler()

	var order []string
	var h2 *FrameHandle
	h1 := e.EachFrame(func(time.Duration) {
		order = append(order, "h1")
		h2.Remove()
	})
	h2 = e.EachFrame(func(time.Duration) { order = append(order, "h2") })
	e.EachFrame(func(time.Duration) { order = append(order, "h3") })

	clock.Advance(16 * time.Millisecond)
	assert.Equal(t, []string{"h1", "h3"}, order)
	assert.Equal(t, 2, e.FrameHandlers())

	h1.Remove()
	clock.Advance(16 * time.Millisecond)
	assert.Equal(t, []string{"h1", "h3", "h3"}, order)

	e.StopFrames()
	clock.Advance(16 * time.Millisecond)
	clock.Advance(16 * time.Millisecond)
	assert.Len(t, order, 3)
	assert.Zero(t, e.FrameHandlers())
}

func TestTweenDrivesValueUntilDone(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="e"></div>`, true)
	e, err := AttachEntity(rt, "#e", nil)
	require.NoError(t, err)

	var vals []float32
	h := e.Tween(0, 10, 100*time.Millisecond, nil, func(v float32) { vals = append(vals, v) })

	rt.Scheduler().Advance(50 * time.Millisecond)
	require.Len(t, vals, 1)
	assert.InDelta(t, 5, vals[0], 0.01)

	rt.Scheduler().Advance(60 * time.Millisecond)
	require.Len(t, vals, 2)
	assert.InDelta(t, 10, vals[1], 0.001)
	assert.False(t, h.Active())

	rt.Scheduler().Advance(50 * time.Millisecond)
	assert.Len(t, vals, 2)
}

func TestDelayRepeatAndKill(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="e"></div>`, true)
	e, err := AttachEntity(rt, "#e", nil)
	require.NoError(t, err)
	clock := rt.Scheduler()

	delays, ticks := 0, 0
	e.Delay(100*time.Millisecond, func() { delays++ })
	e.Repeat(30*time.Millisecond, func() { ticks++ })

	clock.Advance(70 * time.Millisecond)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 1, e.Kill(runtime.KindRepeat))

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 2, ticks)
	assert.Equal(t, 1, delays)

	e.Start()
	assert.True(t, e.HasClass(ClassStarted))
	e.Delay(10*time.Millisecond, func() { delays++ })
	e.Stop()
	assert.False(t, e.HasClass(ClassStarted))
	clock.Advance(50 * time.Millisecond)
	assert.Equal(t, 1, delays)
}

func TestCompleteOnStart(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="a"></div><div id="b"></div>`, true)
	auto, err := rt.Types().Define("Intro : Entity", types.Members{"completeOnStart": true})
	require.NoError(t, err)

	a, err := AttachEntity(rt, "#a", auto)
	require.NoError(t, err)
	a.Start()
	assert.True(t, a.IsComplete())

	b, err := AttachEntity(rt, "#b", auto)
	require.NoError(t, err)
	b.Require("video")
	b.Start()
	assert.False(t, b.IsComplete())
	b.Ready("video")
	assert.True(t, b.IsComplete())
}

func TestDragRoutesToBehaviors(t *testing.T) {
	rt, doc := newTestRuntime(t, `
<div id="board">
  <div id="piece" pl-draggable></div>
  <div id="zone" pl-dropzone pl-position="100,100" pl-size="50x50"></div>
</div>`, true)
	board, err := AttachEntity(rt, "#board", nil)
	require.NoError(t, err)
	piece := mustQuery(t, doc, "#piece")
	zone := mustQuery(t, doc, "#zone")

	assert.True(t, piece.HasClass(ClassDraggable))
	assert.True(t, zone.HasClass(ClassDropzone))
	assert.Equal(t, []*dom.Element{zone}, board.Dropzones())

	var seen []string
	var released *DragState
	board.RespondAll(map[string]ResponderFunc{
		BehaviorGrab:     func(_ *Entity, ev *BehaviorEvent) { seen = append(seen, ev.Name) },
		BehaviorDragging: func(_ *Entity, ev *BehaviorEvent) { seen = append(seen, ev.Name) },
		BehaviorRelease: func(_ *Entity, ev *BehaviorEvent) {
			seen = append(seen, ev.Name)
			assert.Same(t, piece, ev.BehaviorTarget)
			released = ev.Extra["drag"].(*DragState)
		},
	})

	piece.Trigger(EventDragStart, Point{X: 10, Y: 10})
	require.NotNil(t, board.Dragging())
	piece.Trigger(EventDragMove, Point{X: 40, Y: 50})
	assert.Equal(t, Point{X: 30, Y: 40}, board.Dragging().Distance)
	assert.Equal(t, "translate(30px, 40px)", piece.Style("transform"))
	piece.Trigger(EventDragEnd, &Point{X: 120, Y: 120})

	assert.Equal(t, []string{BehaviorGrab, BehaviorDragging, BehaviorRelease}, seen)
	require.NotNil(t, released)
	assert.Same(t, zone, released.Dropzone)
	assert.Nil(t, board.Dragging())
}

func TestBehaviorRejectsLifecycleHookNames(t *testing.T) {
	rt, _ := newTestRuntime(t, `<div id="card"></div>`, true)
	e, err := AttachEntity(rt, "#card", nil)
	require.NoError(t, err)

	completes := 0
	e.Respond(BehaviorComplete, func(*Entity, *BehaviorEvent) { completes++ })
	for _, name := range []string{HookDefine, HookReady, HookStart, HookStop, HookComplete} {
		assert.False(t, e.Behavior(name, nil), name)
		assert.False(t, e.HasBehavior(name), name)
	}
	assert.True(t, e.Behavior("flip", nil))

	require.True(t, e.Complete())
	assert.Equal(t, 1, completes)
}
