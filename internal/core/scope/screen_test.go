package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/playscope/internal/core/component"
	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/types"
)

type recordingBridge struct {
	events []string
	saved  []any
}

func (b *recordingBridge) Emit(name string, data any) { b.events = append(b.events, name) }

func (b *recordingBridge) SaveGameState(data any) error {
	b.saved = append(b.saved, data)
	return nil
}

const twoScreens = `
<div id="game">
  <section class="screen" id="intro"></section>
  <section class="screen" id="quiz"></section>
</div>`

func TestLauncherRunsGameThroughScreens(t *testing.T) {
	rt, doc := newTestRuntime(t, twoScreens, false)
	bridge := &recordingBridge{}

	quizStarts := 0
	quiz, err := rt.Types().Define("QuizScreen : Screen", types.Members{
		HookStart: types.Method(func(c *types.Call, args ...any) any {
			quizStarts++
			return c.Sup(args...)
		}),
	})
	require.NoError(t, err)

	l := NewLauncher(rt, bridge)
	var states []LauncherState
	l.OnState(func(s LauncherState) { states = append(states, s) })

	g := l.Register("#game", nil, func(g *Game) {
		require.NoError(t, g.DeclareScreen("quiz", quiz, nil))
	})
	l.Boot(context.Background())
	assert.Equal(t, StateRegistered, l.State())

	doc.MarkReady()
	assert.Equal(t, []LauncherState{StateDOMReady, StateComponentsLoaded, StateInitialized}, states)
	require.True(t, g.Running())
	require.Len(t, g.Screens(), 2)

	s0, s1 := g.Screen(0), g.Screen(1)
	assert.Equal(t, "intro", s0.ID())
	assert.Same(t, s0, g.Current())
	assert.True(t, s0.IsOpen())
	assert.True(t, s0.IsStarted())
	assert.True(t, s1.Impl().Type().Is(quiz))
	assert.Same(t, g, s1.Game())

	assert.False(t, s0.Next())
	assert.False(t, s1.IsOpen())
	assert.Zero(t, quizStarts)

	require.True(t, s0.Complete())
	assert.True(t, s0.Next())
	assert.False(t, s0.IsOpen())
	assert.False(t, s0.IsLeaving())
	assert.False(t, s0.IsStarted())
	assert.True(t, s1.IsOpen())
	assert.Equal(t, 1, quizStarts)
	assert.Same(t, s1, g.Current())

	assert.False(t, s1.Next(), "last screen has no successor")

	assert.True(t, s1.Prev())
	assert.Same(t, s0, g.Current())
	assert.False(t, s1.IsOpen())

	g.Flip(map[string]any{"score": 3})
	require.NoError(t, g.Save(map[string]any{"level": 2}))
	g.Quit()
	assert.False(t, g.Running())
	assert.False(t, s0.IsOpen())
	assert.Equal(t, []string{platform.EventInit, platform.EventFlipped, platform.EventExit}, bridge.events)
	assert.Len(t, bridge.saved, 1)
}

func TestGamesBootIndependently(t *testing.T) {
	rt, doc := newTestRuntime(t, twoScreens, false)
	doc.MarkReady()

	l := NewLauncher(rt, nil)
	missing := l.Register("#nowhere", nil, nil)
	g := l.Register("#game", nil, nil)
	l.Boot(context.Background())

	assert.Equal(t, StateInitialized, l.State())
	assert.False(t, missing.Running())
	assert.False(t, missing.Bound())
	assert.True(t, g.Running())
	assert.Len(t, l.Games(), 2)
}

func TestLateRegistrationRunsImmediately(t *testing.T) {
	rt, doc := newTestRuntime(t, twoScreens, false)
	doc.MarkReady()

	l := NewLauncher(rt, nil)
	l.Boot(context.Background())
	require.Equal(t, StateInitialized, l.State())

	g := l.Register("#game", nil, nil)
	assert.True(t, g.Running())
	assert.Equal(t, PhaseReady, g.Phase())
}

func TestLauncherFailsOnComponentLoad(t *testing.T) {
	rt, doc := newTestRuntime(t, twoScreens, false)
	doc.MarkReady()

	boom := errors.New("boom")
	_, err := rt.Components().Define("Broken : Entity", nil, component.WithLoader(func(context.Context) error {
		return boom
	}))
	require.NoError(t, err)

	l := NewLauncher(rt, nil)
	g := l.Register("#game", nil, nil)
	l.Boot(context.Background())

	assert.Equal(t, StateFailed, l.State())
	assert.ErrorIs(t, l.Err(), boom)
	assert.False(t, g.Bound())
	assert.False(t, g.Running())
}

func TestNestedScreenStateDoesNotStartParent(t *testing.T) {
	rt, _ := newTestRuntime(t, `
<div id="game">
  <section class="screen" id="outer">
    <section class="screen" id="inner"></section>
  </section>
</div>`, true)

	g := NewGame(rt, nil, nil)
	require.NoError(t, g.Bind("#game"))
	require.Len(t, g.Screens(), 1)
	outer := g.Screen(0)
	require.Len(t, outer.Screens(), 1)
	inner := outer.Screens()[0]
	assert.Same(t, g, inner.Game())

	assert.True(t, inner.Open())
	assert.True(t, inner.IsStarted())
	assert.False(t, outer.IsStarted())
	assert.Nil(t, g.Current())

	assert.True(t, outer.Open())
	assert.Same(t, outer, g.Current())
	assert.True(t, inner.IsStarted())
}

func TestRunRequiresReadyGame(t *testing.T) {
	rt, _ := newTestRuntime(t, twoScreens, false)
	g := NewGame(rt, nil, nil)
	assert.False(t, g.Run())

	require.NoError(t, g.Bind("#game"))
	assert.False(t, g.Run())

	rt.Queue().Arm()
	assert.True(t, g.Run())
	assert.False(t, g.Run())
}

func TestNextFromClosedScreenDoesNothing(t *testing.T) {
	rt, _ := newTestRuntime(t, twoScreens, true)
	g := NewGame(rt, nil, nil)
	require.NoError(t, g.Bind("#game"))
	require.True(t, g.Run())

	s0, s1 := g.Screen(0), g.Screen(1)
	opens := 0
	s1.On(EventState, func(ev *dom.Event) {
		if se, ok := ev.Detail.(*StateEvent); ok && se.TargetScope == s1.Entity && se.Name == StateOpen {
			opens++
		}
	})

	require.True(t, s0.Complete())
	assert.True(t, s0.Next())
	assert.False(t, s0.Next(), "s0 is closed")
	assert.False(t, s0.Prev())
	assert.Equal(t, 1, opens)
	assert.True(t, s1.IsOpen())
	assert.Same(t, s1, g.Current())
}

func TestDeclareScreenAfterBindReplacesBaseScreen(t *testing.T) {
	rt, _ := newTestRuntime(t, twoScreens, true)
	readied := 0
	quiz, err := rt.Types().Define("QuizScreen : Screen", types.Members{
		HookReady: types.Method(func(c *types.Call, args ...any) any {
			readied++
			return c.Sup(args...)
		}),
		fieldCompleteOnStart: true,
	})
	require.NoError(t, err)

	g := NewGame(rt, nil, nil)
	require.NoError(t, g.Bind("#game"))
	before := g.Screen(1)
	assert.Equal(t, TypeScreen, before.Type().Name())

	var defined *Screen
	require.NoError(t, g.DeclareScreen("quiz", quiz, func(sc *Screen) { defined = sc }))
	s1 := g.Screen(1)
	assert.Same(t, before, s1)
	assert.Same(t, s1, defined)
	assert.Equal(t, 1, s1.Index())
	assert.Equal(t, "quiz", s1.ID())
	assert.True(t, s1.Impl().Type().Is(quiz))
	assert.Equal(t, 1, readied)

	assert.ErrorIs(t, g.DeclareScreen("quiz", quiz, nil), ErrAlreadyBound, "already customised")

	require.True(t, g.Run())
	assert.ErrorIs(t, g.DeclareScreen(0, quiz, nil), ErrAlreadyBound, "open screen")

	require.True(t, g.Screen(0).Complete())
	require.True(t, g.Screen(0).Next())
	assert.True(t, s1.IsComplete(), "declared type completes on start")
}

func TestInboundPlatformEventsReachRunningGames(t *testing.T) {
	rt, doc := newTestRuntime(t, twoScreens, false)
	bridge := platform.NewBridge(nil, rt.Events(), nil)
	l := NewLauncher(rt, bridge)
	g := l.Register("#game", nil, nil)
	l.Boot(context.Background())
	doc.MarkReady()
	require.True(t, g.Running())

	var got []*BehaviorEvent
	g.Respond(BehaviorPlatform, func(e *Entity, ev *BehaviorEvent) { got = append(got, ev) })
	sub, err := rt.Events().SubscribeTopic(g.Topic(), BusBehavior, func(bus.Event) error { return nil })
	require.NoError(t, err)

	require.NoError(t, bridge.Receive([]byte(`{"name":"resume","data":{"level":2}}`)))
	require.Len(t, got, 1)
	assert.Equal(t, "resume", got[0].Extra["name"])
	assert.Equal(t, map[string]any{"level": float64(2)}, got[0].Message)
	assert.Same(t, g.Entity, got[0].TargetScope)

	g.Quit()
	assert.False(t, sub.IsActive(), "quit drops the game topic")
	require.NoError(t, bridge.Receive([]byte(`{"name":"resume"}`)))
	assert.Len(t, got, 1, "stopped games ignore platform events")

	require.True(t, g.Run())
	l.Close()
	require.NoError(t, bridge.Receive([]byte(`{"name":"resume"}`)))
	assert.Len(t, got, 1, "closed launcher stops delivery")
}
