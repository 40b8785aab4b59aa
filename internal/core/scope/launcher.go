package scope

import (
	"context"
	"sync"

	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

// LauncherState is the bootstrap progress shared by every registered game.
type LauncherState int

const (
	StateRegistered LauncherState = iota
	StateDOMReady
	StateComponentsLoaded
	StateInitialized
	StateFailed
)

func (s LauncherState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateDOMReady:
		return "dom-ready"
	case StateComponentsLoaded:
		return "components-loaded"
	case StateInitialized:
		return "initialized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Inbox is implemented by bridges that deliver inbound platform messages.
type Inbox interface {
	OnEvent(fn func(platform.Inbound) error) (bus.Subscription, error)
}

type registration struct {
	target any
	game   *Game
	bound  bool
}

// Launcher boots games: once the document is ready and every component has
// loaded, each registered game binds to its root, the init queue is armed,
// and after it drains every game runs. Games bind independently, so one
// that fails to bind does not hold back the others.
type Launcher struct {
	mu       sync.Mutex
	rt       *runtime.Runtime
	bridge   Bridge
	games    []*registration
	state    LauncherState
	err      error
	booted   bool
	autoRun  bool
	watchers []func(LauncherState)
	inbox    bus.Subscription
	logger   log.Log
}

type LauncherOption func(*Launcher)

// WithoutAutoRun leaves games ready but not running after initialization.
func WithoutAutoRun() LauncherOption {
	return func(l *Launcher) { l.autoRun = false }
}

func NewLauncher(rt *runtime.Runtime, bridge Bridge, opts ...LauncherOption) *Launcher {
	InstallTypes(rt)
	l := &Launcher{
		rt:      rt,
		bridge:  bridge,
		autoRun: true,
		logger:  rt.Logger().With(log.String("component", "launcher")),
	}
	for _, opt := range opts {
		opt(l)
	}
	if in, ok := bridge.(Inbox); ok {
		sub, err := in.OnEvent(l.deliver)
		if err != nil {
			l.logger.Error("platform events not subscribed", log.Error(err))
		}
		l.inbox = sub
	}
	rt.Queue().OnInitialized(l.initialized)
	return l
}

// Close stops delivering inbound platform messages to the games.
func (l *Launcher) Close() {
	l.mu.Lock()
	sub := l.inbox
	l.inbox = nil
	l.mu.Unlock()
	if sub != nil {
		_ = sub.Cancel()
	}
}

// deliver hands an inbound platform message to every running game.
func (l *Launcher) deliver(in platform.Inbound) error {
	for _, g := range l.Games() {
		if g.Running() {
			g.Receive(in)
		}
	}
	return nil
}

func (l *Launcher) State() LauncherState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err is the component load failure, if any.
func (l *Launcher) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// OnState runs fn on every state change.
func (l *Launcher) OnState(fn func(LauncherState)) {
	l.mu.Lock()
	l.watchers = append(l.watchers, fn)
	l.mu.Unlock()
}

// Games lists registered games in registration order.
func (l *Launcher) Games() []*Game {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Game, 0, len(l.games))
	for _, r := range l.games {
		out = append(out, r.game)
	}
	return out
}

// Register declares a game bound to target once components have loaded. A
// game registered after that point binds immediately.
func (l *Launcher) Register(target any, impl *types.Type, define func(g *Game)) *Game {
	g := NewGame(l.rt, impl, l.bridge)
	if define != nil {
		define(g)
	}
	r := &registration{target: target, game: g}
	l.mu.Lock()
	l.games = append(l.games, r)
	state := l.state
	l.mu.Unlock()

	if state >= StateComponentsLoaded && state != StateFailed {
		l.bind(r)
		if state == StateInitialized && r.bound && l.autoRun {
			g.Run()
		}
	}
	return g
}

// Boot waits for the document to be ready, loads every component and then
// binds the registered games and arms the init queue. When the document is
// already ready the whole sequence runs before Boot returns.
func (l *Launcher) Boot(ctx context.Context) {
	l.mu.Lock()
	if l.booted {
		l.mu.Unlock()
		return
	}
	l.booted = true
	l.mu.Unlock()

	l.rt.Document().Ready(func() {
		l.setState(StateDOMReady)
		if err := l.rt.Components().LoadAll(ctx); err != nil {
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			l.logger.Error("component loading failed", log.Error(err))
			l.setState(StateFailed)
			return
		}
		l.setState(StateComponentsLoaded)

		l.mu.Lock()
		regs := append([]*registration(nil), l.games...)
		l.mu.Unlock()
		for _, r := range regs {
			l.bind(r)
		}
		l.rt.Queue().Arm()
	})
}

func (l *Launcher) bind(r *registration) {
	if r.bound {
		return
	}
	if err := r.game.Bind(r.target); err != nil {
		l.logger.Error("game not started", log.Any("target", r.target), log.Error(err))
		return
	}
	r.bound = true
}

func (l *Launcher) initialized() {
	l.setState(StateInitialized)
	if !l.autoRun {
		return
	}
	l.mu.Lock()
	regs := append([]*registration(nil), l.games...)
	l.mu.Unlock()
	for _, r := range regs {
		if r.bound {
			r.game.Run()
		}
	}
}

func (l *Launcher) setState(s LauncherState) {
	l.mu.Lock()
	l.state = s
	watchers := append([]func(LauncherState){}, l.watchers...)
	l.mu.Unlock()
	l.logger.Debug("launcher state", log.String("state", s.String()))
	for _, fn := range watchers {
		fn(s)
	}
}
