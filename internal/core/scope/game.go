package scope

import (
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

// BehaviorPlatform is the behavior event an inbound platform message is
// routed as. Message holds the data and Extra["name"] the platform event name.
const BehaviorPlatform = "platform"

// Bridge is the platform channel a game reports lifecycle events to.
type Bridge interface {
	Emit(name string, data any)
	SaveGameState(data any) error
}

// Game is the root entity of one game: it owns the screens and reports to
// the platform when it runs, flips its score and quits.
type Game struct {
	*Entity
	bridge  Bridge
	current int
	running bool
}

// NewGame declares an unbound game implemented by impl, a type descending
// from Game. bridge may be nil.
func NewGame(rt *runtime.Runtime, impl *types.Type, bridge Bridge) *Game {
	g := &Game{Entity: newEntity(rt, impl, TypeGame), bridge: bridge, current: -1}
	g.outer = g
	g.define()
	return g
}

func (g *Game) SetBridge(b Bridge) { g.bridge = b }

// Topic is the bus topic the game's behavior events are published on.
func (g *Game) Topic() string { return g.root().ID() }

// Screen returns the screen at index i.
func (g *Game) Screen(i int) *Screen {
	if i < 0 || i >= len(g.screens) {
		return nil
	}
	return g.screens[i]
}

// Current returns the open screen, nil before the first one opens.
func (g *Game) Current() *Screen { return g.Screen(g.current) }

func (g *Game) Running() bool { return g.running }

// Run starts the game, emits EventInit and opens the first screen.
func (g *Game) Run() bool {
	if g.running {
		return false
	}
	if g.phase != PhaseReady {
		g.logger.Warn("run before game is ready", log.String("game", g.id), log.String("phase", g.phase.String()))
		return false
	}
	g.running = true
	g.notify(platform.EventInit, nil)
	g.Start()
	if first := g.Screen(0); first != nil {
		first.Open()
	}
	g.logger.Info("game running", log.String("game", g.id), log.Int("screens", len(g.screens)))
	return true
}

// Quit stops the open screen and the game, emits EventExit and drops the
// game's bus topic along with its subscriptions.
func (g *Game) Quit() {
	if !g.running {
		return
	}
	g.running = false
	if cur := g.Current(); cur != nil {
		cur.Close()
	}
	g.Stop()
	g.notify(platform.EventExit, nil)
	g.rt.Events().DropTopic(g.Topic())
	g.logger.Info("game quit", log.String("game", g.id))
}

// Receive routes an inbound platform message to the game's responders. A
// game that is not running ignores it.
func (g *Game) Receive(in platform.Inbound) {
	if !g.running {
		g.logger.Debug("platform event for stopped game dropped", log.String("game", g.id), log.String("event", in.Name))
		return
	}
	ev := g.newEvent(BehaviorPlatform, []any{in})
	ev.Message = in.Data
	ev.Extra["name"] = in.Name
	g.emit(ev)
}

// Flip reports a score flip to the platform.
func (g *Game) Flip(data any) { g.notify(platform.EventFlipped, data) }

// Save hands the game state to the platform.
func (g *Game) Save(data any) error {
	if g.bridge == nil {
		return nil
	}
	return g.bridge.SaveGameState(data)
}

func (g *Game) notify(name string, data any) {
	if g.bridge == nil {
		return
	}
	g.bridge.Emit(name, data)
}
