package scope

import (
	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

// Screen state setters.
const (
	StateOpen  = "open"
	StateLeave = "leave"
	StateClose = "close"
)

// Screen is one slide of a game: closed, open, leaving, then closed again.
// It starts when it opens and stops when it leaves or closes.
type Screen struct {
	*Entity
	index int
}

// NewScreen declares an unbound screen implemented by impl, a type
// descending from Screen.
func NewScreen(rt *runtime.Runtime, impl *types.Type) *Screen {
	sc := newScreen(rt, impl)
	sc.define()
	return sc
}

func newScreen(rt *runtime.Runtime, impl *types.Type) *Screen {
	sc := &Screen{Entity: newEntity(rt, impl, TypeScreen)}
	sc.outer = sc
	sc.DeclareState([]string{StateOpen, "isOpen"}, "+"+ClassOpen+" -"+ClassLeave, StateHooks{})
	sc.DeclareState([]string{StateLeave, "isLeaving"}, "+"+ClassLeave+" -"+ClassOpen, StateHooks{})
	sc.DeclareState([]string{StateClose}, "-"+ClassOpen+" -"+ClassLeave, StateHooks{})
	sc.On(EventState, sc.onState)
	return sc
}

// reimplement moves a discovered base screen onto spec's type, keeping its
// element, index, listeners and children, then reruns define and ready.
func (sc *Screen) reimplement(spec ScreenSpec) error {
	base := baseType(sc.rt, TypeScreen)
	if sc.typ != base || sc.started || sc.IsOpen() {
		sc.logger.Warn("screen already materialized", log.String("screen", sc.id))
		return ErrAlreadyBound
	}
	impl := spec.Type
	if impl == nil {
		impl = base
	}
	if impl != base {
		if err := sc.impl.Retype(impl); err != nil {
			sc.logger.Error("screen implementation rejected", log.String("screen", sc.id), log.Error(err))
			return err
		}
		sc.typ = impl
		sc.seeded = false
		sc.logger = sc.rt.Logger().With(log.String("component", "scope"), log.String("type", impl.Name()))
		sc.define()
	}
	if spec.Define != nil {
		spec.Define(sc)
	}
	if impl != base {
		sc.impl.TryCall(HookReady, sc.outer)
	}
	sc.logger.Debug("screen reimplemented", log.String("screen", sc.id), log.Int("index", sc.index))
	return nil
}

// onState starts or stops the screen only for its own transitions; the
// events of nested screens bubble through here too.
func (sc *Screen) onState(ev *dom.Event) {
	se, ok := ev.Detail.(*StateEvent)
	if !ok || se.TargetScope != sc.Entity {
		return
	}
	switch se.Name {
	case StateOpen:
		if sc.parent != nil {
			if g, ok := sc.parent.outer.(*Game); ok {
				g.current = sc.index
			}
		}
		sc.Start()
	case StateLeave, StateClose:
		sc.Stop()
	}
}

// Index is the screen's ordinal position within its parent.
func (sc *Screen) Index() int { return sc.index }

// Game returns the game owning the screen, if any.
func (sc *Screen) Game() *Game {
	for cur := sc.parent; cur != nil; cur = cur.parent {
		if g, ok := cur.outer.(*Game); ok {
			return g
		}
	}
	return nil
}

func (sc *Screen) IsOpen() bool    { return sc.HasClass(ClassOpen) }
func (sc *Screen) IsLeaving() bool { return sc.HasClass(ClassLeave) }

func (sc *Screen) Open() bool  { return sc.SetState(StateOpen) }
func (sc *Screen) Leave() bool { return sc.SetState(StateLeave) }
func (sc *Screen) Close() bool { return sc.SetState(StateClose) }

// Next leaves this screen and opens the following sibling. It does nothing
// until the screen is complete, when the screen is not open or when it is the
// last one.
func (sc *Screen) Next() bool {
	if !sc.IsComplete() {
		sc.logger.Debug("next blocked: screen incomplete", log.String("screen", sc.id), log.Strings("pending", sc.Pending()))
		return false
	}
	return sc.moveTo(sc.index + 1)
}

// Prev leaves this open screen and opens the preceding sibling.
func (sc *Screen) Prev() bool {
	return sc.moveTo(sc.index - 1)
}

func (sc *Screen) moveTo(i int) bool {
	if sc.parent == nil {
		return false
	}
	if !sc.IsOpen() {
		sc.logger.Debug("move ignored: screen not open", log.String("screen", sc.id))
		return false
	}
	siblings := sc.parent.screens
	if i < 0 || i >= len(siblings) {
		sc.logger.Debug("no screen to move to", log.String("screen", sc.id), log.Int("index", i))
		return false
	}
	next := siblings[i]
	sc.Leave()
	next.Open()
	sc.Close()
	return true
}
