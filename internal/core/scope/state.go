package scope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/types"
)

// EventState is the DOM event fired from the declaring entity after every
// applied state transition. Its detail is a *StateEvent.
const EventState = "state"

var ErrBadState = errors.New("scope: invalid state declaration")

// StateTarget is the element set a state setter operates on and the scope
// bound to it, if any.
type StateTarget struct {
	Scope    *Scope
	Elements dom.Selection
}

// StateHooks wrap a state setter. ShouldSet returning false aborts the
// transition and runs NotSet.
type StateHooks struct {
	ShouldSet func(t StateTarget) bool
	NotSet    func(t StateTarget)
	WillSet   func(t StateTarget)
	DidSet    func(t StateTarget)
}

type StateEvent struct {
	Name        string
	Flags       string
	TargetScope *Entity
	Target      StateTarget
}

type flagOp struct {
	add   bool
	class string
}

// State is a declared flag set with its setter and optional tester.
type State struct {
	entity *Entity
	setter string
	tester string
	flags  string
	ops    []flagOp
	hooks  StateHooks
}

// parseFlags reads a "+ADD -REMOVE" flag spec.
func parseFlags(spec string) ([]flagOp, error) {
	var ops []flagOp
	for _, tok := range strings.Fields(spec) {
		if len(tok) < 2 || (tok[0] != '+' && tok[0] != '-') {
			return nil, fmt.Errorf("%w: flag %q", ErrBadState, tok)
		}
		ops = append(ops, flagOp{add: tok[0] == '+', class: tok[1:]})
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty flag spec", ErrBadState)
	}
	return ops, nil
}

// DeclareState generates a setter named actions[0] and, when actions[1] is
// given, a tester of that name. Both are also installed as methods on the
// implementation instance.
func (e *Entity) DeclareState(actions []string, flags string, hooks StateHooks) (*State, error) {
	if len(actions) == 0 || actions[0] == "" {
		e.logger.Error("state declared without a setter", log.String("flags", flags))
		return nil, fmt.Errorf("%w: missing setter name", ErrBadState)
	}
	ops, err := parseFlags(flags)
	if err != nil {
		e.logger.Error("state declaration rejected", log.String("state", actions[0]), log.Error(err))
		return nil, err
	}
	st := &State{entity: e, setter: actions[0], flags: flags, ops: ops, hooks: hooks}
	e.states[st.setter] = st
	e.impl.Define(st.setter, func(c *types.Call, args ...any) any { return st.Set(args...) })
	if len(actions) > 1 && actions[1] != "" {
		st.tester = actions[1]
		e.testers[st.tester] = st
		e.impl.Define(st.tester, func(c *types.Call, args ...any) any { return st.Test(args...) })
	}
	return st, nil
}

// State returns a state by setter or tester name.
func (e *Entity) State(name string) (*State, bool) {
	if st, ok := e.states[name]; ok {
		return st, true
	}
	st, ok := e.testers[name]
	return st, ok
}

// SetState runs the named setter.
func (e *Entity) SetState(name string, target ...any) bool {
	st, ok := e.states[name]
	if !ok {
		e.logger.Warn("undefined state setter", log.String("state", name))
		return false
	}
	return st.Set(target...)
}

// TestState runs the named tester.
func (e *Entity) TestState(name string, target ...any) bool {
	st, ok := e.testers[name]
	if !ok {
		e.logger.Warn("undefined state tester", log.String("state", name))
		return false
	}
	return st.Test(target...)
}

func (st *State) Name() string   { return st.setter }
func (st *State) Tester() string { return st.tester }

// Set applies the flag operations in order to the target, the declaring
// entity by default. It reports whether the transition was applied.
func (st *State) Set(target ...any) bool {
	t, ok := st.entity.resolveTarget(target)
	if !ok {
		return false
	}
	h := st.hooks
	if h.ShouldSet != nil && !h.ShouldSet(t) {
		if h.NotSet != nil {
			h.NotSet(t)
		}
		return false
	}
	if h.WillSet != nil {
		h.WillSet(t)
	}
	for _, op := range st.ops {
		if op.add {
			t.Elements.AddClass(op.class)
		} else {
			t.Elements.RemoveClass(op.class)
		}
	}
	if h.DidSet != nil {
		h.DidSet(t)
	}
	st.entity.Trigger(EventState, &StateEvent{
		Name:        st.setter,
		Flags:       st.flags,
		TargetScope: st.entity,
		Target:      t,
	})
	return true
}

// Test reports whether the target's first element carries every added flag
// and none of the removed ones.
func (st *State) Test(target ...any) bool {
	t, ok := st.entity.resolveTarget(target)
	if !ok {
		return false
	}
	return st.matches(t.Elements.First())
}

func (st *State) matches(el *dom.Element) bool {
	if el == nil {
		return false
	}
	for _, op := range st.ops {
		if el.HasClass(op.class) != op.add {
			return false
		}
	}
	return true
}

// Matching returns the declaring entity's elements and descendants for which
// the tester holds, in document order.
func (st *State) Matching() dom.Selection {
	var out dom.Selection
	for _, el := range st.entity.elements {
		if st.matches(el) {
			out = append(out, el)
		}
		for _, d := range el.Descendants() {
			if st.matches(d) {
				out = append(out, d)
			}
		}
	}
	return out
}

type scoped interface{ base() *Scope }

func (s *Scope) base() *Scope { return s }

func (e *Entity) resolveTarget(target []any) (StateTarget, bool) {
	if len(target) == 0 || target[0] == nil {
		return StateTarget{Scope: e.Scope, Elements: e.elements}, e.Bound()
	}
	switch t := target[0].(type) {
	case scoped:
		s := t.base()
		return StateTarget{Scope: s, Elements: s.elements}, s.Bound()
	case *dom.Element:
		s, _ := Of(t)
		return StateTarget{Scope: s, Elements: dom.Selection{t}}, true
	case dom.Selection:
		s, _ := Of(t.First())
		return StateTarget{Scope: s, Elements: t}, len(t) > 0
	default:
		e.logger.Warn("unsupported state target", log.String("target", fmt.Sprintf("%T", target[0])))
		return StateTarget{}, false
	}
}
