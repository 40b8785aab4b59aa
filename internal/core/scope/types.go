package scope

import (
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
)

// Base type names installed into every runtime's type registry.
const (
	TypeScope  = "Scope"
	TypeEntity = "Entity"
	TypeScreen = "Screen"
	TypeGame   = "Game"
)

// Lifecycle hooks an implementation type may override. Each receives the
// scope object as its first argument and may chain with Call.Sup.
const (
	HookDefine   = "define"
	HookReady    = "ready"
	HookStart    = "start"
	HookStop     = "stop"
	HookComplete = "complete"
)

// Fields read from implementation types.
const (
	fieldResponders      = "responsibilities"
	fieldCompleteOnStart = "completeOnStart"
	fieldSelf            = "$scope"
)

func noop(*types.Call, ...any) any { return nil }

// InstallTypes registers the Scope, Entity, Screen and Game base types. It is
// safe to call more than once.
func InstallTypes(rt *runtime.Runtime) {
	reg := rt.Types()
	if _, ok := reg.Get(TypeGame); ok {
		return
	}
	hooks := types.Members{
		HookDefine: types.Method(noop),
		HookReady:  types.Method(noop),
	}
	reg.Define(TypeScope, hooks)
	reg.Define(TypeEntity+" : "+TypeScope, types.Members{
		HookStart:            types.Method(noop),
		HookStop:             types.Method(noop),
		HookComplete:         types.Method(noop),
		fieldCompleteOnStart: false,
	})
	reg.Define(TypeScreen+" : "+TypeEntity, nil)
	reg.Define(TypeGame+" : "+TypeEntity, nil)
}

func baseType(rt *runtime.Runtime, name string) *types.Type {
	InstallTypes(rt)
	t, _ := rt.Types().Get(name)
	return t
}

// Self returns the scope an implementation method runs for.
func Self(c *types.Call) *Scope {
	v, _ := c.Self.Get(fieldSelf)
	s, _ := v.(*Scope)
	return s
}
