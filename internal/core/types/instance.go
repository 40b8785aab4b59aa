package types

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

// Instance is an object delegating to its Type. Own fields and methods
// shadow the type's without changing it.
type Instance struct {
	id      string
	typ     *Type
	fields  map[string]any
	methods map[string]Method
}

func newInstance(t *Type) *Instance {
	return &Instance{id: uuid.NewString(), typ: t, fields: make(map[string]any)}
}

func (i *Instance) ID() string  { return i.id }
func (i *Instance) Type() *Type { return i.typ }

// Get reads an own field, falling back to the type chain.
func (i *Instance) Get(name string) (any, bool) {
	if v, ok := i.fields[name]; ok {
		return v, true
	}
	return i.typ.Lookup(name)
}

func (i *Instance) Set(name string, v any) { i.fields[name] = v }

// Retype moves the instance onto t, keeping its id and own members. t must
// descend from the current type.
func (i *Instance) Retype(t *Type) error {
	if !t.Is(i.typ) {
		return fmt.Errorf("%w: %s is not a %s", ErrNotSubtype, t.name, i.typ.name)
	}
	i.typ = t
	return nil
}

// Owns reports whether name is an own field or method of the instance.
func (i *Instance) Owns(name string) bool {
	if _, ok := i.fields[name]; ok {
		return true
	}
	_, ok := i.methods[name]
	return ok
}

// Define installs an instance-level method layer above the type's chain.
func (i *Instance) Define(name string, fn Method) {
	if i.methods == nil {
		i.methods = make(map[string]Method)
	}
	i.methods[name] = fn
}

// Mixin copies members onto the instance.
func (i *Instance) Mixin(members Members) {
	for name, v := range members {
		switch fn := v.(type) {
		case Method:
			i.Define(name, fn)
		case func(*Call, ...any) any:
			i.Define(name, fn)
		default:
			i.fields[name] = v
		}
	}
}

// RespondsTo reports whether any layer implements method.
func (i *Instance) RespondsTo(method string) bool {
	if _, ok := i.methods[method]; ok {
		return true
	}
	return len(i.typ.chain(method)) > 0
}

// Call invokes the nearest implementation of method.
func (i *Instance) Call(method string, args ...any) (any, error) {
	chain := i.resolve(method)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoMethod, method, i.typ.name)
	}
	c := &Call{Self: i, method: method, chain: chain}
	return chain[0].fn(c, args...), nil
}

// TryCall invokes method when some layer implements it and returns nil otherwise.
func (i *Instance) TryCall(method string, args ...any) any {
	out, err := i.Call(method, args...)
	if err != nil {
		return nil
	}
	return out
}

func (i *Instance) resolve(method string) []layer {
	chain := i.typ.chain(method)
	fn, ok := i.methods[method]
	if !ok {
		return chain
	}
	out := make([]layer, 0, len(chain)+1)
	out = append(out, layer{fn: fn})
	return append(out, chain...)
}

// Call is one running layer of a method chain.
type Call struct {
	Self   *Instance
	method string
	chain  []layer
	index  int
}

func (c *Call) Method() string { return c.method }

// Owner is the type whose layer is running, nil for an instance-level layer.
func (c *Call) Owner() *Type { return c.chain[c.index].owner }

// HasSup reports whether a further layer exists.
func (c *Call) HasSup() bool { return c.index+1 < len(c.chain) }

// Sup runs the next layer up bound to the same instance. When no ancestor
// implements the method the miss is logged and nil is returned.
func (c *Call) Sup(args ...any) any {
	next := c.index + 1
	if next >= len(c.chain) {
		c.Self.typ.reg.logger.Warn("sup: no ancestor implements method",
			log.String("method", c.method), log.String("type", c.Self.typ.name))
		return nil
	}
	nc := &Call{Self: c.Self, method: c.method, chain: c.chain, index: next}
	return c.chain[next].fn(nc, args...)
}
