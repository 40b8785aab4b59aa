// Package types is the framework's object system: named types with a single
// parent, member mixins and explicit super dispatch.
//
// Every type keeps a method resolution table: for each method name, the
// ordered list of implementations from the type itself up to the root. An
// invocation remembers which layer it is running, so Call.Sup always reaches
// the next layer up no matter which layer started the chain or what the
// instance currently holds under the same name.
package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

// RootName is the name of the type every other type descends from.
const RootName = "Basic"

var (
	ErrInvalidDeclaration = errors.New("types: invalid type declaration")
	ErrUnknownParent      = errors.New("types: unknown parent type")
	ErrInvalidDefinition  = errors.New("types: invalid type definition")
	ErrDuplicateType      = errors.New("types: type already defined")
	ErrNoMethod           = errors.New("types: no such method")
	ErrNotSubtype         = errors.New("types: not a subtype")
)

// Method is a member function. c.Self is the receiving instance.
type Method func(c *Call, args ...any) any

// Members is the plain-mapping definition shape: Method values become
// methods, everything else becomes a field.
type Members map[string]any

// Initializer is the closure definition shape, run once against a builder
// for the new type.
type Initializer func(b *Builder)

type Registry struct {
	mu     sync.RWMutex
	types  map[string]*Type
	order  []string
	root   *Type
	anon   int
	logger log.Log
}

func NewRegistry(logger log.Log) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Registry{
		types:  make(map[string]*Type),
		logger: logger.With(log.String("component", "types")),
	}
	r.root = r.newType(RootName, nil)
	r.types[RootName] = r.root
	r.order = append(r.order, RootName)
	return r
}

// ParseDecl splits "Name : Parent" into its parts. Parent may be empty.
func ParseDecl(decl string) (name, parent string, err error) {
	name, parent, _ = strings.Cut(decl, ":")
	name, parent = strings.TrimSpace(name), strings.TrimSpace(parent)
	if name == "" || strings.ContainsAny(name, " \t") || strings.ContainsAny(parent, " \t:") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidDeclaration, decl)
	}
	return name, parent, nil
}

// Define registers a named type. decl is "Name" (parent Basic) or
// "Name : Parent"; def is an Initializer, Members or nil.
func (r *Registry) Define(decl string, def any) (*Type, error) {
	name, parentName, err := ParseDecl(decl)
	if err != nil {
		r.logger.Error("type declaration rejected", log.String("decl", decl), log.Error(err))
		return nil, err
	}
	if parentName == "" {
		parentName = RootName
	}

	r.mu.RLock()
	parent, ok := r.types[parentName]
	_, exists := r.types[name]
	r.mu.RUnlock()
	if exists {
		err = fmt.Errorf("%w: %s", ErrDuplicateType, name)
		r.logger.Error("type redefinition rejected", log.String("type", name))
		return nil, err
	}
	if !ok {
		err = fmt.Errorf("%w: %s (for %s)", ErrUnknownParent, parentName, name)
		r.logger.Error("type parent not found", log.String("type", name), log.String("parent", parentName))
		return nil, err
	}

	t, err := r.build(name, parent, def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	r.link(t)
	r.types[name] = t
	r.order = append(r.order, name)
	r.logger.Debug("type defined", log.String("type", name), log.String("parent", parent.name))
	return t, nil
}

// Get returns a named type.
func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) Root() *Type { return r.root }

// Names lists named types in definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) newType(name string, parent *Type) *Type {
	return &Type{
		name:    name,
		parent:  parent,
		reg:     r,
		methods: make(map[string]Method),
		fields:  make(map[string]any),
		chains:  make(map[string][]layer),
	}
}

// build creates an unlinked type and applies def to it.
func (r *Registry) build(name string, parent *Type, def any) (*Type, error) {
	t := r.newType(name, parent)
	switch d := def.(type) {
	case nil:
	case Initializer:
		d(&Builder{t: t})
	case func(*Builder):
		d(&Builder{t: t})
	case Members:
		t.absorb(d)
	case map[string]any:
		t.absorb(d)
	default:
		err := fmt.Errorf("%w: %T for %s", ErrInvalidDefinition, def, name)
		r.logger.Error("type definition rejected", log.String("type", name), log.Error(err))
		return nil, err
	}
	return t, nil
}

// link attaches t under its parent and computes its resolution table.
// Callers hold r.mu.
func (r *Registry) link(t *Type) {
	if t.parent != nil {
		t.parent.children = append(t.parent.children, t)
	}
	t.rebuild()
}

type layer struct {
	owner *Type
	fn    Method
}

// Type is a named prototype. Types are built at bootstrap; after that they
// are read concurrently without further locking except for Mixin.
type Type struct {
	name       string
	parent     *Type
	reg        *Registry
	methods    map[string]Method
	fields     map[string]any
	fieldOrder []string
	children   []*Type
	chains     map[string][]layer
}

func (t *Type) Name() string        { return t.name }
func (t *Type) Parent() *Type       { return t.parent }
func (t *Type) Registry() *Registry { return t.reg }

// Extend creates an anonymous child type from def.
func (t *Type) Extend(def any) (*Type, error) {
	t.reg.mu.Lock()
	t.reg.anon++
	name := fmt.Sprintf("%s+%d", t.name, t.reg.anon)
	t.reg.mu.Unlock()

	child, err := t.reg.build(name, t, def)
	if err != nil {
		return nil, err
	}
	t.reg.mu.Lock()
	t.reg.link(child)
	t.reg.mu.Unlock()
	return child, nil
}

// Mixin merges members into t's own layer and refreshes the resolution
// tables of t and every descendant.
func (t *Type) Mixin(members Members) {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	t.absorb(members)
	t.rebuild()
}

// Create returns a new instance delegating to t.
func (t *Type) Create() *Instance {
	return newInstance(t)
}

// Is reports whether t is other or descends from it.
func (t *Type) Is(other *Type) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Ancestors lists t and its ancestors, nearest first.
func (t *Type) Ancestors() []*Type {
	var out []*Type
	for cur := t; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// KeyOf returns the nearest type in t's chain that declares name as its own
// method or field.
func (t *Type) KeyOf(name string) (*Type, bool) {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	for cur := t; cur != nil; cur = cur.parent {
		if _, ok := cur.methods[name]; ok {
			return cur, true
		}
		if _, ok := cur.fields[name]; ok {
			return cur, true
		}
	}
	return nil, false
}

// Lookup reads a field through the chain.
func (t *Type) Lookup(name string) (any, bool) {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	for cur := t; cur != nil; cur = cur.parent {
		if v, ok := cur.fields[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Own returns a field declared on t itself.
func (t *Type) Own(name string) (any, bool) {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	v, ok := t.fields[name]
	return v, ok
}

// Fields lists t's own fields in declaration order.
func (t *Type) Fields() []string {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	return append([]string(nil), t.fieldOrder...)
}

// Methods lists every method name t resolves, sorted.
func (t *Type) Methods() []string {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	out := make([]string, 0, len(t.chains))
	for name := range t.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Layers names the owners of each implementation of method, nearest first.
func (t *Type) Layers(method string) []string {
	chain := t.chain(method)
	out := make([]string, len(chain))
	for i, l := range chain {
		out[i] = l.owner.name
	}
	return out
}

func (t *Type) chain(method string) []layer {
	t.reg.mu.RLock()
	defer t.reg.mu.RUnlock()
	return t.chains[method]
}

func (t *Type) setField(name string, v any) {
	if _, ok := t.fields[name]; !ok {
		t.fieldOrder = append(t.fieldOrder, name)
	}
	t.fields[name] = v
}

func (t *Type) absorb(members map[string]any) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := members[name].(type) {
		case Method:
			t.methods[name] = v
		case func(*Call, ...any) any:
			t.methods[name] = v
		default:
			t.setField(name, v)
		}
	}
}

func (t *Type) rebuild() {
	chains := make(map[string][]layer)
	if t.parent != nil {
		for name, up := range t.parent.chains {
			chains[name] = up
		}
	}
	for name, fn := range t.methods {
		up := chains[name]
		chain := make([]layer, 0, len(up)+1)
		chain = append(chain, layer{owner: t, fn: fn})
		chains[name] = append(chain, up...)
	}
	t.chains = chains
	for _, c := range t.children {
		c.rebuild()
	}
}

// Builder declares members while an Initializer runs.
type Builder struct {
	t *Type
}

func (b *Builder) Type() *Type  { return b.t }
func (b *Builder) Name() string { return b.t.name }

func (b *Builder) Method(name string, fn Method) *Builder {
	b.t.methods[name] = fn
	return b
}

func (b *Builder) Field(name string, v any) *Builder {
	b.t.setField(name, v)
	return b
}

// Get reads a field the type under construction already declared or inherits.
func (b *Builder) Get(name string) (any, bool) {
	if v, ok := b.t.fields[name]; ok {
		return v, true
	}
	if b.t.parent != nil {
		return b.t.parent.Lookup(name)
	}
	return nil, false
}
