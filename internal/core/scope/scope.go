// Package scope implements the element-bound object model games are built
// from: scopes that capture configuration from markup, entities with
// behaviors, responders, state flags and completion tracking, and the
// screens and games that sequence them.
//
// A scope moves through Declared, Queued, Initialized and Ready. Binding
// locates the backing elements; while the runtime's init queue has not fired
// the scope waits in the queue, otherwise it initializes immediately.
// Children declared before binding are materialized during Init, in
// declaration order, and are fully set up before their parent captures its
// own properties.
package scope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/types"
	"github.com/zeusync/playscope/internal/core/util"
)

var (
	ErrNoElements   = errors.New("scope: selector matched no elements")
	ErrBadTarget    = errors.New("scope: unsupported bind target")
	ErrAlreadyBound = errors.New("scope: already bound")
	ErrNotBound     = errors.New("scope: not bound")
)

// dataKey is the element data key holding the scope bound to an element.
const dataKey = "scope"

type Phase int

const (
	PhaseDeclared Phase = iota
	PhaseQueued
	PhaseInitialized
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseDeclared:
		return "declared"
	case PhaseQueued:
		return "queued"
	case PhaseInitialized:
		return "initialized"
	case PhaseReady:
		return "ready"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

// PropertyHandler configures el from a captured property.
type PropertyHandler func(el *dom.Element, name, value string)

// EntitySpec is a child entity recorded before its parent is bound.
type EntitySpec struct {
	Selector string
	Type     *types.Type
	Define   func(e *Entity)
}

// ScreenSpec is a screen recorded before its parent is bound. A spec with a
// non-empty ID matches the screen element with that id, otherwise the
// screen at Index.
type ScreenSpec struct {
	ID     string
	Index  int
	Type   *types.Type
	Define func(s *Screen)
}

type Scope struct {
	rt     *runtime.Runtime
	id     string
	typ    *types.Type
	impl   *types.Instance
	outer  any
	parent *Scope
	entity *Entity

	elements dom.Selection
	selector string
	phase    Phase

	props          *Properties
	handlers       map[string]PropertyHandler
	screenHandlers map[string]PropertyHandler
	refs           map[string]*dom.Element

	entitySpecs []EntitySpec
	screenSpecs []ScreenSpec
	entities    []*Entity
	screens     []*Screen

	deferred []*deferredListener

	logger log.Log
}

// New declares an unbound scope implemented by impl, a type descending from
// Scope. A nil impl uses the Scope base type.
func New(rt *runtime.Runtime, impl *types.Type) *Scope {
	s := newScope(rt, impl, TypeScope)
	s.outer = s
	s.define()
	return s
}

// Attach declares a scope and binds it to target in one step.
func Attach(rt *runtime.Runtime, target any, impl *types.Type) (*Scope, error) {
	s := New(rt, impl)
	if err := s.Bind(target); err != nil {
		return nil, err
	}
	return s, nil
}

func newScope(rt *runtime.Runtime, impl *types.Type, base string) *Scope {
	bt := baseType(rt, base)
	if impl == nil {
		impl = bt
	} else if !impl.Is(bt) {
		rt.Logger().Warn("implementation does not descend from base type",
			log.String("type", impl.Name()), log.String("base", base))
	}
	s := &Scope{
		rt:             rt,
		typ:            impl,
		impl:           impl.Create(),
		props:          newProperties(),
		handlers:       make(map[string]PropertyHandler),
		screenHandlers: make(map[string]PropertyHandler),
		refs:           make(map[string]*dom.Element),
		logger:         rt.Logger().With(log.String("component", "scope"), log.String("type", impl.Name())),
	}
	s.impl.Set(fieldSelf, s)
	s.installBuiltins()
	return s
}

// define runs the implementation's define hook once the outer object exists.
func (s *Scope) define() {
	s.impl.TryCall(HookDefine, s.outer)
}

func (s *Scope) ID() string                { return s.id }
func (s *Scope) Phase() Phase              { return s.phase }
func (s *Scope) Type() *types.Type         { return s.typ }
func (s *Scope) Impl() *types.Instance     { return s.impl }
func (s *Scope) Runtime() *runtime.Runtime { return s.rt }
func (s *Scope) Parent() *Scope            { return s.parent }
func (s *Scope) Elements() dom.Selection   { return s.elements }
func (s *Scope) Element() *dom.Element     { return s.elements.First() }
func (s *Scope) Properties() *Properties   { return s.props }
func (s *Scope) Entities() []*Entity       { return append([]*Entity(nil), s.entities...) }
func (s *Scope) Screens() []*Screen        { return append([]*Screen(nil), s.screens...) }
func (s *Scope) Bound() bool               { return len(s.elements) > 0 }

// Entity returns the entity wrapping s, nil for a plain scope.
func (s *Scope) Entity() *Entity { return s.entity }

// Ref returns an element collected from a ref property.
func (s *Scope) Ref(name string) (*dom.Element, bool) {
	el, ok := s.refs[name]
	return el, ok
}

// Refs returns every collected ref.
func (s *Scope) Refs() map[string]*dom.Element {
	out := make(map[string]*dom.Element, len(s.refs))
	for k, v := range s.refs {
		out[k] = v
	}
	return out
}

// Of returns the scope bound to el, if any.
func Of(el *dom.Element) (*Scope, bool) {
	if el == nil {
		return nil, false
	}
	v, ok := el.Data(dataKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Scope)
	return s, ok
}

// OwnerOf returns the nearest scope bound to el or one of its ancestors.
func OwnerOf(el *dom.Element) *Scope {
	for cur := el; cur != nil; cur = cur.Parent() {
		if s, ok := Of(cur); ok {
			return s
		}
	}
	return nil
}

// Bind locates the backing elements and schedules initialization. A
// selector resolves inside the parent's elements when the scope has a bound
// parent, otherwise against the document.
func (s *Scope) Bind(target any) error {
	if err := s.bind(target); err != nil {
		return err
	}
	q := s.rt.Queue()
	if q.Initialized() {
		s.Init()
		s.Setup()
		return nil
	}
	s.phase = PhaseQueued
	s.logger.Debug("scope queued", log.String("id", s.id))
	q.Add(s.id, func() {
		s.Init()
		s.Setup()
	})
	return nil
}

func (s *Scope) bind(target any) error {
	if s.Bound() {
		s.logger.Warn("bind on bound scope ignored", log.String("id", s.id))
		return ErrAlreadyBound
	}
	sel, desc, err := s.resolve(target)
	if err != nil {
		s.logger.Error("scope bind failed", log.String("target", desc), log.Error(err))
		return err
	}
	if len(sel) == 0 {
		err = fmt.Errorf("%w: %s", ErrNoElements, desc)
		s.logger.Error("scope bind failed", log.String("target", desc), log.Error(err))
		return err
	}
	s.elements = sel
	s.selector = desc
	s.id = scopeID(s.typ, sel.First())
	for _, el := range sel {
		el.SetData(dataKey, s)
	}
	s.replay()
	return nil
}

func (s *Scope) resolve(target any) (dom.Selection, string, error) {
	switch t := target.(type) {
	case string:
		var (
			sel dom.Selection
			err error
		)
		if s.parent != nil && s.parent.Bound() {
			sel, err = s.parent.elements.Find(t)
		} else {
			sel, err = s.rt.Document().Query(t)
		}
		return sel, t, err
	case *dom.Element:
		if t == nil {
			return nil, "<nil element>", nil
		}
		return dom.Selection{t}, describe(t), nil
	case dom.Selection:
		return t, fmt.Sprintf("selection(%d)", len(t)), nil
	default:
		return nil, fmt.Sprintf("%T", target), fmt.Errorf("%w: %T", ErrBadTarget, target)
	}
}

// Init materializes declared children. It runs once and always before Setup.
func (s *Scope) Init() {
	if s.phase >= PhaseInitialized {
		return
	}
	if !s.Bound() {
		s.logger.Warn("init on unbound scope ignored")
		return
	}
	s.phase = PhaseInitialized

	specs := s.entitySpecs
	s.entitySpecs = nil
	for _, spec := range specs {
		s.materializeEntity(spec)
	}
	s.discoverScreens()
	s.logger.Debug("scope initialized", log.String("id", s.id),
		log.Int("entities", len(s.entities)), log.Int("screens", len(s.screens)))
}

// Setup captures properties from the backing elements and from owned
// descendants carrying a screen-level property, then marks the scope ready.
func (s *Scope) Setup() {
	if s.phase == PhaseReady {
		return
	}
	if s.phase < PhaseInitialized {
		s.Init()
		if s.phase < PhaseInitialized {
			return
		}
	}
	s.capture()
	s.phase = PhaseReady
	s.impl.TryCall(HookReady, s.outer)
	s.logger.Debug("scope ready", log.String("id", s.id), log.Strings("properties", s.props.Names()))
}

// HandleProperty registers fn for name on the scope's own elements.
func (s *Scope) HandleProperty(name string, fn PropertyHandler) {
	s.handlers[name] = fn
}

// HandleDescendantProperty registers fn for name on the scope's own elements
// and on every owned descendant.
func (s *Scope) HandleDescendantProperty(name string, fn PropertyHandler) {
	s.screenHandlers[name] = fn
}

func (s *Scope) capture() {
	prefix := s.rt.Prefix()
	for _, el := range s.elements {
		for _, a := range el.Attrs() {
			name, ok := strings.CutPrefix(a.Name, prefix)
			if !ok || name == "" {
				continue
			}
			s.props.set(name, a.Value)
			if fn := s.handler(name); fn != nil {
				fn(el, name, a.Value)
			}
		}
	}

	for _, root := range s.elements {
		for _, d := range root.Descendants() {
			if s.elements.Has(d) {
				continue
			}
			for _, a := range d.Attrs() {
				name, ok := strings.CutPrefix(a.Name, prefix)
				if !ok {
					continue
				}
				fn := s.screenHandlers[name]
				if fn == nil || OwnerOf(d) != s {
					continue
				}
				fn(d, name, a.Value)
			}
		}
	}

	for name, el := range util.CollectRefs(s.elements, prefix+"ref") {
		if OwnerOf(el) == s {
			s.refs[name] = el
		}
	}
}

func (s *Scope) handler(name string) PropertyHandler {
	if fn, ok := s.handlers[name]; ok {
		return fn
	}
	return s.screenHandlers[name]
}

// DeclareEntity records a child entity bound to selector inside this scope.
// On an initialized scope the child is created and bound immediately;
// otherwise it is materialized during Init. define, when given, runs against
// the child before it binds.
func (s *Scope) DeclareEntity(selector string, impl *types.Type, define func(e *Entity)) *Entity {
	spec := EntitySpec{Selector: selector, Type: impl, Define: define}
	if s.phase < PhaseInitialized {
		s.entitySpecs = append(s.entitySpecs, spec)
		return nil
	}
	return s.materializeEntity(spec)
}

// DeclareScreen records a screen implementation for the screen element with
// the given id (string) or ordinal index (int). On an initialized scope a
// discovered screen still running the base Screen type takes the
// implementation in place; one already customised or started is left alone
// and ErrAlreadyBound is returned.
func (s *Scope) DeclareScreen(idOrIndex any, impl *types.Type, define func(sc *Screen)) error {
	spec := ScreenSpec{Type: impl, Define: define}
	switch v := idOrIndex.(type) {
	case string:
		spec.ID = v
	case int:
		spec.Index = v
	default:
		return fmt.Errorf("%w: screen key %T", ErrBadTarget, idOrIndex)
	}
	if s.phase < PhaseInitialized {
		s.screenSpecs = append(s.screenSpecs, spec)
		return nil
	}
	for _, sc := range s.screens {
		if spec.matches(sc.Element(), sc.index) {
			return sc.reimplement(spec)
		}
	}
	s.screenSpecs = append(s.screenSpecs, spec)
	s.discoverScreens()
	return nil
}

func (spec ScreenSpec) matches(el *dom.Element, index int) bool {
	if spec.ID != "" {
		return el.ID() == spec.ID
	}
	return spec.Index == index
}

func (s *Scope) materializeEntity(spec EntitySpec) *Entity {
	sel, err := s.elements.Find(spec.Selector)
	if err == nil && len(sel) == 0 {
		err = fmt.Errorf("%w: %s", ErrNoElements, spec.Selector)
	}
	if err != nil {
		s.logger.Error("declared entity not created", log.String("selector", spec.Selector), log.Error(err))
		return nil
	}
	e := newEntity(s.rt, spec.Type, TypeEntity)
	e.parent = s
	e.outer = e
	e.define()
	if spec.Define != nil {
		spec.Define(e)
	}
	if !s.adopt(e.Scope, sel) {
		return nil
	}
	s.entities = append(s.entities, e)
	return e
}

// discoverScreens creates a screen for every owned screen element not yet
// bound, in document order.
func (s *Scope) discoverScreens() {
	found, err := s.elements.Find(s.rt.Config().ScreenSelector)
	if err != nil {
		s.logger.Error("screen lookup failed", log.Error(err))
		return
	}
	index := len(s.screens)
	for _, el := range found {
		if OwnerOf(el) != s {
			continue
		}
		var spec ScreenSpec
		for _, sp := range s.screenSpecs {
			if sp.matches(el, index) {
				spec = sp
				break
			}
		}
		sc := newScreen(s.rt, spec.Type)
		sc.parent = s
		sc.index = index
		sc.define()
		if spec.Define != nil {
			spec.Define(sc)
		}
		if !s.adopt(sc.Scope, el) {
			continue
		}
		s.screens = append(s.screens, sc)
		index++
	}
}

// adopt binds a child and runs its whole initialization synchronously.
func (s *Scope) adopt(child *Scope, target any) bool {
	if err := child.bind(target); err != nil {
		return false
	}
	child.Init()
	child.Setup()
	return true
}

func scopeID(t *types.Type, el *dom.Element) string {
	if id := el.ID(); id != "" {
		return id
	}
	return util.StableID(t.Name(), elementPath(el))
}

func elementPath(el *dom.Element) string {
	var parts []string
	for cur := el; cur != nil; cur = cur.Parent() {
		p := cur.Parent()
		if p == nil {
			parts = append(parts, cur.Tag())
			break
		}
		idx := 0
		for i, c := range p.Children() {
			if c == cur {
				idx = i
				break
			}
		}
		parts = append(parts, cur.Tag()+strconv.Itoa(idx))
	}
	return strings.Join(parts, "/")
}

func describe(el *dom.Element) string {
	if id := el.ID(); id != "" {
		return "#" + id
	}
	return el.Tag()
}
