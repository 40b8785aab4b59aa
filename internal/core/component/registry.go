// Package component is the name-keyed catalog of game component
// implementations that scopes instantiate lazily from markup.
package component

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/types"
)

var ErrUnknownComponent = errors.New("component: unknown component")

// Loader prepares a component's assets before any game is instantiated.
type Loader func(ctx context.Context) error

type Definition struct {
	Name   string
	Type   *types.Type
	Loader Loader
}

type Option func(*Definition)

// WithLoader attaches an asset loader run by LoadAll.
func WithLoader(l Loader) Option {
	return func(d *Definition) { d.Loader = l }
}

type Registry struct {
	mu      sync.Mutex
	types   *types.Registry
	defs    map[string]*Definition
	order   []string
	loaded  bool
	loadErr error
	waiters []func(error)
	logger  log.Log
}

func NewRegistry(reg *types.Registry, logger log.Log) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		types:  reg,
		defs:   make(map[string]*Definition),
		logger: logger.With(log.String("component", "components")),
	}
}

// Define registers an implementation. decl follows the type registry's
// "Name" / "Name : Parent" syntax; def is either an existing *types.Type or a
// definition accepted by types.Registry.Define.
func (r *Registry) Define(decl string, def any, opts ...Option) (*types.Type, error) {
	var (
		typ  *types.Type
		name string
		err  error
	)
	switch d := def.(type) {
	case *types.Type:
		name, _, err = types.ParseDecl(decl)
		if err != nil {
			return nil, err
		}
		typ = d
	default:
		typ, err = r.types.Define(decl, def)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", decl, err)
		}
		name = typ.Name()
	}

	d := &Definition{Name: name, Type: typ}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; !exists {
		r.order = append(r.order, name)
	} else {
		r.logger.Warn("component redefined", log.String("name", name))
	}
	r.defs[name] = d
	return typ, nil
}

// Get returns the implementation type registered under name.
func (r *Registry) Get(name string) (*types.Type, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[name]
	if !ok {
		return nil, false
	}
	return d.Type, true
}

// Lookup is Get returning ErrUnknownComponent on a miss.
func (r *Registry) Lookup(name string) (*types.Type, error) {
	if t, ok := r.Get(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
}

// Names lists components in definition order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// OnLoaded runs fn once LoadAll has finished, immediately if it already has.
// Callbacks run in registration order with the load error, if any.
func (r *Registry) OnLoaded(fn func(error)) {
	r.mu.Lock()
	if r.loaded {
		err := r.loadErr
		r.mu.Unlock()
		fn(err)
		return
	}
	r.waiters = append(r.waiters, fn)
	r.mu.Unlock()
}

// LoadAll runs every component loader concurrently and then fires the
// OnLoaded callbacks in order. It only loads once; later calls return the
// first result.
func (r *Registry) LoadAll(ctx context.Context) error {
	r.mu.Lock()
	if r.loaded {
		err := r.loadErr
		r.mu.Unlock()
		return err
	}
	defs := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, d := range defs {
		if d.Loader == nil {
			continue
		}
		d := d
		g.Go(func() error {
			if err := d.Loader(gctx); err != nil {
				return fmt.Errorf("load %s: %w", d.Name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		r.logger.Error("component load failed", log.Error(err))
	} else {
		r.logger.Debug("components loaded", log.Int("count", len(defs)))
	}

	r.mu.Lock()
	r.loaded = true
	r.loadErr = err
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	for _, fn := range waiters {
		fn(err)
	}
	return err
}
