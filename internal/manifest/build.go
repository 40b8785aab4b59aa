package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/zeusync/playscope/internal/core/component"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/scope"
	"github.com/zeusync/playscope/internal/core/script"
	"github.com/zeusync/playscope/internal/core/types"
)

var ErrUnknownComponent = errors.New("unknown component")

// Build compiles the scripts into lib, defines every component and registers
// every game on l. Components are defined in manifest order, so a parent
// must come before its children.
func (m *Manifest) Build(rt *runtime.Runtime, l *scope.Launcher, lib *script.Library) ([]*scope.Game, error) {
	logger := rt.Logger().With(log.String("component", "manifest"))

	for _, name := range m.ScriptNames() {
		src, err := m.source(name)
		if err != nil {
			return nil, fmt.Errorf("script %s: %w", name, err)
		}
		if err := lib.Add(name, src, m.options(name)...); err != nil {
			return nil, err
		}
	}

	for _, c := range m.Components {
		var opts []component.Option
		if len(c.Assets) > 0 {
			opts = append(opts, component.WithLoader(m.assetLoader(c.Assets)))
		}
		if _, err := rt.Components().Define(c.Decl, m.initializer(c, lib), opts...); err != nil {
			return nil, err
		}
		logger.Debug("component declared", log.String("decl", c.Decl))
	}

	games := make([]*scope.Game, 0, len(m.Games))
	for _, spec := range m.Games {
		g, err := m.registerGame(rt, l, lib, spec)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	logger.Info("manifest built",
		log.Int("scripts", len(m.Scripts)),
		log.Int("components", len(m.Components)),
		log.Int("games", len(games)))
	return games, nil
}

// Reload recompiles the script stored at path. It reports false when no
// script is read from that file.
func (m *Manifest) Reload(lib *script.Library, path string) (bool, error) {
	name, ok := m.ScriptFiles()[path]
	if !ok {
		return false, nil
	}
	src, err := m.source(name)
	if err != nil {
		return true, err
	}
	return true, lib.Add(name, src, m.options(name)...)
}

func (m *Manifest) initializer(c Component, lib *script.Library) types.Initializer {
	return func(b *types.Builder) {
		for _, behavior := range sortedKeys(c.Responders) {
			for _, name := range c.Responders[behavior] {
				scope.Respond(b, behavior, lib.Responder(name))
			}
		}
		b.Method(scope.HookDefine, func(call *types.Call, args ...any) any {
			out := call.Sup(args...)
			e := scope.Self(call).Entity()
			if e == nil {
				return out
			}
			if c.CompleteOnStart {
				e.CompleteOnStart(true)
			}
			for _, name := range c.Behaviors {
				e.Behavior(name, nil)
			}
			for _, st := range c.States {
				if _, err := e.DeclareState(st.Actions, st.Flags, scope.StateHooks{}); err != nil {
					e.Runtime().Logger().Error("state not declared", log.String("component", c.Decl), log.Error(err))
				}
			}
			for _, id := range c.Requires {
				e.Require(id)
			}
			return out
		})
	}
}

func (m *Manifest) assetLoader(assets []string) component.Loader {
	return func(ctx context.Context) error {
		for _, a := range assets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := os.Stat(m.resolve(a)); err != nil {
				return fmt.Errorf("asset %s: %w", a, err)
			}
		}
		return nil
	}
}

func (m *Manifest) registerGame(rt *runtime.Runtime, l *scope.Launcher, lib *script.Library, spec Game) (*scope.Game, error) {
	impl, err := lookup(rt, spec.Component)
	if err != nil {
		return nil, err
	}
	type screenDecl struct {
		key  any
		impl *types.Type
		spec Screen
	}
	screens := make([]screenDecl, 0, len(spec.Screens))
	for _, sc := range spec.Screens {
		simpl, err := lookup(rt, sc.Component)
		if err != nil {
			return nil, err
		}
		var key any = sc.Index
		if sc.ID != "" {
			key = sc.ID
		}
		screens = append(screens, screenDecl{key: key, impl: simpl, spec: sc})
	}
	entities := make([]*types.Type, len(spec.Entities))
	for i, e := range spec.Entities {
		if entities[i], err = lookup(rt, e.Component); err != nil {
			return nil, err
		}
	}

	var declErr error
	g := l.Register(spec.Selector, impl, func(g *scope.Game) {
		configure(g.Entity, lib, spec.Responders, spec.Requires)
		for _, d := range screens {
			d := d
			err := g.DeclareScreen(d.key, d.impl, func(sc *scope.Screen) {
				if d.spec.CompleteOnStart {
					sc.CompleteOnStart(true)
				}
				configure(sc.Entity, lib, d.spec.Responders, d.spec.Requires)
			})
			if err != nil {
				declErr = errors.Join(declErr, err)
			}
		}
		for i, es := range spec.Entities {
			es := es
			g.DeclareEntity(es.Selector, entities[i], func(e *scope.Entity) {
				configure(e, lib, es.Responders, es.Requires)
			})
		}
	})
	return g, declErr
}

func configure(e *scope.Entity, lib *script.Library, responders map[string][]string, requires []string) {
	for _, behavior := range sortedKeys(responders) {
		for _, name := range responders[behavior] {
			e.Respond(behavior, lib.Responder(name))
		}
	}
	for _, id := range requires {
		e.Require(id)
	}
}

func lookup(rt *runtime.Runtime, name string) (*types.Type, error) {
	if name == "" {
		return nil, nil
	}
	t, ok := rt.Components().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return t, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
