// Package script runs behavior responders written in tengo.
//
// A responder script sees the routed event as the global `event` (name,
// message, target, origin, extra) and the responding entity as `entity` (id,
// complete, started, pending, props with camelCase keys). The builtin
// lookup(obj, path) reads a dotted path such as "answers.0.id" and yields
// undefined when a step is missing. A script reports back by assigning
// globals:
//
//	stop     bool            stop propagation after this entity
//	ready    string | array  mark required ids as ready
//	state    string          set a declared state on the entity
//	complete bool            complete the entity
package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/scope"
	"github.com/zeusync/playscope/internal/core/util"
)

const DefaultTimeout = 250 * time.Millisecond

var ErrUnknownScript = errors.New("unknown script")

var outputs = []string{"stop", "ready", "state", "complete"}

// Result is what a script run asked the responding entity to do.
type Result struct {
	Stop     bool
	Complete bool
	Ready    []string
	State    string
}

// Script is one compiled responder. Runs are isolated from each other.
type Script struct {
	name     string
	compiled *tengo.Compiled
	timeout  time.Duration
}

type Option func(*Script)

func WithTimeout(d time.Duration) Option {
	return func(s *Script) { s.timeout = d }
}

// Compile compiles src with every tengo stdlib module importable.
func Compile(name string, src []byte, opts ...Option) (*Script, error) {
	sc := tengo.NewScript(src)
	sc.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	if err := sc.Add("event", map[string]any{}); err != nil {
		return nil, err
	}
	if err := sc.Add("entity", map[string]any{}); err != nil {
		return nil, err
	}
	if err := sc.Add("lookup", &tengo.UserFunction{Name: "lookup", Value: lookup}); err != nil {
		return nil, err
	}
	for _, out := range outputs {
		if err := sc.Add(out, nil); err != nil {
			return nil, err
		}
	}
	compiled, err := sc.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	s := &Script{name: name, compiled: compiled, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Script) Name() string           { return s.name }
func (s *Script) Timeout() time.Duration { return s.timeout }

// Run executes the script against ev as seen by e and returns the requested
// effects without applying them.
func (s *Script) Run(ctx context.Context, e *scope.Entity, ev *scope.BehaviorEvent) (Result, error) {
	c := s.compiled.Clone()
	if err := c.Set("event", eventObject(ev)); err != nil {
		return Result{}, fmt.Errorf("%s: %w", s.name, err)
	}
	if err := c.Set("entity", entityObject(e)); err != nil {
		return Result{}, fmt.Errorf("%s: %w", s.name, err)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := c.RunContext(ctx); err != nil {
		return Result{}, fmt.Errorf("%s: %w", s.name, err)
	}

	var res Result
	res.Stop = c.Get("stop").Bool()
	res.Complete = c.Get("complete").Bool()
	if st := c.Get("state"); st.ValueType() == "string" {
		res.State = st.String()
	}
	switch v := c.Get("ready").Value().(type) {
	case string:
		res.Ready = []string{v}
	case []any:
		for _, id := range v {
			if str, ok := id.(string); ok {
				res.Ready = append(res.Ready, str)
			}
		}
	}
	return res, nil
}

// Apply runs the script and applies its result to e and ev.
func (s *Script) Apply(ctx context.Context, e *scope.Entity, ev *scope.BehaviorEvent) error {
	res, err := s.Run(ctx, e, ev)
	if err != nil {
		return err
	}
	if res.Stop {
		ev.StopPropagation()
	}
	for _, id := range res.Ready {
		e.Ready(id)
	}
	if res.State != "" && !e.SetState(res.State) {
		return fmt.Errorf("%s: state %q not set", s.name, res.State)
	}
	if res.Complete {
		e.Complete()
	}
	return nil
}

func eventObject(ev *scope.BehaviorEvent) map[string]any {
	obj := map[string]any{
		"name":    ev.Name,
		"message": plain(ev.Message),
		"extra":   plain(ev.Extra),
	}
	if ev.BehaviorTarget != nil {
		obj["target"] = ev.BehaviorTarget.ID()
	}
	if ev.TargetScope != nil {
		obj["origin"] = ev.TargetScope.ID()
	}
	return obj
}

func entityObject(e *scope.Entity) map[string]any {
	pending := make([]any, 0)
	for _, id := range e.Pending() {
		pending = append(pending, id)
	}
	props := make(map[string]any)
	for name, v := range e.Properties().Map() {
		props[util.Camel(name)] = v
	}
	return map[string]any{
		"id":       e.ID(),
		"complete": e.IsComplete(),
		"started":  e.IsStarted(),
		"pending":  pending,
		"props":    props,
	}
}

func lookup(args ...tengo.Object) (tengo.Object, error) {
	if len(args) != 2 {
		return nil, tengo.ErrWrongNumArguments
	}
	path, ok := tengo.ToString(args[1])
	if !ok {
		return nil, tengo.ErrInvalidArgumentType{Name: "path", Expected: "string", Found: args[1].TypeName()}
	}
	v, ok := util.ResolvePath(tengo.ToInterface(args[0]), path)
	if !ok {
		return tengo.UndefinedValue, nil
	}
	return tengo.FromInterface(v)
}

// plain reduces v to values tengo can hold; anything else is formatted.
func plain(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64, []byte, time.Time:
		return t
	case float32:
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = plain(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Library holds compiled scripts by name. Responders built from it resolve
// the script on every run, so replacing a script takes effect immediately.
type Library struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	opts    []Option
	logger  log.Log
}

func NewLibrary(logger log.Log, opts ...Option) *Library {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Library{
		scripts: make(map[string]*Script),
		opts:    opts,
		logger:  logger.With(log.String("component", "script")),
	}
}

// Add compiles src under name, replacing any previous script. On a compile
// error the previous script stays in place.
// Add compiles src under name with the library options followed by opts. A
// script that fails to compile leaves the previous version in place.
func (l *Library) Add(name string, src []byte, opts ...Option) error {
	s, err := Compile(name, src, append(append([]Option(nil), l.opts...), opts...)...)
	if err != nil {
		l.logger.Error("script rejected", log.String("script", name), log.Error(err))
		return err
	}
	l.mu.Lock()
	_, replaced := l.scripts[name]
	l.scripts[name] = s
	l.mu.Unlock()
	l.logger.Debug("script loaded", log.String("script", name), log.Bool("replaced", replaced))
	return nil
}

func (l *Library) Get(name string) (*Script, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.scripts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, name)
	}
	return s, nil
}

func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.scripts))
	for name := range l.scripts {
		out = append(out, name)
	}
	return out
}

// Responder adapts the named script to a behavior responder. Failures are
// logged; the event keeps routing.
func (l *Library) Responder(name string) scope.ResponderFunc {
	return func(e *scope.Entity, ev *scope.BehaviorEvent) {
		s, err := l.Get(name)
		if err == nil {
			err = s.Apply(context.Background(), e, ev)
		}
		if err != nil {
			l.logger.Warn("responder script failed",
				log.String("script", name), log.String("entity", e.ID()),
				log.String("behavior", ev.Name), log.Error(err))
		}
	}
}
