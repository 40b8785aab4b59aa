package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

func newTestRegistry(t *testing.T) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewRegistry(log.NewWithCore(core)), logs
}

func TestSupWalksEachLayerOnce(t *testing.T) {
	r, _ := newTestRegistry(t)
	var trace []string

	_, err := r.Define("T1", Members{
		"greet": Method(func(c *Call, args ...any) any {
			trace = append(trace, "T1:"+c.Self.Type().Name())
			return "t1"
		}),
	})
	require.NoError(t, err)
	_, err = r.Define("T2 : T1", Initializer(func(b *Builder) {
		b.Method("greet", func(c *Call, args ...any) any {
			trace = append(trace, "T2")
			return "t2>" + c.Sup(args...).(string)
		})
	}))
	require.NoError(t, err)
	t3, err := r.Define("T3 : T2", func(b *Builder) {
		b.Method("greet", func(c *Call, args ...any) any {
			trace = append(trace, "T3")
			return "t3>" + c.Sup(args...).(string)
		})
	})
	require.NoError(t, err)

	inst := t3.Create()
	// an own field with the method's name must not disturb dispatch
	inst.Set("greet", "shadow")
	out, err := inst.Call("greet")
	require.NoError(t, err)
	assert.Equal(t, "t3>t2>t1", out)
	assert.Equal(t, []string{"T3", "T2", "T1:T3"}, trace)
	assert.Equal(t, []string{"T3", "T2", "T1"}, t3.Layers("greet"))
}

func TestSupPastRootLogsAndReturnsNil(t *testing.T) {
	r, logs := newTestRegistry(t)
	typ, err := r.Define("Lonely", Members{
		"run": Method(func(c *Call, args ...any) any {
			assert.False(t, c.HasSup())
			return c.Sup()
		}),
	})
	require.NoError(t, err)

	out, err := typ.Create().Call("run")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, logs.FilterMessage("sup: no ancestor implements method").Len())
}

func TestDefineErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Define("Child : Missing", nil)
	assert.ErrorIs(t, err, ErrUnknownParent)

	_, err = r.Define("Bad", 42)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	_, ok := r.Get("Bad")
	assert.False(t, ok)

	_, err = r.Define(" : Basic", nil)
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
	_, err = r.Define("A : B : C", nil)
	assert.ErrorIs(t, err, ErrInvalidDeclaration)

	_, err = r.Define("Once", nil)
	require.NoError(t, err)
	_, err = r.Define("Once", nil)
	assert.ErrorIs(t, err, ErrDuplicateType)

	assert.Equal(t, []string{RootName, "Once"}, r.Names())
}

func TestExtendSupportsBothShapes(t *testing.T) {
	r, _ := newTestRegistry(t)
	base, err := r.Define("Base", Members{"kind": "base", "size": 1})
	require.NoError(t, err)

	a, err := base.Extend(Members{"kind": "a"})
	require.NoError(t, err)
	b, err := a.Extend(func(b *Builder) {
		v, _ := b.Get("size")
		b.Field("size", v.(int)+1)
	})
	require.NoError(t, err)

	kind, _ := b.Lookup("kind")
	size, _ := b.Lookup("size")
	assert.Equal(t, "a", kind)
	assert.Equal(t, 2, size)
	assert.True(t, b.Is(base))
	assert.False(t, base.Is(b))
	assert.Len(t, b.Ancestors(), 4)

	_, err = base.Extend("nope")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestMixinRefreshesDescendants(t *testing.T) {
	r, _ := newTestRegistry(t)
	parent, _ := r.Define("Parent", nil)
	child, _ := r.Define("Child : Parent", nil)
	inst := child.Create()
	assert.False(t, inst.RespondsTo("hello"))

	parent.Mixin(Members{"hello": Method(func(c *Call, args ...any) any { return "hi" })})
	out, err := inst.Call("hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	owner, ok := child.KeyOf("hello")
	require.True(t, ok)
	assert.Same(t, parent, owner)
	_, ok = child.KeyOf("absent")
	assert.False(t, ok)
}

func TestInstanceLayerAndFields(t *testing.T) {
	r, _ := newTestRegistry(t)
	typ, _ := r.Define("Widget", Members{
		"label": "widget",
		"name":  Method(func(c *Call, args ...any) any { return "type" }),
	})
	inst := typ.Create()
	other := typ.Create()
	assert.NotEqual(t, inst.ID(), other.ID())

	inst.Define("name", func(c *Call, args ...any) any {
		assert.Nil(t, c.Owner())
		return "instance/" + c.Sup().(string)
	})
	out, _ := inst.Call("name")
	assert.Equal(t, "instance/type", out)
	out, _ = other.Call("name")
	assert.Equal(t, "type", out)

	inst.Set("label", "mine")
	v, _ := inst.Get("label")
	assert.Equal(t, "mine", v)
	v, _ = other.Get("label")
	assert.Equal(t, "widget", v)
	assert.True(t, inst.Owns("label"))
	assert.False(t, other.Owns("label"))

	_, err := inst.Call("missing")
	assert.ErrorIs(t, err, ErrNoMethod)
	assert.Nil(t, inst.TryCall("missing"))
}
