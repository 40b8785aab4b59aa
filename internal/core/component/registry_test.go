package component

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/playscope/internal/core/types"
)

func TestDefineAndGet(t *testing.T) {
	treg := types.NewRegistry(nil)
	r := NewRegistry(treg, nil)

	typ, err := r.Define("carousel", types.Members{"slides": 3})
	require.NoError(t, err)
	got, ok := r.Get("carousel")
	require.True(t, ok)
	assert.Same(t, typ, got)

	shared, _ := treg.Define("Shared", nil)
	_, err = r.Define("alias", shared)
	require.NoError(t, err)
	got, _ = r.Get("alias")
	assert.Same(t, shared, got)

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownComponent)
	assert.Equal(t, []string{"carousel", "alias"}, r.Names())

	_, err = r.Define("broken : Missing", nil)
	assert.ErrorIs(t, err, types.ErrUnknownParent)
}

func TestLoadAllFiresCallbacksOnceInOrder(t *testing.T) {
	r := NewRegistry(types.NewRegistry(nil), nil)
	var loads int32
	loader := WithLoader(func(ctx context.Context) error {
		atomic.AddInt32(&loads, 1)
		return nil
	})
	_, _ = r.Define("a", nil, loader)
	_, _ = r.Define("b", nil, loader)
	_, _ = r.Define("c", nil)

	var order []int
	r.OnLoaded(func(err error) { assert.NoError(t, err); order = append(order, 1) })
	r.OnLoaded(func(err error) { order = append(order, 2) })
	assert.False(t, r.Loaded())

	require.NoError(t, r.LoadAll(context.Background()))
	require.NoError(t, r.LoadAll(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt32(&loads))
	assert.Equal(t, []int{1, 2}, order)

	r.OnLoaded(func(err error) { order = append(order, 3) })
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestLoadAllSurfacesFailure(t *testing.T) {
	r := NewRegistry(types.NewRegistry(nil), nil)
	boom := errors.New("missing sprite sheet")
	_, _ = r.Define("bad", nil, WithLoader(func(ctx context.Context) error { return boom }))

	var seen error
	r.OnLoaded(func(err error) { seen = err })
	err := r.LoadAll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, seen, boom)
	assert.True(t, r.Loaded())
}
