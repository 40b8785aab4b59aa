package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

func TestConfigMerge(t *testing.T) {
	cfg := Config{PropertyPrefix: "data-"}.Merge(DefaultConfig())
	assert.Equal(t, "data-", cfg.PropertyPrefix)
	assert.Equal(t, 60, cfg.FrameRate)
	assert.Equal(t, ".screen", cfg.ScreenSelector)
	assert.Equal(t, log.LevelInfo, cfg.Level())
}

func TestInitQueueFiresOnceWhenDrained(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	q := NewInitQueue(log.NewWithCore(core))

	var order []string
	fired := 0
	q.OnInitialized(func() { fired++ })

	require.True(t, q.Add("a", func() { order = append(order, "a") }))
	require.True(t, q.Add("b", func() {
		order = append(order, "b")
		q.Add("c", func() { order = append(order, "c") })
	}))
	assert.False(t, q.Add("a", nil))
	assert.Equal(t, []string{"a", "b"}, q.Pending())

	q.Arm()
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 1, fired)
	assert.True(t, q.Initialized())
	assert.Zero(t, q.Len())

	assert.False(t, q.Remove("a"))
	assert.False(t, q.Add("late", nil))
	q.Arm()
	assert.Equal(t, 1, fired)

	late := 0
	q.OnInitialized(func() { late++ })
	assert.Equal(t, 1, late)
	assert.Equal(t, 1, logs.FilterMessage("duplicate enqueue ignored").Len())
	assert.Equal(t, 1, logs.FilterMessage("dequeue of unknown id ignored").Len())
}

func TestInitQueueArmedEmptyFiresImmediately(t *testing.T) {
	q := NewInitQueue(log.NewNop())
	fired := 0
	q.OnInitialized(func() { fired++ })
	q.Arm()
	assert.Equal(t, 1, fired)
}

func TestInitQueueManualRemoveFiresAfterArm(t *testing.T) {
	q := NewInitQueue(log.NewNop())
	fired := 0
	q.OnInitialized(func() { fired++ })
	q.Add("x", nil)
	q.Remove("x")
	assert.Equal(t, 0, fired, "not armed yet")
	q.Arm()
	assert.Equal(t, 1, fired)
}

func TestSchedulerTimers(t *testing.T) {
	s := NewScheduler()
	var got []string
	s.After(100*time.Millisecond, func() { got = append(got, "delay") })
	rep := s.Every(40*time.Millisecond, func() { got = append(got, "tick") })
	killed := s.After(10*time.Millisecond, func() { got = append(got, "never") })
	killed.Kill()
	killed.Kill()
	assert.False(t, killed.Active())

	s.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"tick", "tick", "delay"}, got)
	assert.Equal(t, 100*time.Millisecond, s.Now())

	rep.Kill()
	s.Advance(time.Second)
	assert.Len(t, got, 3)
	assert.Equal(t, KindRepeat, rep.Kind())
}

func TestSchedulerFramesRunOncePerAdvance(t *testing.T) {
	s := NewScheduler()
	calls := 0
	var frame FrameFunc
	frame = func(dt time.Duration) {
		calls++
		assert.Equal(t, 16*time.Millisecond, dt)
		if calls < 3 {
			s.RequestFrame(frame)
		}
	}
	s.RequestFrame(frame)
	for i := 0; i < 5; i++ {
		s.Advance(16 * time.Millisecond)
	}
	assert.Equal(t, 3, calls)
	assert.EqualValues(t, 5, s.Frames())

	s.RequestFrame(frame)
	s.Reset()
	s.Advance(16 * time.Millisecond)
	assert.Equal(t, 3, calls)
}

func TestSchedulerOrdersEqualDueTimers(t *testing.T) {
	s := NewScheduler()
	var got []string
	s.After(20*time.Millisecond, func() { got = append(got, "a") })
	s.After(10*time.Millisecond, func() {
		got = append(got, "first")
		s.After(10*time.Millisecond, func() { got = append(got, "nested") })
	})
	s.After(20*time.Millisecond, func() { got = append(got, "b") })

	s.Advance(20 * time.Millisecond)
	assert.Equal(t, []string{"first", "a", "b", "nested"}, got)
}

func TestSchedulerRunStopsWithContext(t *testing.T) {
	s := NewScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan struct{}, 1)
	s.RequestFrame(func(time.Duration) { frames <- struct{}{} })

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, 200, 0) }()

	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame ran")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Positive(t, s.Now())
}

func TestSchedulerRunHonoursFrameLimitAndPosts(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.Post(func() {
		order = append(order, "posted")
		s.RequestFrame(func(time.Duration) { order = append(order, "frame") })
	})

	require.NoError(t, s.Run(context.Background(), 500, 3))
	assert.EqualValues(t, 3, s.Frames())
	assert.Equal(t, []string{"posted", "frame"}, order)
}
