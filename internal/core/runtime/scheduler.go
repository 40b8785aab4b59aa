package runtime

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// TimerKind tells delays from repeats so an owner can cancel one family.
type TimerKind uint8

const (
	KindDelay TimerKind = iota
	KindRepeat
)

func (k TimerKind) String() string {
	if k == KindRepeat {
		return "repeat"
	}
	return "delay"
}

// Timer is a pending delay or repeat. Kill cancels it; killing twice is fine.
type Timer struct {
	kind     TimerKind
	due      time.Duration
	interval time.Duration
	seq      uint64
	index    int
	fn       func()
	killed   bool
	s        *Scheduler
}

func (t *Timer) Kind() TimerKind { return t.kind }

func (t *Timer) Kill() {
	t.s.mu.Lock()
	t.killed = true
	t.s.mu.Unlock()
}

func (t *Timer) Active() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return !t.killed
}

// FrameFunc receives the time elapsed since the previous frame.
type FrameFunc func(dt time.Duration)

// Scheduler is the game clock. Time only moves when Advance is called, either
// directly (tests, headless runs) or by Run's ticker.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers timerHeap
	frames []FrameFunc
	posted []func()
	count  uint64
}

func NewScheduler() *Scheduler { return &Scheduler{} }

func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Frames reports how many frames have run.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// After runs fn once d from now.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	return s.add(KindDelay, d, fn)
}

// Every runs fn each d until killed. d must be positive.
func (s *Scheduler) Every(d time.Duration, fn func()) *Timer {
	if d <= 0 {
		d = time.Millisecond
	}
	return s.add(KindRepeat, d, fn)
}

func (s *Scheduler) add(kind TimerKind, d time.Duration, fn func()) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &Timer{kind: kind, due: s.now + d, interval: d, seq: s.seq, fn: fn, s: s}
	heap.Push(&s.timers, t)
	return t
}

// Post queues fn to run at the start of the next Advance, on the goroutine
// driving the clock. It is the only Scheduler entry point meant for other
// goroutines.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// RequestFrame schedules fn for the next frame only.
func (s *Scheduler) RequestFrame(fn FrameFunc) {
	s.mu.Lock()
	s.frames = append(s.frames, fn)
	s.mu.Unlock()
}

// Advance runs posted funcs, moves the clock by dt, fires due timers in due
// order, then runs the frame callbacks requested before this call. Callbacks
// requested while the frame runs wait for the next Advance.
func (s *Scheduler) Advance(dt time.Duration) {
	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	s.mu.Lock()
	target := s.now + dt
	s.mu.Unlock()

	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	s.mu.Lock()
	s.now = target
	frames := s.frames
	s.frames = nil
	s.count++
	s.mu.Unlock()

	for _, fn := range frames {
		fn(dt)
	}
}

// nextDue pops the earliest live timer due at or before target and advances
// the clock to its due time.
func (s *Scheduler) nextDue(target time.Duration) *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.timers.peek()
	if t == nil || t.due > target {
		return nil
	}
	s.now = t.due
	if t.kind == KindRepeat {
		s.seq++
		t.seq = s.seq
		t.due += t.interval
		heap.Fix(&s.timers, t.index)
	} else {
		t.killed = true
		heap.Pop(&s.timers)
	}
	return t
}

// Reset kills every timer and drops pending frame callbacks.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.killed = true
	}
	s.timers = nil
	s.frames = nil
	s.posted = nil
}

// Run advances the clock in real time at fps until ctx ends or, when limit
// is positive, until limit frames have run. Reaching the limit returns nil.
func (s *Scheduler) Run(ctx context.Context, fps int, limit uint64) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	last := time.Now()
	for n := uint64(0); limit == 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
	return nil
}
