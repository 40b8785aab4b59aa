package scope

import (
	"time"

	"github.com/zeusync/playscope/internal/core/runtime"
)

// FrameHandle is one per-frame callback of an entity.
type FrameHandle struct {
	e       *Entity
	fn      runtime.FrameFunc
	removed bool
}

// Remove detaches the callback. A callback removed during a frame does not
// run later in that frame.
func (h *FrameHandle) Remove() {
	if h.removed {
		return
	}
	h.removed = true
	frames := h.e.frames
	for i, cur := range frames {
		if cur == h {
			h.e.frames = append(frames[:i:i], frames[i+1:]...)
			return
		}
	}
}

func (h *FrameHandle) Active() bool { return !h.removed }

// EachFrame runs fn once per frame, in the order callbacks were added,
// until its handle is removed. The entity requests frames from the
// scheduler only while it has callbacks.
func (e *Entity) EachFrame(fn runtime.FrameFunc) *FrameHandle {
	h := &FrameHandle{e: e, fn: fn}
	e.frames = append(e.frames, h)
	e.armFrames()
	return h
}

// StopFrames removes every frame callback.
func (e *Entity) StopFrames() {
	for _, h := range e.frames {
		h.removed = true
	}
	e.frames = nil
}

// FrameHandlers reports how many frame callbacks are attached.
func (e *Entity) FrameHandlers() int { return len(e.frames) }

func (e *Entity) armFrames() {
	if e.frameArmed || len(e.frames) == 0 {
		return
	}
	e.frameArmed = true
	e.rt.Scheduler().RequestFrame(e.tick)
}

func (e *Entity) tick(dt time.Duration) {
	e.frameArmed = false
	for _, h := range append([]*FrameHandle(nil), e.frames...) {
		if h.removed {
			continue
		}
		h.fn(dt)
	}
	e.armFrames()
}
