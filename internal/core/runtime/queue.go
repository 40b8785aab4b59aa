package runtime

import (
	"sync"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

type pending struct {
	id    string
	setup func()
}

// InitQueue holds scopes whose setup waits for the game to finish
// bootstrapping. Once armed, the queue flushes in insertion order and the
// removal that empties it fires the initialized signal, exactly once.
//
// Every operation is idempotent: adding an id twice, removing an id that was
// never added or was already removed are logged and ignored.
type InitQueue struct {
	mu        sync.Mutex
	entries   []pending
	index     map[string]struct{}
	armed     bool
	flushing  bool
	fired     bool
	listeners []func()
	logger    log.Log
}

func NewInitQueue(logger log.Log) *InitQueue {
	return &InitQueue{
		index:  make(map[string]struct{}),
		logger: logger.With(log.String("component", "init-queue")),
	}
}

// Initialized reports whether the initialized signal has fired.
func (q *InitQueue) Initialized() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fired
}

func (q *InitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pending lists queued ids in order.
func (q *InitQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.id
	}
	return out
}

// Add queues setup under id. It returns false when the id is already
// queued or the queue has already fired.
func (q *InitQueue) Add(id string, setup func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fired {
		q.logger.Warn("add after initialization", log.String("id", id))
		return false
	}
	if _, dup := q.index[id]; dup {
		q.logger.Warn("duplicate enqueue ignored", log.String("id", id))
		return false
	}
	q.index[id] = struct{}{}
	q.entries = append(q.entries, pending{id: id, setup: setup})
	return true
}

// Remove dequeues id without running its setup. Removing the last entry of
// an armed queue fires the initialized signal.
func (q *InitQueue) Remove(id string) bool {
	q.mu.Lock()
	if _, ok := q.index[id]; !ok {
		q.mu.Unlock()
		q.logger.Warn("dequeue of unknown id ignored", log.String("id", id))
		return false
	}
	delete(q.index, id)
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			break
		}
	}
	fire := q.shouldFireLocked()
	q.mu.Unlock()
	if fire {
		q.fire()
	}
	return true
}

// OnInitialized runs fn when the signal fires, immediately if it already has.
func (q *InitQueue) OnInitialized(fn func()) {
	q.mu.Lock()
	if q.fired {
		q.mu.Unlock()
		fn()
		return
	}
	q.listeners = append(q.listeners, fn)
	q.mu.Unlock()
}

// Arm marks bootstrapping complete and flushes the queue: each entry's setup
// runs and the entry is removed, including entries queued during the flush.
// An empty queue fires immediately.
func (q *InitQueue) Arm() {
	q.mu.Lock()
	if q.armed {
		q.mu.Unlock()
		return
	}
	q.armed = true
	q.flushing = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.flushing = false
			fire := q.shouldFireLocked()
			q.mu.Unlock()
			if fire {
				q.fire()
			}
			return
		}
		next := q.entries[0]
		q.mu.Unlock()

		if next.setup != nil {
			next.setup()
		}
		q.mu.Lock()
		q.flushing = len(q.entries) > 1
		q.mu.Unlock()
		q.Remove(next.id)
	}
}

func (q *InitQueue) shouldFireLocked() bool {
	if q.fired || !q.armed || q.flushing || len(q.entries) > 0 {
		return false
	}
	q.fired = true
	return true
}

func (q *InitQueue) fire() {
	q.mu.Lock()
	listeners := q.listeners
	q.listeners = nil
	q.mu.Unlock()
	q.logger.Debug("initialized")
	for _, fn := range listeners {
		fn()
	}
}
