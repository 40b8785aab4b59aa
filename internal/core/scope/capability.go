package scope

import "github.com/zeusync/playscope/internal/core/dom"

// EventTarget is the event surface shared by every scope.
type EventTarget interface {
	On(typ string, fn dom.Listener) func()
	Trigger(typ string, detail any) *dom.Event
}

// Playable can be started and stopped repeatedly.
type Playable interface {
	Start() bool
	Stop() bool
	IsStarted() bool
}

// Completable tracks required items and completes once they are all ready.
type Completable interface {
	Require(id string) bool
	Ready(id string) bool
	Complete() bool
	IsComplete() bool
}

var (
	_ EventTarget = (*Scope)(nil)
	_ Playable    = (*Entity)(nil)
	_ Playable    = (*Screen)(nil)
	_ Playable    = (*Game)(nil)
	_ Completable = (*Entity)(nil)
)
