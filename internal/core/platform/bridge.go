// Package platform is the contract between a running game and the frame or
// host embedding it: named lifecycle events go out, platform events come
// back in and are re-broadcast on the game's event bus.
package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/events/bus"
	"github.com/zeusync/playscope/internal/core/observability/log"
)

// Lifecycle events a game emits to its host.
const (
	EventInit    = "init"
	EventSave    = "save"
	EventExit    = "exit"
	EventFlipped = "flipped"
)

const (
	// DOMEmit is the DOM event carrying a *Message to in-page listeners.
	DOMEmit = "platform-emit"
	// BusEvent is the bus event type of inbound platform messages.
	BusEvent = "platform-event"
)

var ErrBadMessage = errors.New("platform: malformed message")

// Host receives encoded outbound messages.
type Host interface {
	Send(msg []byte) error
}

// Message is an outbound event. Respond feeds a reply back into the bridge
// as an inbound event of the same name.
type Message struct {
	Name    string
	Data    any
	Respond func(data any)
}

// Inbound is the payload published on the bus for every received message.
type Inbound struct {
	Name string
	Data any
	Raw  []byte
}

type Option func(*Bridge)

// WithHost forwards every emitted message to h.
func WithHost(h Host) Option {
	return func(b *Bridge) { b.host = h }
}

// WithTopic publishes inbound events on a bus topic instead of the default one.
func WithTopic(topic string) Option {
	return func(b *Bridge) { b.topic = topic }
}

type Bridge struct {
	mu     sync.Mutex
	target *dom.Element
	events bus.EventBus
	topic  string
	host   Host
	sent   []string
	logger log.Log
}

// NewBridge dispatches outbound DOM events from target, which may be nil in
// a host-only setup.
func NewBridge(target *dom.Element, events bus.EventBus, logger log.Log, opts ...Option) *Bridge {
	if logger == nil {
		logger = log.NewNop()
	}
	b := &Bridge{
		target: target,
		events: events,
		logger: logger.With(log.String("component", "platform")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetHost replaces the host transport.
func (b *Bridge) SetHost(h Host) {
	b.mu.Lock()
	b.host = h
	b.mu.Unlock()
}

// Sent lists emitted event names in order.
func (b *Bridge) Sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

// Emit sends a named event to in-page listeners and to the host.
func (b *Bridge) Emit(name string, data any) {
	msg := &Message{Name: name, Data: data}
	msg.Respond = func(reply any) {
		if err := b.publish(Inbound{Name: name, Data: reply}); err != nil {
			b.logger.Warn("platform reply handlers failed", log.String("event", name), log.Error(err))
		}
	}

	b.mu.Lock()
	b.sent = append(b.sent, name)
	host := b.host
	b.mu.Unlock()

	if b.target != nil {
		b.target.Dispatch(&dom.Event{Type: DOMEmit, Detail: msg})
	}
	if host != nil {
		raw, err := Encode(name, data)
		if err == nil {
			err = host.Send(raw)
		}
		if err != nil {
			b.logger.Error("platform send failed", log.String("event", name), log.Error(err))
		}
	}
	b.logger.Debug("platform event emitted", log.String("event", name))
}

// SaveGameState emits EventSave carrying the JSON encoded state.
func (b *Bridge) SaveGameState(data any) error {
	raw, err := sjson.SetBytes([]byte(`{}`), "state", data)
	if err != nil {
		return fmt.Errorf("platform: encode game state: %w", err)
	}
	b.Emit(EventSave, json.RawMessage(gjson.GetBytes(raw, "state").Raw))
	return nil
}

// Receive parses an inbound {"name": ..., "data": ...} message and
// publishes it on the bus.
func (b *Bridge) Receive(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: invalid json", ErrBadMessage)
	}
	name := gjson.GetBytes(raw, "name")
	if name.Type != gjson.String || name.Str == "" {
		return fmt.Errorf("%w: missing name", ErrBadMessage)
	}
	in := Inbound{Name: name.Str, Data: gjson.GetBytes(raw, "data").Value(), Raw: raw}
	return b.publish(in)
}

// OnEvent subscribes fn to inbound platform events.
func (b *Bridge) OnEvent(fn func(Inbound) error) (bus.Subscription, error) {
	return b.events.SubscribeTopic(b.topic, BusEvent, func(ev bus.Event) error {
		in, ok := ev.Data().(Inbound)
		if !ok {
			return nil
		}
		return fn(in)
	})
}

func (b *Bridge) publish(in Inbound) error {
	return b.events.PublishToTopic(b.topic, bus.NewEvent(BusEvent, "platform", in, map[string]any{"name": in.Name}))
}

// Encode renders an outbound message as {"name": ..., "data": ...}.
// Pre-encoded data ([]byte or json.RawMessage) is embedded as is.
func Encode(name string, data any) ([]byte, error) {
	raw, err := sjson.SetBytes([]byte(`{}`), "name", name)
	if err != nil {
		return nil, err
	}
	switch d := data.(type) {
	case nil:
		return raw, nil
	case json.RawMessage:
		return sjson.SetRawBytes(raw, "data", d)
	case []byte:
		return sjson.SetRawBytes(raw, "data", d)
	default:
		return sjson.SetBytes(raw, "data", d)
	}
}
