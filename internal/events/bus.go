// Package events carries engine notifications to the metrics, logging and
// websocket consumers without coupling them to the engine.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous; handlers
// run on the dispatcher's goroutines and must not block for long.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish broadcasts ev to the subscribers of its concrete type. A nil bus
// drops everything so callers need not check.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case EffectCreated:
		event.Publish(b.dispatcher, e)
	case EffectRemoved:
		event.Publish(b.dispatcher, e)
	case PacketIgnored:
		event.Publish(b.dispatcher, e)
	case EngineReset:
		event.Publish(b.dispatcher, e)
	case Beat:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns the
// unsubscribe function. Unknown handler types get a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EffectCreated):
		return event.Subscribe(b.dispatcher, h)
	case func(EffectRemoved):
		return event.Subscribe(b.dispatcher, h)
	case func(PacketIgnored):
		return event.Subscribe(b.dispatcher, h)
	case func(EngineReset):
		return event.Subscribe(b.dispatcher, h)
	case func(Beat):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops the dispatcher.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
