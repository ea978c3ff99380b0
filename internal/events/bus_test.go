package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	got := make(chan EffectCreated, 1)
	unsub := bus.Subscribe(func(e EffectCreated) { got <- e })
	defer unsub()

	bus.Publish(EffectCreated{UID: 'a', Kind: 0x03, Name: "rainbow"})
	e := recv(t, got)
	assert.Equal(t, uint8('a'), e.UID)
	assert.Equal(t, "rainbow", e.Name)
}

func TestTypesAreRoutedSeparately(t *testing.T) {
	bus := New()
	removed := make(chan EffectRemoved, 4)
	ignored := make(chan PacketIgnored, 4)
	defer bus.Subscribe(func(e EffectRemoved) { removed <- e })()
	defer bus.Subscribe(func(e PacketIgnored) { ignored <- e })()

	bus.Publish(PacketIgnored{Cmd: 0x7f, Outcome: "unknown-kind"})
	bus.Publish(EffectRemoved{UID: 1, Reason: "stop"})

	assert.Equal(t, "unknown-kind", recv(t, ignored).Outcome)
	assert.Equal(t, "stop", recv(t, removed).Reason)
	assert.Empty(t, removed)
	assert.Empty(t, ignored)
}

func TestUnsubscribe(t *testing.T) {
	bus := New()
	got := make(chan Beat, 4)
	unsub := bus.Subscribe(func(e Beat) { got <- e })
	bus.Publish(Beat{Tick: 1})
	require.Equal(t, uint32(1), recv(t, got).Tick)

	unsub()
	bus.Publish(Beat{Tick: 2})
	select {
	case e := <-got:
		t.Fatalf("unexpected event after unsubscribe: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilBusAndUnknownHandler(t *testing.T) {
	var nb *Bus
	nb.Publish(Beat{Tick: 1})

	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
	assert.Equal(t, uint32(TypeBeat), Beat{}.Type())
}
