package sequence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreman2200/bespeckle/internal/packet"
)

func TestMetronomeSubdivisions(t *testing.T) {
	rec := &recorder{}
	m := NewMetronome(60, 4, rec.emit)
	if iv := m.Interval(); iv != 250*time.Millisecond {
		t.Fatalf("interval = %v", iv)
	}

	m.Advance(time.Second)
	want := []packet.Packet{
		packet.New(packet.Tick, 0),
		packet.New(packet.Sync, 60),
		packet.New(packet.Sync, 120),
		packet.New(packet.Sync, 180),
	}
	got := rec.take()
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d = %v, want %v", i, got[i], want[i])
		}
	}

	// partial steps accumulate
	m.Advance(100 * time.Millisecond)
	if got := rec.take(); len(got) != 0 {
		t.Fatalf("early step: %v", got)
	}
	m.Advance(150 * time.Millisecond)
	if got := rec.take(); len(got) != 1 || got[0] != packet.New(packet.Tick, 0) {
		t.Fatalf("expected beat, got %v", got)
	}
}

func TestMetronomeBeatsOnly(t *testing.T) {
	rec := &recorder{}
	m := NewMetronome(120, 0, rec.emit)
	m.Advance(time.Second)
	got := rec.take()
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	for _, p := range got {
		if p.Cmd != packet.Tick {
			t.Fatalf("unexpected %v", p)
		}
	}
}

func TestMetronomeRun(t *testing.T) {
	got := make(chan packet.Packet, 64)
	m := NewMetronome(6000, 1, func(p packet.Packet) { got <- p })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case p := <-got:
		if p.Cmd != packet.Tick {
			t.Fatalf("unexpected %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no beat")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
}
