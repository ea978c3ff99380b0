package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/packet"
)

// epsilon absorbs float error so exact intervals land on their step.
const epsilon = 1e-9

// Metronome turns a tempo into Tick packets on every beat and Sync packets
// on the subdivisions in between.
type Metronome struct {
	mu    sync.Mutex
	bpm   float64
	subs  int
	phase float64 // in subdivisions, fractional part carried
	step  int     // next subdivision to emit
	emit  Emit
}

// NewMetronome returns a metronome at bpm beats per minute with subs steps
// per beat. subs <= 1 sends beats only.
func NewMetronome(bpm float64, subs int, emit Emit) *Metronome {
	m := &Metronome{emit: emit}
	m.SetTempo(bpm, subs)
	return m
}

// SetTempo changes the tempo; the current beat position is kept.
func (m *Metronome) SetTempo(bpm float64, subs int) {
	if bpm <= 0 {
		bpm = 120
	}
	subs = max(1, min(subs, clock.TickLength))
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs != m.subs && m.subs > 0 {
		m.step = m.step * subs / m.subs
	}
	m.bpm, m.subs = bpm, subs
}

// Interval is the time between two emitted packets.
func (m *Metronome) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval()
}

func (m *Metronome) interval() time.Duration {
	return time.Duration(float64(time.Minute) / (m.bpm * float64(m.subs)))
}

// Advance moves the metronome forward by dt and emits a packet for every
// subdivision crossed.
func (m *Metronome) Advance(dt time.Duration) {
	m.mu.Lock()
	m.phase += dt.Minutes() * m.bpm * float64(m.subs)
	var out []packet.Packet
	for m.phase >= 1-epsilon {
		m.phase--
		out = append(out, m.next())
	}
	m.mu.Unlock()
	for _, p := range out {
		m.emit(p)
	}
}

func (m *Metronome) next() packet.Packet {
	s := m.step
	m.step = (m.step + 1) % m.subs
	if s == 0 {
		return packet.New(packet.Tick, 0)
	}
	return packet.New(packet.Sync, uint8(s*clock.TickLength/m.subs))
}

// Run emits packets in real time until ctx is done.
func (m *Metronome) Run(ctx context.Context) error {
	iv := m.Interval()
	ticker := time.NewTicker(iv)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Advance(now.Sub(last))
			last = now
			if cur := m.Interval(); cur != iv {
				iv = cur
				ticker.Reset(iv)
			}
		}
	}
}
