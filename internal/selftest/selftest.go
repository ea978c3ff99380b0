// Package selftest expresses the wiring test patterns as packet sequences so
// they run through the same engine as a show.
package selftest

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/bespeckle/internal/effect"
	"github.com/coreman2200/bespeckle/internal/packet"
)

type Kind string

const (
	None       Kind = ""
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	HueWheel   Kind = "hue_wheel"
)

// Kinds lists the runnable patterns.
func Kinds() []Kind { return []Kind{IndexSweep, RGBTest, HueWheel} }

// UID is the effect id the patterns draw with. Shows should not use it.
const UID uint8 = 0xfe

// DefaultStep is the time each step is held when run in real time.
const DefaultStep = 250 * time.Millisecond

// rgbCycles is how many times the RGB test walks the three channels.
const rgbCycles = 2

type Runner struct {
	kind   Kind
	length int
	step   int
	done   bool
}

func NewRunner(kind Kind, length int) (*Runner, error) {
	switch kind {
	case IndexSweep, RGBTest, HueWheel:
	default:
		return nil, fmt.Errorf("unknown test %q", kind)
	}
	if length <= 0 {
		return nil, fmt.Errorf("invalid strip length %d", length)
	}
	return &Runner{kind: kind, length: length}, nil
}

func (r *Runner) Kind() Kind { return r.kind }

// Steps returns the number of drawing steps, not counting the final stop.
func (r *Runner) Steps() int {
	switch r.kind {
	case IndexSweep:
		return r.length
	case RGBTest:
		return 3 * rgbCycles
	default:
		return 256
	}
}

// Step returns the packets for the next step; false once the pattern has
// finished and the stop packet was returned.
func (r *Runner) Step() ([]packet.Packet, bool) {
	if r.done {
		return nil, false
	}
	if r.step >= r.Steps() {
		r.done = true
		return []packet.Packet{packet.New(packet.Stop, UID)}, true
	}
	s := r.step
	r.step++
	switch r.kind {
	case IndexSweep:
		// one white pixel at position s
		return []packet.Packet{packet.New(uint8(effect.KindChase), UID, 0xff, 0xff, 0xff, 0xff, uint8(s))}, true
	case RGBTest:
		h := [3]uint8{0, 85, 170}[s%3]
		return []packet.Packet{packet.New(uint8(effect.KindSolid), UID, h, 0xff, 0xff, 0xff)}, true
	default:
		// the whole wheel across the strip, rotated one hue per step
		rate := uint8(max(1, 255/r.length))
		return []packet.Packet{packet.New(uint8(effect.KindRainbow), UID, uint8(s), rate)}, true
	}
}

// Run emits every step at interval until the pattern ends or ctx is done.
func (r *Runner) Run(ctx context.Context, interval time.Duration, emit func(packet.Packet)) error {
	if interval <= 0 {
		interval = DefaultStep
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ps, ok := r.Step()
		if !ok {
			return nil
		}
		for _, p := range ps {
			emit(p)
		}
		select {
		case <-ctx.Done():
			emit(packet.New(packet.Stop, UID))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
