package effect

import (
	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

const defaultDuty = clock.TickLength / 2

// strobe is lit for the first duty sub-ticks of every period-th beat.
// Payload: HSVA, period (beats, 0 means 1), duty (sub-ticks, 0 means half a
// beat). A message with an empty payload ends it; otherwise bytes 4 and 5
// replace period and duty.
type strobe struct {
	c      color.RGBA
	period uint8
	duty   uint8
	beat   uint8
	on     bool
}

func setupStrobe(_ Env, p packet.Packet) State {
	s := &strobe{c: hsva(p)}
	s.retime(p.Data[4], p.Data[5])
	return s
}

func (s *strobe) retime(period, duty uint8) {
	if period == 0 {
		period = 1
	}
	if duty == 0 {
		duty = defaultDuty
	}
	s.period, s.duty = period, duty
	s.beat = 0
}

func (s *strobe) Tick(_ Env, frac uint8) Result {
	if frac == 0 {
		s.beat = (s.beat + 1) % s.period
	}
	s.on = s.beat == 0 && frac < s.duty
	return Continue
}

func (s *strobe) Pixel(int) color.RGBA {
	if s.on {
		return s.c
	}
	return off
}

func (s *strobe) Message(_ Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	s.retime(p.Data[4], p.Data[5])
	return Continue
}
