package effect

import (
	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

const (
	pulseDown   = 0x01
	pulseRotate = 0x02
	maskWidth   = 64
)

// pulse moves a bit pattern along the first 64 positions, one step per
// beat, cross-fading between the previous and current pattern as the beat
// progresses. Bits move toward higher positions unless pulseDown is set.
// Without pulseRotate bits fall off the end and the pulse ends once the
// pattern is empty.
//
// Payload: hue, value, flags, then a 24-bit initial pattern, low byte first.
// A message replaces the pattern with Data[3:6].
type pulse struct {
	cur   uint64
	prev  uint64
	c     color.RGBA
	flags uint8
	frac  uint8
	width uint8
}

func setupPulse(env Env, p packet.Packet) State {
	s := &pulse{
		c:     hue(p.Data[0], p.Data[1]),
		flags: p.Data[2],
		width: uint8(min(max(env.Length, 1), maskWidth)),
	}
	s.cur = s.fit(mask24(p))
	s.prev = s.cur
	return s
}

func mask24(p packet.Packet) uint64 {
	return uint64(p.Data[3]) | uint64(p.Data[4])<<8 | uint64(p.Data[5])<<16
}

func (s *pulse) fit(m uint64) uint64 {
	if s.width < maskWidth {
		m &= 1<<s.width - 1
	}
	return m
}

func (s *pulse) shift(m uint64) uint64 {
	w := uint(s.width)
	rotate := s.flags&pulseRotate != 0
	if s.flags&pulseDown != 0 {
		out := m >> 1
		if rotate && m&1 != 0 {
			out |= 1 << (w - 1)
		}
		return out
	}
	out := m << 1
	if rotate && m&(1<<(w-1)) != 0 {
		out |= 1
	}
	return s.fit(out)
}

func (s *pulse) Tick(_ Env, frac uint8) Result {
	s.frac = frac
	if frac != 0 {
		return Continue
	}
	if s.cur == 0 && s.prev == 0 {
		return Stop
	}
	s.prev = s.cur
	s.cur = s.shift(s.cur)
	return Continue
}

func (s *pulse) Pixel(pos int) color.RGBA {
	if pos < 0 || pos >= maskWidth {
		return off
	}
	var w uint32
	if s.prev&(1<<uint(pos)) != 0 {
		w += clock.TickLength - uint32(s.frac)
	}
	if s.cur&(1<<uint(pos)) != 0 {
		w += uint32(s.frac)
	}
	if w == 0 {
		return off
	}
	c := s.c
	c.A = uint8(w * uint32(c.A) / clock.TickLength)
	return c
}

func (s *pulse) Message(_ Env, p packet.Packet) Result {
	s.cur = s.fit(mask24(p))
	return Continue
}
