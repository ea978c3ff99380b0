package effect

import (
	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

type sweepMode uint8

const (
	sweepWipe sweepMode = iota
	sweepExpand
	sweepShrink
)

const flagHold = 0x01

// sweep moves the edge of a lit window once per beat and interpolates it
// within the beat using the fraction. The sweep starts on the first beat
// after creation.
//
// Payloads, all starting with hue and value:
//
//	wipe:   hue, value, from, to, beats (0 means 1), flags
//	expand: hue, value, center, speed (px/beat, 0 means 1), max radius (0 means length), flags
//	shrink: hue, value, center, speed, start radius (0 means length), flags
//
// Flag bit 0 holds the final window instead of ending. A message with an
// empty payload ends the sweep; any other message restarts it.
type sweep struct {
	c     color.RGBA
	mode  sweepMode
	a     uint8
	b     uint8
	rate  uint8
	limit uint16
	hold  bool
	beat  uint16
	lo    int32
	hi    int32
}

func setupSweep(mode sweepMode) func(Env, packet.Packet) State {
	return func(env Env, p packet.Packet) State {
		s := &sweep{
			c:    hue(p.Data[0], p.Data[1]),
			mode: mode,
			a:    p.Data[2],
			rate: p.Data[4],
			hold: p.Data[5]&flagHold != 0,
		}
		if s.rate == 0 {
			s.rate = 1
		}
		switch mode {
		case sweepWipe:
			s.b = p.Data[3]
		default:
			s.rate = p.Data[3]
			if s.rate == 0 {
				s.rate = 1
			}
			s.limit = uint16(p.Data[4])
			if s.limit == 0 {
				s.limit = uint16(min(env.Length, 0xffff))
			}
		}
		s.place(0)
		return s
	}
}

// beats returns how many beats the sweep takes to finish.
func (s *sweep) beats() int {
	r, l := int(s.rate), int(s.limit)
	switch s.mode {
	case sweepExpand:
		return (l + r - 1) / r
	case sweepShrink:
		return l/r + 1
	}
	return r
}

// place positions the window for progress p, in sub-ticks since the start.
func (s *sweep) place(p int) {
	switch s.mode {
	case sweepWipe:
		total := s.beats() * clock.TickLength
		if p > total {
			p = total
		}
		from, to := int(s.a), int(s.b)
		head := from + (to-from)*p/total
		s.lo, s.hi = int32(min(from, head)), int32(max(from, head))
	case sweepExpand:
		r := min(int(s.rate)*p/clock.TickLength, int(s.limit))
		s.lo, s.hi = int32(int(s.a)-r), int32(int(s.a)+r)
	case sweepShrink:
		r := int(s.limit) - int(s.rate)*p/clock.TickLength
		if r < 0 {
			s.lo, s.hi = 1, 0
			return
		}
		s.lo, s.hi = int32(int(s.a)-r), int32(int(s.a)+r)
	}
}

func (s *sweep) Tick(_ Env, frac uint8) Result {
	if frac == 0 && s.beat < 0xffff {
		s.beat++
	}
	if s.beat == 0 {
		return Continue
	}
	s.place((int(s.beat)-1)*clock.TickLength + int(frac))
	if !s.hold && int(s.beat)-1 > s.beats() {
		return Stop
	}
	return Continue
}

func (s *sweep) Pixel(pos int) color.RGBA {
	if pos >= int(s.lo) && pos <= int(s.hi) {
		return s.c
	}
	return off
}

func (s *sweep) Message(_ Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	s.beat = 0
	s.place(0)
	return Continue
}
