package effect

import (
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

// solid paints every position with one color. Payload: HSVA.
// A message carrying HSVA recolors it.
type solid struct {
	c color.RGBA
}

func setupSolid(_ Env, p packet.Packet) State {
	return &solid{c: hsva(p)}
}

func (s *solid) Tick(Env, uint8) Result { return Continue }

func (s *solid) Pixel(int) color.RGBA { return s.c }

func (s *solid) Message(_ Env, p packet.Packet) Result {
	s.c = hsva(p)
	return Continue
}

// flash is a solid color whose alpha flips on every beat.
type flash struct {
	c color.RGBA
}

func setupFlash(_ Env, p packet.Packet) State {
	return &flash{c: hsva(p)}
}

func (f *flash) Tick(_ Env, frac uint8) Result {
	if frac == 0 {
		f.c.A ^= 0xff
	}
	return Continue
}

func (f *flash) Pixel(int) color.RGBA { return f.c }

func (f *flash) Message(_ Env, p packet.Packet) Result {
	a := f.c.A
	f.c = hsva(p)
	f.c.A = a
	return Continue
}

// stripe inverts the color on two of every three positions.
type stripe struct {
	c color.RGBA
}

func setupStripe(_ Env, p packet.Packet) State {
	return &stripe{c: hsva(p)}
}

func (s *stripe) Tick(Env, uint8) Result { return Continue }

func (s *stripe) Pixel(pos int) color.RGBA {
	if pos%3 == 0 {
		return s.c
	}
	return color.RGBA{R: ^s.c.R, G: ^s.c.G, B: ^s.c.B, A: s.c.A}
}

func (s *stripe) Message(_ Env, p packet.Packet) Result {
	s.c = hsva(p)
	return Continue
}
