package effect

import (
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

// rainbow spreads the hue wheel along the strip. Payload: offset, rate.
// The offset advances one step per beat; a message sets the rate from its
// first byte.
type rainbow struct {
	offset uint8
	rate   uint8
}

func setupRainbow(_ Env, p packet.Packet) State {
	return &rainbow{offset: p.Data[0], rate: p.Data[1]}
}

func (r *rainbow) Tick(_ Env, frac uint8) Result {
	if frac == 0 {
		r.offset++
	}
	return Continue
}

func (r *rainbow) Pixel(pos int) color.RGBA {
	return color.HSVAToRGBA(color.HSVA{
		H: r.offset + uint8(pos)*r.rate,
		S: 0xff,
		V: 0xff,
		A: 0xff,
	})
}

func (r *rainbow) Message(_ Env, p packet.Packet) Result {
	r.rate = p.Data[0]
	return Continue
}

// chase lights a single position and moves it one step per beat.
// Payload: raw R, G, B, A, start position. A message moves it to Data[0].
type chase struct {
	c   color.RGBA
	pos int
}

func setupChase(env Env, p packet.Packet) State {
	c := &chase{c: color.RGBA{R: p.Data[0], G: p.Data[1], B: p.Data[2], A: p.Data[3]}}
	c.pos = wrap(int(p.Data[4]), env.Length)
	return c
}

func (c *chase) Tick(env Env, frac uint8) Result {
	if frac == 0 {
		c.pos = wrap(c.pos+1, env.Length)
	}
	return Continue
}

func (c *chase) Pixel(pos int) color.RGBA {
	if pos == c.pos {
		return c.c
	}
	return off
}

func (c *chase) Message(env Env, p packet.Packet) Result {
	c.pos = wrap(int(p.Data[0]), env.Length)
	return Continue
}

func wrap(pos, length int) int {
	if length <= 0 {
		return 0
	}
	return pos % length
}
