package effect

import (
	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

// The deadline kinds carry a duration in payload bytes 4 (beats) and 5
// (sub-ticks) and measure it against the beat clock with clock.Sub. They end
// once the deadline has passed. A message with an empty payload ends any of
// them early.

func deadline(env Env, p packet.Packet) clock.Time {
	return clock.Add(env.Now, uint32(p.Data[4]), uint32(p.Data[5]))
}

// remaining scales the time left before end to [0, 0xff] of the span that
// began at start.
func remaining(now, start, end clock.Time) uint32 {
	total := clock.Sub(end, start)
	left := clock.Sub(end, now)
	if total <= 0 || left <= 0 {
		return 0
	}
	if left >= total {
		return 0xff
	}
	return uint32(left * 0xff / total)
}

// timeout shows a color until its deadline. Payload: HSVA, beats, sub-ticks.
// A message pushes the deadline out to its own duration from now.
type timeout struct {
	c   color.RGBA
	end clock.Time
}

func setupTimeout(env Env, p packet.Packet) State {
	return &timeout{c: hsva(p), end: deadline(env, p)}
}

func (t *timeout) Tick(env Env, _ uint8) Result {
	if clock.Sub(t.end, env.Now) < 0 {
		return Stop
	}
	return Continue
}

func (t *timeout) Pixel(int) color.RGBA { return t.c }

func (t *timeout) Message(env Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	t.end = deadline(env, p)
	return Continue
}

// fade ramps alpha down to zero over its duration. Payload: HSVA, beats,
// sub-ticks. A message restarts the ramp with its own duration.
type fade struct {
	c     color.RGBA
	base  uint8
	start clock.Time
	end   clock.Time
}

func setupFade(env Env, p packet.Packet) State {
	f := &fade{c: hsva(p)}
	f.base = f.c.A
	f.start, f.end = env.Now, deadline(env, p)
	f.c.A = f.alpha(env.Now)
	return f
}

func (f *fade) alpha(now clock.Time) uint8 {
	return uint8(uint32(f.base) * remaining(now, f.start, f.end) / 0xff)
}

func (f *fade) Tick(env Env, _ uint8) Result {
	f.c.A = f.alpha(env.Now)
	if clock.Sub(f.end, env.Now) < 0 {
		return Stop
	}
	return Continue
}

func (f *fade) Pixel(int) color.RGBA { return f.c }

func (f *fade) Message(env Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	f.start, f.end = env.Now, deadline(env, p)
	f.c.A = f.alpha(env.Now)
	return Continue
}

// countdown lights a bar from position 0 whose length is proportional to
// the time left. Payload: HSVA, beats, sub-ticks. A message restarts it.
type countdown struct {
	c     color.RGBA
	lit   uint16
	start clock.Time
	end   clock.Time
}

func setupCountdown(env Env, p packet.Packet) State {
	c := &countdown{c: hsva(p), start: env.Now, end: deadline(env, p)}
	c.measure(env)
	return c
}

func (c *countdown) measure(env Env) {
	n := min(env.Length, 0xffff)
	left := remaining(env.Now, c.start, c.end)
	c.lit = uint16((uint32(n)*left + 0xfe) / 0xff)
}

func (c *countdown) Tick(env Env, _ uint8) Result {
	c.measure(env)
	if clock.Sub(c.end, env.Now) < 0 {
		return Stop
	}
	return Continue
}

func (c *countdown) Pixel(pos int) color.RGBA {
	if pos < int(c.lit) {
		return c.c
	}
	return off
}

func (c *countdown) Message(env Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	c.start, c.end = env.Now, deadline(env, p)
	c.measure(env)
	return Continue
}

// hueRamp slides the hue from h0 to h1 over its duration and then holds h1.
// Payload: h0, h1, value, alpha, beats, sub-ticks. A message ramps from the
// current hue to Data[1] over its own duration.
type hueRamp struct {
	from  uint8
	to    uint8
	v     uint8
	a     uint8
	cur   uint8
	start clock.Time
	end   clock.Time
}

func setupHueRamp(env Env, p packet.Packet) State {
	h := &hueRamp{from: p.Data[0], to: p.Data[1], v: p.Data[2], a: p.Data[3]}
	h.start, h.end = env.Now, deadline(env, p)
	h.update(env.Now)
	return h
}

func (h *hueRamp) update(now clock.Time) {
	done := 0xff - int(remaining(now, h.start, h.end))
	if clock.Sub(h.end, now) <= 0 {
		done = 0xff
	}
	h.cur = uint8(int(h.from) + (int(h.to)-int(h.from))*done/0xff)
}

func (h *hueRamp) Tick(env Env, _ uint8) Result {
	h.update(env.Now)
	return Continue
}

func (h *hueRamp) Pixel(int) color.RGBA {
	return color.HSVAToRGBA(color.HSVA{H: h.cur, S: 0xff, V: h.v, A: h.a})
}

func (h *hueRamp) Message(env Env, p packet.Packet) Result {
	if zero(p) {
		return Stop
	}
	h.from, h.to = h.cur, p.Data[1]
	h.start, h.end = env.Now, deadline(env, p)
	h.update(env.Now)
	return Continue
}
