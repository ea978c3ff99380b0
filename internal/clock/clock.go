// Package clock keeps beat time as a (tick, fraction) pair.
package clock

// TickLength is the number of fracticks per beat.
const TickLength = 240

// Time is a beat count plus a fraction of a beat in [0, TickLength).
type Time struct {
	Tick uint32
	Frac uint8
}

// Add advances t by whole beats plus subticks, carrying every full
// TickLength of fraction into the beat counter.
func Add(t Time, beats uint32, subticks uint32) Time {
	f := uint32(t.Frac) + subticks
	t.Tick += beats + f/TickLength
	t.Frac = uint8(f % TickLength)
	return t
}

// Sub returns end - start in fracticks. The result is negative when end is
// before start.
func Sub(end, start Time) int64 {
	return (int64(end.Tick)-int64(start.Tick))*TickLength + (int64(end.Frac) - int64(start.Frac))
}

// Before reports whether a is strictly earlier than b.
func (t Time) Before(b Time) bool {
	return Sub(b, t) > 0
}

// Normalize folds an out-of-range fraction into the beat counter.
func Normalize(t Time) Time {
	return Add(Time{Tick: t.Tick}, 0, uint32(t.Frac))
}

// Clock is the node's view of the shared beat clock.
type Clock struct {
	now Time
}

// Now returns the current time.
func (c *Clock) Now() Time { return c.now }

// Reset sets the clock back to zero.
func (c *Clock) Reset() { c.now = Time{} }

// Beat advances to the start of the next beat. The returned fraction (always
// 0) is the pass to deliver to effects.
func (c *Clock) Beat() []uint8 {
	c.now.Tick++
	c.now.Frac = 0
	return []uint8{0}
}

// Sync moves the clock to fraction f of the current beat and returns the
// fraction passes effects must see, in order.
//
// The fraction only moves forward. A fraction lower than the last one
// delivered means a beat boundary was crossed without an explicit Beat, so
// the clock advances a beat and a 0 pass is delivered first. A repeated
// fraction is ignored.
func (c *Clock) Sync(f uint8) []uint8 {
	f %= TickLength
	switch {
	case f == c.now.Frac:
		return nil
	case f > c.now.Frac:
		c.now.Frac = f
		return []uint8{f}
	}
	c.now.Tick++
	c.now.Frac = f
	if f == 0 {
		return []uint8{0}
	}
	return []uint8{0, f}
}
