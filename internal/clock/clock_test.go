package clock

import (
	"math/rand"
	"testing"
)

func TestAddCarries(t *testing.T) {
	cases := []struct {
		start    Time
		beats    uint32
		sub      uint32
		expected Time
	}{
		{Time{0, 0}, 0, 0, Time{0, 0}},
		{Time{0, 0}, 1, 0, Time{1, 0}},
		{Time{0, 100}, 0, 139, Time{0, 239}},
		{Time{0, 100}, 0, 140, Time{1, 0}},
		{Time{0, 239}, 0, 255, Time{2, 14}},
		{Time{5, 200}, 2, 50, Time{8, 10}},
		{Time{0, 0}, 0, 240 * 3, Time{3, 0}},
	}
	for _, c := range cases {
		got := Add(c.start, c.beats, c.sub)
		if got != c.expected {
			t.Fatalf("Add(%+v, %d, %d) = %+v, want %+v", c.start, c.beats, c.sub, got, c.expected)
		}
		if got.Frac >= TickLength {
			t.Fatalf("fraction not normalized: %+v", got)
		}
	}
}

func TestSubSigned(t *testing.T) {
	a := Time{10, 20}
	b := Time{12, 10}
	if d := Sub(b, a); d != 2*TickLength-10 {
		t.Fatalf("Sub(b, a) = %d", d)
	}
	if d := Sub(a, b); d != -(2*TickLength - 10) {
		t.Fatalf("Sub(a, b) = %d", d)
	}
	if d := Sub(a, a); d != 0 {
		t.Fatalf("Sub(a, a) = %d", d)
	}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Fatal("Before disagrees with Sub")
	}
}

func TestAddSubInverse(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		start := Time{Tick: uint32(r.Intn(1 << 20)), Frac: uint8(r.Intn(TickLength))}
		beats := uint32(r.Intn(100))
		sub := uint32(r.Intn(1000))
		end := Add(start, beats, sub)
		if d := Sub(end, start); d != int64(beats)*TickLength+int64(sub) {
			t.Fatalf("Sub(Add(%+v, %d, %d)) = %d", start, beats, sub, d)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(Time{3, 250}); got != (Time{4, 10}) {
		t.Fatalf("Normalize = %+v", got)
	}
}

func TestBeatResetsFraction(t *testing.T) {
	var c Clock
	c.Sync(120)
	passes := c.Beat()
	if c.Now() != (Time{1, 0}) || len(passes) != 1 || passes[0] != 0 {
		t.Fatalf("after beat: %+v passes=%v", c.Now(), passes)
	}
}

func TestSyncMovesForward(t *testing.T) {
	var c Clock
	if p := c.Sync(60); len(p) != 1 || p[0] != 60 {
		t.Fatalf("passes = %v", p)
	}
	if p := c.Sync(60); p != nil {
		t.Fatalf("repeat fraction delivered %v", p)
	}
	if p := c.Sync(180); len(p) != 1 || p[0] != 180 || c.Now() != (Time{0, 180}) {
		t.Fatalf("passes = %v now = %+v", p, c.Now())
	}
}

func TestSyncDilation(t *testing.T) {
	var c Clock
	c.Sync(200)
	p := c.Sync(40)
	if len(p) != 2 || p[0] != 0 || p[1] != 40 {
		t.Fatalf("passes = %v", p)
	}
	if c.Now() != (Time{1, 40}) {
		t.Fatalf("now = %+v", c.Now())
	}
	p = c.Sync(0)
	if len(p) != 1 || p[0] != 0 || c.Now() != (Time{2, 0}) {
		t.Fatalf("passes = %v now = %+v", p, c.Now())
	}
}

func TestSyncMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	var c Clock
	for i := 0; i < 5000; i++ {
		before := c.Now()
		if r.Intn(10) == 0 {
			c.Beat()
		} else {
			c.Sync(uint8(r.Intn(256)))
		}
		after := c.Now()
		if Sub(after, before) < 0 {
			t.Fatalf("clock went backwards: %+v -> %+v", before, after)
		}
		if after.Frac >= TickLength {
			t.Fatalf("fraction out of range: %+v", after)
		}
	}
}
