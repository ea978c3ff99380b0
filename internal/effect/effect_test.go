package effect

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	env0 = Env{Length: 10}
)

func create(t *testing.T, kind Kind, env Env, data ...uint8) State {
	t.Helper()
	b, ok := Lookup(uint8(kind))
	require.True(t, ok, "kind 0x%02x", uint8(kind))
	s := b.Setup(env, packet.New(uint8(kind), 'x', data...))
	require.NotNil(t, s)
	return s
}

func at(tick uint32, frac uint8) Env {
	return Env{Now: clock.Time{Tick: tick, Frac: frac}, Length: 10}
}

func lit(s State, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = s.Pixel(i) != off
	}
	return out
}

func TestCatalogStateSizes(t *testing.T) {
	all := All()
	require.NotEmpty(t, all)
	for _, b := range all {
		assert.LessOrEqual(t, b.Size, uintptr(MaxStateSize), b.Name)
		s := b.Setup(env0, packet.New(uint8(b.Kind), 1))
		assert.NotNil(t, s, b.Name)
	}
	assert.Equal(t, unsafe.Sizeof(sweep{}), byKind[KindWipe].Size)
}

func TestValidateRejects(t *testing.T) {
	ok := Behavior{Kind: 1, Name: "a", Size: 4, Setup: setupSolid}
	assert.NoError(t, validate([]Behavior{ok}))

	big := ok
	big.Size = MaxStateSize + 1
	assert.Error(t, validate([]Behavior{big}))

	dup := ok
	dup.Name = "b"
	assert.Error(t, validate([]Behavior{ok, dup}))

	ctl := ok
	ctl.Kind = 0x81
	assert.Error(t, validate([]Behavior{ctl}))

	assert.Error(t, validate([]Behavior{{Kind: 2, Name: "nil"}}))
}

func TestLookup(t *testing.T) {
	b, ok := Lookup(0x00)
	require.True(t, ok)
	assert.Equal(t, "solid", b.Name)
	assert.Equal(t, "solid(0x00)", b.String())

	_, ok = Lookup(0x05)
	assert.False(t, ok)
	_, ok = Lookup(packet.Stop)
	assert.False(t, ok)
}

func TestSolid(t *testing.T) {
	s := create(t, KindSolid, env0, 0x00, 0xff, 0xff, 0xff)
	for pos := 0; pos < 10; pos++ {
		assert.Equal(t, red, s.Pixel(pos))
	}
	assert.Equal(t, Continue, s.Tick(env0, 0))

	assert.Equal(t, Continue, s.Message(env0, packet.New(packet.Msg, 'x', 85, 0xff, 0xff, 0x80)))
	want := color.HSVAToRGBA(color.HSVA{H: 85, S: 0xff, V: 0xff, A: 0x80})
	assert.Equal(t, want, s.Pixel(3))
}

func TestFlashTogglesOnBeat(t *testing.T) {
	s := create(t, KindFlash, env0, 0x00, 0xff, 0xff, 0xff)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)
	s.Tick(env0, 120)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)
	s.Tick(env0, 0)
	assert.Equal(t, uint8(0x00), s.Pixel(0).A)
	s.Tick(env0, 0)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)
}

func TestStripe(t *testing.T) {
	s := create(t, KindStripe, env0, 0x00, 0xff, 0xff, 0xff)
	inv := color.RGBA{R: 0, G: 0xff, B: 0xff, A: 0xff}
	assert.Equal(t, red, s.Pixel(0))
	assert.Equal(t, inv, s.Pixel(1))
	assert.Equal(t, inv, s.Pixel(2))
	assert.Equal(t, red, s.Pixel(3))
}

func TestRainbow(t *testing.T) {
	s := create(t, KindRainbow, env0, 10, 20)
	want := func(h uint8) color.RGBA {
		return color.HSVAToRGBA(color.HSVA{H: h, S: 0xff, V: 0xff, A: 0xff})
	}
	assert.Equal(t, want(10), s.Pixel(0))
	assert.Equal(t, want(50), s.Pixel(2))

	s.Tick(env0, 100)
	assert.Equal(t, want(10), s.Pixel(0))
	s.Tick(env0, 0)
	assert.Equal(t, want(11), s.Pixel(0))

	s.Message(env0, packet.New(packet.Msg, 'x', 1))
	assert.Equal(t, want(14), s.Pixel(3))
}

func TestChaseWraps(t *testing.T) {
	env := Env{Length: 5}
	s := create(t, KindChase, env, 1, 2, 3, 4, 3)
	assert.Equal(t, []bool{false, false, false, true, false}, lit(s, 5))
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 4}, s.Pixel(3))

	s.Tick(env, 0)
	assert.Equal(t, []bool{false, false, false, false, true}, lit(s, 5))
	s.Tick(env, 0)
	assert.Equal(t, []bool{true, false, false, false, false}, lit(s, 5))
	s.Tick(env, 60)
	assert.True(t, lit(s, 5)[0])

	s.Message(env, packet.New(packet.Msg, 'x', 7))
	assert.Equal(t, []bool{false, false, true, false, false}, lit(s, 5))
}

func TestLongStripReachesPastByteRange(t *testing.T) {
	env := Env{Length: 300}
	chase := create(t, KindChase, env, 1, 2, 3, 0xff, 250)
	for i := 0; i < 10; i++ {
		chase.Tick(env, 0)
	}
	assert.NotEqual(t, off, chase.Pixel(260))
	assert.Equal(t, off, chase.Pixel(4))
	for i := 0; i < 40; i++ {
		chase.Tick(env, 0)
	}
	assert.NotEqual(t, off, chase.Pixel(0))

	// radius 0 spans the whole strip
	shrink := create(t, KindShrink, env, 0, 0xff, 0, 1, 0, 0)
	assert.NotEqual(t, off, shrink.Pixel(299))

	countdown := create(t, KindCountdown, Env{Length: 300}, 0x00, 0xff, 0xff, 0xff, 1, 0)
	assert.Equal(t, 300, count(lit(countdown, 300)))
}

func TestStrobe(t *testing.T) {
	s := create(t, KindStrobe, env0, 0x00, 0xff, 0xff, 0xff, 2, 60)
	s.Tick(env0, 0)
	assert.Equal(t, off, s.Pixel(0))
	s.Tick(env0, 0)
	assert.Equal(t, red, s.Pixel(0))
	s.Tick(env0, 59)
	assert.Equal(t, red, s.Pixel(0))
	s.Tick(env0, 60)
	assert.Equal(t, off, s.Pixel(0))

	assert.Equal(t, Stop, s.Message(env0, packet.New(packet.Msg, 'x')))
}

func TestWipe(t *testing.T) {
	s := create(t, KindWipe, env0, 0, 0xff, 0, 8, 2, 0)
	assert.Equal(t, []bool{true, false, false}, lit(s, 3))

	assert.Equal(t, Continue, s.Tick(env0, 0))
	assert.Equal(t, []bool{true, false, false}, lit(s, 3))

	s.Tick(env0, 120)
	assert.Equal(t, []bool{true, true, true, false}, lit(s, 4))

	s.Tick(env0, 0)
	assert.Equal(t, []bool{true, true, true, true, true, false}, lit(s, 6))

	assert.Equal(t, Continue, s.Tick(env0, 0))
	assert.Equal(t, []bool{true, true, true, true, true, true, true, true, true, false}, lit(s, 10))

	assert.Equal(t, Stop, s.Tick(env0, 0))
}

func TestWipeHoldAndReverse(t *testing.T) {
	s := create(t, KindWipe, env0, 0, 0xff, 9, 7, 1, flagHold)
	for i := 0; i < 6; i++ {
		assert.Equal(t, Continue, s.Tick(env0, 0))
	}
	assert.Equal(t, []bool{false, false, false, false, false, false, false, true, true, true}, lit(s, 10))
}

func TestExpand(t *testing.T) {
	s := create(t, KindExpand, env0, 0, 0xff, 5, 2, 4, 0)
	s.Tick(env0, 0)
	assert.Equal(t, []bool{false, false, false, false, false, true, false}, lit(s, 7))
	s.Tick(env0, 120)
	assert.Equal(t, []bool{false, false, false, false, true, true, true, false}, lit(s, 8))
	s.Tick(env0, 0)
	assert.Equal(t, []bool{false, false, false, true, true, true, true, true, false}, lit(s, 9))
	assert.Equal(t, Continue, s.Tick(env0, 0))
	assert.Equal(t, []bool{false, true, true, true, true, true, true, true, true, true}, lit(s, 10))
	assert.Equal(t, Stop, s.Tick(env0, 0))
}

func TestShrink(t *testing.T) {
	s := create(t, KindShrink, env0, 0, 0xff, 5, 2, 4, 0)
	assert.Equal(t, []bool{false, true, true, true, true, true, true, true, true, true}, lit(s, 10))
	s.Tick(env0, 0)
	s.Tick(env0, 0)
	assert.Equal(t, []bool{false, false, false, true, true, true, true, true, false}, lit(s, 9))
	s.Tick(env0, 0)
	assert.Equal(t, []bool{false, false, false, false, false, true, false}, lit(s, 7))
	assert.Equal(t, Continue, s.Tick(env0, 0))
	assert.Equal(t, make([]bool, 10), lit(s, 10))
	assert.Equal(t, Stop, s.Tick(env0, 0))
}

func TestSweepMessage(t *testing.T) {
	s := create(t, KindExpand, env0, 0, 0xff, 5, 2, 4, 0)
	s.Tick(env0, 0)
	s.Tick(env0, 0)
	assert.Equal(t, Continue, s.Message(env0, packet.New(packet.Msg, 'x', 1)))
	assert.Equal(t, []bool{false, false, false, false, false, true, false}, lit(s, 7))
	assert.Equal(t, Stop, s.Message(env0, packet.New(packet.Msg, 'x')))
}

func TestPulseCrossFade(t *testing.T) {
	s := create(t, KindPulse, env0, 0, 0xff, 0, 0x01)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)

	s.Tick(env0, 0)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)
	assert.Equal(t, off, s.Pixel(1))

	s.Tick(env0, 120)
	assert.Equal(t, uint8(127), s.Pixel(0).A)
	assert.Equal(t, uint8(127), s.Pixel(1).A)
	assert.Equal(t, off, s.Pixel(2))
	assert.Equal(t, off, s.Pixel(70))
}

func TestPulseRotateAndDrain(t *testing.T) {
	env := Env{Length: 3}
	s := create(t, KindPulse, env, 0, 0xff, pulseRotate, 0x04)
	s.Tick(env, 0)
	s.Tick(env, 239)
	assert.Equal(t, []bool{true, false, true}, lit(s, 3))
	assert.Equal(t, uint8(0xff*239/240), s.Pixel(0).A)

	d := create(t, KindPulse, env, 0, 0xff, pulseDown, 0x01)
	assert.Equal(t, Continue, d.Tick(env, 0))
	assert.Equal(t, Continue, d.Tick(env, 0))
	assert.Equal(t, Stop, d.Tick(env, 0))
}

func TestTimeout(t *testing.T) {
	s := create(t, KindTimeout, at(0, 0), 0x00, 0xff, 0xff, 0xff, 1, 0)
	assert.Equal(t, Continue, s.Tick(at(0, 200), 200))
	assert.Equal(t, Continue, s.Tick(at(1, 0), 0))
	assert.Equal(t, Stop, s.Tick(at(1, 10), 10))

	assert.Equal(t, Continue, s.Message(at(1, 10), packet.New(packet.Msg, 'x', 0, 0, 0, 0, 2, 0)))
	assert.Equal(t, Continue, s.Tick(at(3, 10), 10))
	assert.Equal(t, Stop, s.Tick(at(3, 11), 11))
	assert.Equal(t, red, s.Pixel(4))
}

func TestFade(t *testing.T) {
	s := create(t, KindFade, at(0, 0), 0x00, 0xff, 0xff, 0xff, 1, 0)
	assert.Equal(t, uint8(0xff), s.Pixel(0).A)
	assert.Equal(t, Continue, s.Tick(at(0, 120), 120))
	assert.Equal(t, uint8(127), s.Pixel(0).A)
	assert.Equal(t, Continue, s.Tick(at(1, 0), 0))
	assert.Equal(t, uint8(0), s.Pixel(0).A)
	assert.Equal(t, Stop, s.Tick(at(1, 1), 1))
}

func TestCountdown(t *testing.T) {
	s := create(t, KindCountdown, at(0, 0), 0x00, 0xff, 0xff, 0xff, 1, 0)
	assert.Equal(t, 10, count(lit(s, 10)))
	s.Tick(at(0, 120), 120)
	assert.Equal(t, []bool{true, true, true, true, true, false, false, false, false, false}, lit(s, 10))
	s.Tick(at(1, 0), 0)
	assert.Equal(t, 0, count(lit(s, 10)))
	assert.Equal(t, Stop, s.Tick(at(1, 1), 1))
}

func TestHueRamp(t *testing.T) {
	s := create(t, KindHueRamp, at(0, 0), 0, 100, 0xff, 0xff, 1, 0)
	hueAt := func(h uint8) color.RGBA {
		return color.HSVAToRGBA(color.HSVA{H: h, S: 0xff, V: 0xff, A: 0xff})
	}
	assert.Equal(t, hueAt(0), s.Pixel(0))
	s.Tick(at(0, 120), 120)
	assert.Equal(t, hueAt(50), s.Pixel(0))
	assert.Equal(t, Continue, s.Tick(at(2, 0), 0))
	assert.Equal(t, hueAt(100), s.Pixel(0))

	s.Message(at(2, 0), packet.New(packet.Msg, 'x', 0, 200, 0, 0, 0, 0))
	assert.Equal(t, hueAt(200), s.Pixel(0))
	assert.Equal(t, Stop, s.Message(at(2, 0), packet.New(packet.Msg, 'x')))
}

func count(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
