// Package effect is the catalog of lighting behaviors. Each kind declares
// the size of its private state and builds that state from a creation
// packet; the engine drives it through Tick, Pixel and Message.
//
// Tick is called with fraction 0 exactly once per beat and with other
// fractions as sync packets arrive. Pixel is called once per pixel per frame
// and must not modify state. Message receives the unmodified packet.
package effect

import (
	"fmt"
	"unsafe"

	"github.com/coreman2200/bespeckle/internal/clock"
	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/packet"
)

// MaxStateSize bounds the private state of every kind, in bytes.
const MaxStateSize = 32

// Kind is the creation opcode of a behavior.
type Kind uint8

const (
	KindSolid     Kind = 0x00
	KindFlash     Kind = 0x01
	KindStripe    Kind = 0x02
	KindRainbow   Kind = 0x03
	KindChase     Kind = 0x04
	KindStrobe    Kind = 0x10
	KindWipe      Kind = 0x20
	KindExpand    Kind = 0x21
	KindShrink    Kind = 0x22
	KindPulse     Kind = 0x30
	KindTimeout   Kind = 0x40
	KindFade      Kind = 0x41
	KindCountdown Kind = 0x42
	KindHueRamp   Kind = 0x43
)

// Result tells the engine whether an effect is finished.
type Result bool

const (
	Continue Result = false
	Stop     Result = true
)

// Env is what an effect may read about the node besides its own state.
type Env struct {
	Now    clock.Time
	Length int
}

// State is the live, kind-specific part of an effect.
type State interface {
	Tick(env Env, frac uint8) Result
	Pixel(pos int) color.RGBA
	Message(env Env, p packet.Packet) Result
}

// Behavior describes one kind. Behaviors are immutable and shared by every
// effect of that kind.
type Behavior struct {
	Kind  Kind
	Name  string
	Size  uintptr
	Setup func(env Env, p packet.Packet) State
}

func (b *Behavior) String() string {
	return fmt.Sprintf("%s(0x%02x)", b.Name, uint8(b.Kind))
}

var off = color.RGBA{}

var catalog = []Behavior{
	{KindSolid, "solid", unsafe.Sizeof(solid{}), setupSolid},
	{KindFlash, "flash", unsafe.Sizeof(flash{}), setupFlash},
	{KindStripe, "stripe", unsafe.Sizeof(stripe{}), setupStripe},
	{KindRainbow, "rainbow", unsafe.Sizeof(rainbow{}), setupRainbow},
	{KindChase, "chase", unsafe.Sizeof(chase{}), setupChase},
	{KindStrobe, "strobe", unsafe.Sizeof(strobe{}), setupStrobe},
	{KindWipe, "wipe", unsafe.Sizeof(sweep{}), setupSweep(sweepWipe)},
	{KindExpand, "expand", unsafe.Sizeof(sweep{}), setupSweep(sweepExpand)},
	{KindShrink, "shrink", unsafe.Sizeof(sweep{}), setupSweep(sweepShrink)},
	{KindPulse, "pulse", unsafe.Sizeof(pulse{}), setupPulse},
	{KindTimeout, "timeout", unsafe.Sizeof(timeout{}), setupTimeout},
	{KindFade, "fade", unsafe.Sizeof(fade{}), setupFade},
	{KindCountdown, "countdown", unsafe.Sizeof(countdown{}), setupCountdown},
	{KindHueRamp, "hueramp", unsafe.Sizeof(hueRamp{}), setupHueRamp},
}

var byKind [256]*Behavior

func init() {
	if err := validate(catalog); err != nil {
		panic(err)
	}
	for i := range catalog {
		byKind[catalog[i].Kind] = &catalog[i]
	}
}

func validate(bs []Behavior) error {
	seen := map[Kind]string{}
	for _, b := range bs {
		if b.Kind&packet.FlagCmd != 0 {
			return fmt.Errorf("effect %s: kind 0x%02x collides with control flag", b.Name, uint8(b.Kind))
		}
		if b.Size > MaxStateSize {
			return fmt.Errorf("effect %s: state is %d bytes, max %d", b.Name, b.Size, MaxStateSize)
		}
		if other, ok := seen[b.Kind]; ok {
			return fmt.Errorf("effect %s: kind 0x%02x already used by %s", b.Name, uint8(b.Kind), other)
		}
		if b.Setup == nil {
			return fmt.Errorf("effect %s: no setup", b.Name)
		}
		seen[b.Kind] = b.Name
	}
	return nil
}

// Lookup returns the behavior for a creation opcode.
func Lookup(cmd uint8) (*Behavior, bool) {
	b := byKind[cmd]
	return b, b != nil
}

// All returns the catalog in id order.
func All() []Behavior {
	out := make([]Behavior, len(catalog))
	copy(out, catalog)
	return out
}

// hsva reads the HSVA color carried in the first four payload bytes.
func hsva(p packet.Packet) color.RGBA {
	return color.HSVAToRGBA(color.HSVAFromBytes(p.Data[:4]))
}

// hue builds an opaque, saturated color from a hue and value byte.
func hue(h, v uint8) color.RGBA {
	return color.HSVAToRGBA(color.HSVA{H: h, S: 0xff, V: v, A: 0xff})
}

// zero reports whether every payload byte is zero.
func zero(p packet.Packet) bool {
	return p.Data == [packet.DataSize]uint8{}
}
