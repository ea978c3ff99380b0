// Package color implements the fixed-point color formats used on the wire and
// on the strip: 8-bit RGBA, packed 5-5-5 RGB16 and 8-bit HSVA.
package color

// Packed RGB as sent to the strip: 1BBB BBRR RRRG GGGG.
// The top bit is the strip protocol marker and is always set.
const (
	RShift = 5
	GShift = 0
	BShift = 10

	RMask RGB16 = 0x1f << RShift
	GMask RGB16 = 0x1f << GShift
	BMask RGB16 = 0x1f << BShift

	Marker RGB16 = 0x8000
)

// Empty is the packed color of a pixel with no effects (black, marker set).
const Empty RGB16 = Marker

// RGB16 is a packed strip color.
type RGB16 uint16

// RGBA is the internal color representation. A == 0xff is fully opaque.
type RGBA struct {
	R, G, B, A uint8
}

// EmptyRGBA is the unpacked form of Empty.
var EmptyRGBA = RGBA{0, 0, 0, 0xff}

// HSVA as sent over the wire. Hue is 0..254; 255 is treated as 254.
type HSVA struct {
	H, S, V, A uint8
}

// HSVAFromBytes reads an HSVA value from the first four bytes of b.
// Missing bytes read as zero.
func HSVAFromBytes(b []byte) HSVA {
	var v [4]uint8
	copy(v[:], b)
	return HSVA{H: v[0], S: v[1], V: v[2], A: v[3]}
}

// Bytes returns the wire form of h.
func (h HSVA) Bytes() [4]byte {
	return [4]byte{h.H, h.S, h.V, h.A}
}

func field(c RGB16, mask RGB16, shift uint) uint8 {
	return uint8((c & mask) >> shift)
}

func five(x uint8) uint8 {
	return (x << 3) | (x >> 2)
}

// Pack quantizes c to 5 bits per channel. Alpha is dropped.
func Pack(c RGBA) RGB16 {
	return (RGB16(c.R>>3)<<RShift)&RMask |
		(RGB16(c.G>>3)<<GShift)&GMask |
		(RGB16(c.B>>3)<<BShift)&BMask |
		Marker
}

// Unpack expands a packed color back to 8 bits per channel by bit replication.
// The result is always opaque.
func Unpack(p RGB16) RGBA {
	return RGBA{
		R: five(field(p, RMask, RShift)),
		G: five(field(p, GMask, GShift)),
		B: five(field(p, BMask, BShift)),
		A: 0xff,
	}
}

// RGB returns the 8-bit red, green and blue channels of p.
func (p RGB16) RGB() (r, g, b uint8) {
	c := Unpack(p)
	return c.R, c.G, c.B
}

// HSVAToRGBA converts over six hue sextants split at 42/84/127/169/212.
// Integer truncation order matters: effects rely on the exact mapping.
func HSVAToRGBA(in HSVA) RGBA {
	out := RGBA{A: in.A}

	hue := int32(in.H)
	if hue == 255 {
		hue = 254
	}
	sat := int32(in.S)
	val := int32(in.V)

	chroma := val * sat
	m := 255*val - chroma
	d := hue%85 - 42
	if d < 0 {
		d = -d
	}
	x := (42 - d) * chroma

	x8 := uint8(x / (255 * 42))
	c8 := uint8(chroma / 255)
	m8 := uint8(m / 255)

	switch {
	case hue < 42:
		out.R, out.G, out.B = c8+m8, x8+m8, m8
	case hue < 84:
		out.R, out.G, out.B = x8+m8, c8+m8, m8
	case hue < 127:
		out.R, out.G, out.B = m8, c8+m8, x8+m8
	case hue < 169:
		out.R, out.G, out.B = m8, x8+m8, c8+m8
	case hue < 212:
		out.R, out.G, out.B = x8+m8, m8, c8+m8
	default:
		out.R, out.G, out.B = c8+m8, m8, x8+m8
	}
	return out
}

// Mix composites top over bot. Mixed colors are not re-blendable, so the
// result is always opaque.
func Mix(top, bot RGBA) RGBA {
	a := uint32(top.A)
	ia := 0xff - a
	bot.R = uint8((uint32(bot.R)*ia + uint32(top.R)*a) / 0xff)
	bot.G = uint8((uint32(bot.G)*ia + uint32(top.G)*a) / 0xff)
	bot.B = uint8((uint32(bot.B)*ia + uint32(top.B)*a) / 0xff)
	bot.A = 0xff
	return bot
}

// mixField blends one 8-bit top channel into a masked field of bot. The
// field is widened the way Unpack widens it, so the result matches
// Pack(Mix(top, Unpack(bot))) exactly.
func mixField(bot RGB16, mask RGB16, shift uint, top uint8, a uint32) RGB16 {
	b := uint32(five(field(bot, mask, shift)))
	v := (b*(0xff-a) + uint32(top)*a) / 0xff
	return (RGB16(v>>3) << shift) & mask
}

// MixRGB composites top over an already packed color.
func MixRGB(top RGBA, bot RGB16) RGB16 {
	if top.A == 0 {
		return bot | Marker
	}
	a := uint32(top.A)
	return Marker |
		mixField(bot, RMask, RShift, top.R, a) |
		mixField(bot, GMask, GShift, top.G, a) |
		mixField(bot, BMask, BShift, top.B, a)
}

func filterField(c RGB16, mask RGB16, f, k uint8) RGB16 {
	return RGB16((uint32(c&mask)*uint32(f)*uint32(k))/0xfe01) & mask
}

// Filter scales each channel by its factor and the overall factor k.
// All factors at 0xff leave the color unchanged.
func Filter(c RGB16, rf, gf, bf, kf uint8) RGB16 {
	return Marker |
		filterField(c, RMask, rf, kf) |
		filterField(c, GMask, gf, kf) |
		filterField(c, BMask, bf, kf)
}
