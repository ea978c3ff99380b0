package led

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

var (
	red  = color.Pack(color.RGBA{R: 0xff, A: 0xff})
	blue = color.Pack(color.RGBA{B: 0xff, A: 0xff})
)

func TestEncodePacked(t *testing.T) {
	frame := []color.RGB16{red, color.Empty, blue}
	buf := make([]byte, PackedFrameSize(len(frame)))
	require.Len(t, buf, 4+6+1)
	EncodePacked(buf, frame)
	assert.Equal(t, []byte{
		0, 0, 0, 0,
		byte(red >> 8), byte(red),
		0x80, 0x00,
		byte(blue >> 8), byte(blue),
		0,
	}, buf)
}

func TestPackedWritesFrame(t *testing.T) {
	var rec bytes.Buffer
	s := layout.Strip{Length: 2, Reverse: true}
	d, err := NewPacked(spitest.NewRecordRaw(&rec), s, 0)
	require.NoError(t, err)

	require.NoError(t, d.Write([]color.RGB16{red, blue}))
	assert.Equal(t, []byte{0, 0, 0, 0, byte(blue >> 8), byte(blue), byte(red >> 8), byte(red), 0}, rec.Bytes())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Write([]color.RGB16{red, blue}), ErrClosed)
	assert.NoError(t, d.Close())
}

func TestNRZ(t *testing.T) {
	var rec bytes.Buffer
	d, err := NewNRZ(spitest.NewRecordRaw(&rec), layout.Strip{Length: 3}, 0, "grb")
	require.NoError(t, err)
	assert.Equal(t, "nrzled{recordraw}", d.String())

	require.NoError(t, d.Write([]color.RGB16{red, blue, color.Empty}))
	assert.Equal(t, []byte{0, 0xff, 0, 0, 0, 0xff, 0, 0, 0}, d.rgb)
	assert.NotZero(t, rec.Len())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Write(nil), ErrClosed)
}

func TestNRZRate(t *testing.T) {
	var rec bytes.Buffer
	_, err := NewNRZ(spitest.NewRecordRaw(&rec), layout.Strip{Length: 3}, 800*physic.KiloHertz, "")
	assert.Error(t, err)

	d, err := NewNRZ(spitest.NewRecordRaw(&rec), layout.Strip{Length: 3}, NRZRate, "")
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}

func TestChannelOrder(t *testing.T) {
	p, err := channelOrder("")
	require.NoError(t, err)
	assert.Equal(t, [3]int{0, 1, 2}, p)

	p, err = channelOrder("BRG")
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 0, 1}, p)

	for _, bad := range []string{"RG", "RRG", "RGX", "RGBW"} {
		_, err := channelOrder(bad)
		assert.Error(t, err, bad)
	}
}

func TestSimKeepsPhysicalFrame(t *testing.T) {
	var out bytes.Buffer
	d := NewSim(layout.Strip{Length: 3, Reverse: true}).Trace(&out, TraceHex)
	require.NoError(t, d.Write([]color.RGB16{red, color.Empty, blue}))
	assert.Equal(t, []color.RGB16{blue, color.Empty, red}, d.Last())
	assert.Equal(t, uint64(1), d.Count())
	assert.Equal(t, "#0000ff #000000 #ff0000\n", out.String())

	// short frames leave the rest empty
	require.NoError(t, d.Write([]color.RGB16{red}))
	assert.Equal(t, []color.RGB16{color.Empty, color.Empty, red}, d.Last())

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Write(nil), ErrClosed)
}

func TestSimHTML(t *testing.T) {
	var out bytes.Buffer
	d := NewSim(layout.Strip{Length: 2}).Trace(&out, TraceHTML)
	require.NoError(t, d.Write([]color.RGB16{red, blue}))
	html := out.String()
	assert.True(t, strings.HasPrefix(html, "<div>\n"))
	assert.Contains(t, html, "<span style='background-color:#ff0000'>0</span>")
	assert.Contains(t, html, "<span style='background-color:#0000ff'>1</span>")
}

func TestFormatHex(t *testing.T) {
	assert.Equal(t, "#ff0000 #000000", FormatHex([]color.RGB16{red, color.Empty}))
	assert.Equal(t, "", FormatHex(nil))
}

func TestTerminalDrawsCells(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	d, err := NewTerminal(screen, layout.Strip{Length: 3})
	require.NoError(t, err)
	screen.SetSize(4, 3)

	require.NoError(t, d.Write([]color.RGB16{red, color.Empty, blue}))
	bgAt := func(x, y int) tcell.Color {
		_, _, style, _ := screen.GetContent(x, y)
		_, bg, _ := style.Decompose()
		return bg
	}
	assert.Equal(t, tcell.NewRGBColor(0xff, 0, 0), bgAt(0, 0))
	assert.Equal(t, tcell.NewRGBColor(0xff, 0, 0), bgAt(1, 0))
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0), bgAt(2, 0))
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0xff), bgAt(0, 1))

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Write(nil), ErrClosed)
}

func TestOpen(t *testing.T) {
	d, err := Open(Options{Name: "sim", Strip: layout.Strip{Length: 4}})
	require.NoError(t, err)
	assert.IsType(t, &Sim{}, d)

	_, err = Open(Options{Name: "laser", Strip: layout.Strip{Length: 4}})
	assert.Error(t, err)
	_, err = Open(Options{Name: "sim"})
	assert.Error(t, err)
}
