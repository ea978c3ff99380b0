package led

import (
	"fmt"
	"strings"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/nrzled"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// NRZRate is the SPI clock nrzled encodes WS2812 bits at. It is the only
// rate the encoder accepts.
const NRZRate = 2500 * physic.KiloHertz

// NRZ drives WS281x strips through periph's nrzled SPI encoder. Frames are
// unpacked to 8-bit RGB; order permutes the channels for strips wired in
// something other than the WS2812's native order.
type NRZ struct {
	mu    sync.Mutex
	port  spi.PortCloser
	dev   *nrzled.Dev
	strip layout.Strip
	order [3]int
	phys  []color.RGB16
	rgb   []byte
}

// NewNRZ wraps port in an nrzled device. order is a permutation of "RGB";
// empty means as is.
func NewNRZ(port spi.PortCloser, s layout.Strip, rate physic.Frequency, order string) (*NRZ, error) {
	if rate <= 0 {
		rate = NRZRate
	}
	if rate != NRZRate {
		return nil, fmt.Errorf("nrz: spi rate must be %s, got %s", NRZRate, rate)
	}
	perm, err := channelOrder(order)
	if err != nil {
		return nil, err
	}
	n := s.Count()
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{NumPixels: n, Channels: 3, Freq: rate})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{
		port:  port,
		dev:   dev,
		strip: s,
		order: perm,
		phys:  make([]color.RGB16, n),
		rgb:   make([]byte, 3*n),
	}, nil
}

// channelOrder maps output slot i to the input channel it takes.
func channelOrder(order string) ([3]int, error) {
	if order == "" {
		return [3]int{0, 1, 2}, nil
	}
	var perm [3]int
	var seen [3]bool
	if len(order) != 3 {
		return perm, fmt.Errorf("color order %q: want a permutation of RGB", order)
	}
	for i, ch := range strings.ToUpper(order) {
		j := strings.IndexRune("RGB", ch)
		if j < 0 || seen[j] {
			return perm, fmt.Errorf("color order %q: want a permutation of RGB", order)
		}
		seen[j] = true
		perm[i] = j
	}
	return perm, nil
}

func (d *NRZ) Write(frame []color.RGB16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return ErrClosed
	}
	for i, c := range physical(d.strip, d.phys, frame) {
		r, g, b := c.RGB()
		in := [3]byte{r, g, b}
		d.rgb[i*3+0] = in[d.order[0]]
		d.rgb[i*3+1] = in[d.order[1]]
		d.rgb[i*3+2] = in[d.order[2]]
	}
	if _, err := d.dev.Write(d.rgb); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

func (d *NRZ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Halt()
	d.dev = nil
	if cerr := d.port.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *NRZ) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return "nrzled{closed}"
	}
	return d.dev.String()
}
