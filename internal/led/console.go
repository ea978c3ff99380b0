package led

import (
	"sync"

	"periph.io/x/devices/v3/screen1d"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// Console prints each frame as one line of ANSI colored cells, for nodes
// with no SPI port.
type Console struct {
	mu    sync.Mutex
	dev   *screen1d.Dev
	strip layout.Strip
	phys  []color.RGB16
	rgb   []byte
}

// NewConsole returns a console driver as wide as the strip.
func NewConsole(s layout.Strip) *Console {
	n := s.Count()
	return &Console{
		dev:   screen1d.New(&screen1d.Opts{X: n}),
		strip: s,
		phys:  make([]color.RGB16, n),
		rgb:   make([]byte, 3*n),
	}
}

func (c *Console) Write(frame []color.RGB16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return ErrClosed
	}
	unpackRGB(c.rgb, physical(c.strip, c.phys, frame))
	_, err := c.dev.Write(c.rgb)
	return err
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil
	}
	err := c.dev.Halt()
	c.dev = nil
	return err
}

// unpackRGB expands packed colors into consecutive 8-bit R, G, B triples.
func unpackRGB(dst []byte, frame []color.RGB16) {
	for i, c := range frame {
		dst[i*3], dst[i*3+1], dst[i*3+2] = c.RGB()
	}
}
