// Package led holds the strip drivers. A driver receives one composed frame
// of packed colors per render tick, in logical order, and owns everything
// about getting it onto the wire.
package led

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes one frame, one packed color per logical position.
	Write(frame []color.RGB16) error
	// Close releases resources.
	Close() error
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("led: driver closed")

// Driver names accepted by Open.
const (
	NameSim      = "sim"
	NameSPI      = "spi"
	NameNRZ      = "nrz"
	NameConsole  = "console"
	NameTerminal = "terminal"
)

// Options selects and configures a driver.
type Options struct {
	Name       string
	Strip      layout.Strip
	Dev        string // spireg port name, "" for the first one
	SpeedHz    int
	ColorOrder string
	// Trace makes the sim driver print every frame to Out.
	Trace TraceMode
	Out   io.Writer
}

// Open returns the driver named by opts.Name. Hardware drivers initialise
// periph's host drivers first.
func Open(opts Options) (Driver, error) {
	if opts.Strip.Count() == 0 {
		return nil, fmt.Errorf("led: strip length %d", opts.Strip.Length)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	switch strings.ToLower(opts.Name) {
	case "", NameSim:
		return NewSim(opts.Strip).Trace(opts.Out, opts.Trace), nil
	case NameConsole:
		return NewConsole(opts.Strip), nil
	case NameTerminal:
		return OpenTerminal(opts.Strip)
	case NameSPI, NameNRZ:
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init: %w", err)
		}
		port, err := spireg.Open(opts.Dev)
		if err != nil {
			return nil, fmt.Errorf("open spi port %q: %w", opts.Dev, err)
		}
		var d Driver
		if strings.EqualFold(opts.Name, NameSPI) {
			d, err = NewPacked(port, opts.Strip, physic.Frequency(opts.SpeedHz)*physic.Hertz)
		} else {
			d, err = NewNRZ(port, opts.Strip, physic.Frequency(opts.SpeedHz)*physic.Hertz, opts.ColorOrder)
		}
		if err != nil {
			port.Close()
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("led: unknown driver %q", opts.Name)
}

// physical reorders a logical frame into wiring order using buf as scratch.
func physical(s layout.Strip, buf, frame []color.RGB16) []color.RGB16 {
	if s.Identity() && len(frame) >= s.Count() {
		return frame[:s.Count()]
	}
	for i := range buf {
		buf[i] = color.Empty
	}
	layout.Apply(s, buf, frame)
	return buf
}
