package led

import (
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// TraceMode selects what a Sim prints per frame.
type TraceMode int

const (
	TraceNone TraceMode = iota
	TraceHex
	TraceHTML
)

// Sim is a headless driver. It keeps the last frame in physical order,
// counts frames and can trace each one to a writer.
type Sim struct {
	mu     sync.Mutex
	strip  layout.Strip
	last   []color.RGB16
	count  uint64
	out    io.Writer
	mode   TraceMode
	closed bool
}

// NewSim returns a Sim for s that traces nothing.
func NewSim(s layout.Strip) *Sim {
	last := make([]color.RGB16, s.Count())
	for i := range last {
		last[i] = color.Empty
	}
	return &Sim{strip: s, last: last}
}

// Trace makes every Write print the frame to w.
func (d *Sim) Trace(w io.Writer, mode TraceMode) *Sim {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out, d.mode = w, mode
	return d
}

func (d *Sim) Write(frame []color.RGB16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.count++
	for i := range d.last {
		d.last[i] = color.Empty
	}
	layout.Apply(d.strip, d.last, frame)
	if d.count%600 == 1 && len(d.last) > 0 {
		log.Debug().Uint64("frame", d.count).Str("first", Hex(d.last[0])).Msg("sim frame")
	}
	switch d.mode {
	case TraceHex:
		if _, err := io.WriteString(d.out, FormatHex(d.last)+"\n"); err != nil {
			return err
		}
	case TraceHTML:
		return WriteHTML(d.out, d.last)
	}
	return nil
}

// Last returns a copy of the last frame written, in physical order.
func (d *Sim) Last() []color.RGB16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]color.RGB16(nil), d.last...)
}

// Count returns the number of frames written.
func (d *Sim) Count() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *Sim) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
