package led

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/bespeckle/internal/color"
	"github.com/coreman2200/bespeckle/internal/layout"
)

// DefaultPackedSpeed is the clock used when none is configured.
const DefaultPackedSpeed = 2 * physic.MegaHertz

// Packed drives clocked strips that take the 16-bit packed format as is
// (LPD6803 and clones): a 32-bit zero start frame, one big-endian word per
// LED with the marker as start bit, then one clock per LED to latch.
type Packed struct {
	mu    sync.Mutex
	port  spi.PortCloser
	conn  spi.Conn
	strip layout.Strip
	phys  []color.RGB16
	buf   []byte
}

// NewPacked connects to port in SPI mode 0 at speed.
func NewPacked(port spi.PortCloser, s layout.Strip, speed physic.Frequency) (*Packed, error) {
	if speed <= 0 {
		speed = DefaultPackedSpeed
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect: %w", err)
	}
	n := s.Count()
	return &Packed{
		port:  port,
		conn:  conn,
		strip: s,
		phys:  make([]color.RGB16, n),
		buf:   make([]byte, PackedFrameSize(n)),
	}, nil
}

// PackedFrameSize is the number of bytes sent per frame for n LEDs.
func PackedFrameSize(n int) int {
	return 4 + 2*n + (n+7)/8
}

// EncodePacked writes the wire form of frame into dst, which must hold
// PackedFrameSize(len(frame)) bytes.
func EncodePacked(dst []byte, frame []color.RGB16) {
	for i := 0; i < 4; i++ {
		dst[i] = 0
	}
	off := 4
	for _, c := range frame {
		c |= color.Marker
		dst[off] = byte(c >> 8)
		dst[off+1] = byte(c)
		off += 2
	}
	for ; off < len(dst); off++ {
		dst[off] = 0
	}
}

func (p *Packed) Write(frame []color.RGB16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrClosed
	}
	EncodePacked(p.buf, physical(p.strip, p.phys, frame))
	if err := p.conn.Tx(p.buf, nil); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (p *Packed) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	p.conn = nil
	return p.port.Close()
}

func (p *Packed) String() string {
	return fmt.Sprintf("packed{%s}", p.port)
}
