// Package packet defines the 8-byte command packet carried on the bus.
//
//	byte 0: cmd   bit7 = control flag, bit6 = message framing when bit7 is set
//	byte 1: uid   effect id, fraction for Sync/Tick, index for Param
//	byte 2-7: data
package packet

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Size is the length of a packet on the wire.
const Size = 8

// DataSize is the number of payload bytes.
const DataSize = 6

const (
	FlagCmd = 0x80
	FlagMsg = 0x40
)

// Control opcodes.
const (
	Sync   uint8 = 0x80
	Msg    uint8 = 0x81
	Stop   uint8 = 0x82
	Reset  uint8 = 0x83
	Reboot uint8 = 0x84
	Param  uint8 = 0x85
	Tick   uint8 = 0x88
)

// ErrShortPacket is returned by Parse when fewer than Size bytes are given.
var ErrShortPacket = errors.New("packet: short packet")

// Packet is one bus frame.
type Packet struct {
	Cmd  uint8
	UID  uint8
	Data [DataSize]uint8
}

// New builds a packet; data beyond DataSize is dropped.
func New(cmd, uid uint8, data ...uint8) Packet {
	p := Packet{Cmd: cmd, UID: uid}
	copy(p.Data[:], data)
	return p
}

// Parse reads a packet from the first Size bytes of b.
func Parse(b []byte) (Packet, error) {
	if len(b) < Size {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	p := Packet{Cmd: b[0], UID: b[1]}
	copy(p.Data[:], b[2:Size])
	return p, nil
}

// Bytes returns the wire form of p.
func (p Packet) Bytes() [Size]byte {
	var b [Size]byte
	b[0], b[1] = p.Cmd, p.UID
	copy(b[2:], p.Data[:])
	return b
}

// IsControl reports whether p is a control command rather than a creation.
func (p Packet) IsControl() bool { return p.Cmd&FlagCmd != 0 }

// IsMessage reports whether p is routed to an existing effect's message
// handler, either as Msg or through the bit6 framing.
func (p Packet) IsMessage() bool {
	return p.Cmd == Msg || (p.IsControl() && p.Cmd&FlagMsg != 0)
}

// Op names the command for logs and metrics.
func (p Packet) Op() string {
	if !p.IsControl() {
		return "create"
	}
	if p.Cmd&FlagMsg != 0 {
		return "msg"
	}
	switch p.Cmd {
	case Sync:
		return "sync"
	case Msg:
		return "msg"
	case Stop:
		return "stop"
	case Reset:
		return "reset"
	case Reboot:
		return "reboot"
	case Param:
		return "param"
	case Tick:
		return "tick"
	}
	return "unknown"
}

func (p Packet) String() string {
	b := p.Bytes()
	return fmt.Sprintf("%s{cmd=0x%02x uid=0x%02x data=%s}", p.Op(), p.Cmd, p.UID, hex.EncodeToString(b[2:]))
}
