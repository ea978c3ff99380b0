// Package transport receives bus packets from the network.
package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/bespeckle/internal/packet"
)

// Handler consumes one parsed packet.
type Handler func(packet.Packet)

// maxDatagram bounds a single read; larger datagrams are truncated and dropped.
const maxDatagram = 512

// UDP listens for datagrams carrying one or more back-to-back 8-byte packets.
type UDP struct {
	conn    net.PacketConn
	handler Handler

	received atomic.Uint64
	rejected atomic.Uint64
}

// ListenUDP binds addr (e.g. ":7777").
func ListenUDP(addr string, h Handler) (*UDP, error) {
	if h == nil {
		return nil, errors.New("transport: nil handler")
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDP{conn: conn, handler: h}, nil
}

// Addr returns the bound address.
func (u *UDP) Addr() net.Addr { return u.conn.LocalAddr() }

// Received counts packets handed to the handler.
func (u *UDP) Received() uint64 { return u.received.Load() }

// Rejected counts datagrams whose length is not a multiple of packet.Size.
func (u *UDP) Rejected() uint64 { return u.rejected.Load() }

// Serve reads until ctx is done or the socket is closed.
func (u *UDP) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { u.conn.Close() })
	defer stop()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := u.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if n == 0 || n%packet.Size != 0 || n == maxDatagram {
			u.rejected.Add(1)
			log.Debug().Int("bytes", n).Stringer("from", from).Msg("malformed datagram")
			continue
		}
		for off := 0; off < n; off += packet.Size {
			p, _ := packet.Parse(buf[off : off+packet.Size])
			u.received.Add(1)
			u.handler(p)
		}
	}
}

// Close releases the socket.
func (u *UDP) Close() error { return u.conn.Close() }

// Send writes packets to addr as a single datagram, for masters and tests.
func Send(conn net.Conn, ps ...packet.Packet) error {
	buf := make([]byte, 0, len(ps)*packet.Size)
	for _, p := range ps {
		b := p.Bytes()
		buf = append(buf, b[:]...)
	}
	_, err := conn.Write(buf)
	return err
}
