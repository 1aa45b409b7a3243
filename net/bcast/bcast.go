// Package bcast implements a UDP broadcast PubSub.
// Publish: a pre-encoded payload is written to the broadcast address.
// Listen: datagrams received on the bound socket are handed to a callback together with the sender address.
package bcast

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// MaxDatagramSize is the receive buffer size. Larger datagrams are truncated.
const MaxDatagramSize = 1024

// Handler processes one received datagram. The payload is only valid for the duration of the call.
type Handler func(payload []byte, from netip.AddrPort)

type PubSub struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

// New wraps an already bound UDP socket. The PubSub never closes conn; its owner does.
func New(conn *net.UDPConn, dst *net.UDPAddr) *PubSub {
	return &PubSub{
		conn: conn,
		dst:  dst,
	}
}

// LocalAddr returns the address the underlying socket is bound to.
func (ps *PubSub) LocalAddr() net.Addr {
	return ps.conn.LocalAddr()
}

func (ps *PubSub) Publish(payload []byte) error {
	_, err := ps.conn.WriteToUDP(payload, ps.dst)
	if err != nil {
		return err
	}

	log.Tracef("bcast: published %d bytes to %s", len(payload), ps.dst)

	return nil
}

// nextDelay doubles the read retry delay, starting at 5ms and capped at one second.
func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if max := 1 * time.Second; d > max {
		d = max
	}
	return d
}

// Listen blocks reading datagrams until the socket is closed.
// A read error observed after ctx has been cancelled is a clean shutdown and returns nil.
func (ps *PubSub) Listen(ctx context.Context, handler Handler) error {
	buf := make([]byte, MaxDatagramSize)
	var tempDelay time.Duration // how long to sleep on read failure
	for {
		n, from, err := ps.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				log.Debugf("bcast: listener on %s stopped: %v", ps.conn.LocalAddr(), err)
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				log.Errorf("bcast: socket %s closed unexpectedly", ps.conn.LocalAddr())
				return err
			}
			tempDelay = nextDelay(tempDelay)
			log.Errorf("bcast: failed to read datagram: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}

		tempDelay = 0

		if n == 0 {
			continue
		}

		handler(buf[:n], netip.AddrPortFrom(from.Addr().Unmap(), from.Port()))
	}
}
