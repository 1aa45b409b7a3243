// Package tcpmsg carries unframed payloads over TCP: the client writes one payload per connection,
// the server hands every read on a connection to a callback.
//
// There is no framing. A single read is assumed to hold exactly one payload; payloads that are
// coalesced or split by the transport are passed through as-is.
package tcpmsg

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultReadBufferSize = 1024

// Handler processes one read from a connection. The payload is only valid for the duration of the call.
type Handler func(payload []byte, from netip.AddrPort)

type Server struct {
	listener net.Listener
	bufSize  int
	handler  Handler

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer wraps a bound listener. The Server never closes the listener; its owner does.
func NewServer(listener net.Listener, bufSize int, handler Handler) *Server {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &Server{
		listener: listener,
		bufSize:  bufSize,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}
}

func (srv *Server) Addr() net.Addr {
	return srv.listener.Addr()
}

// Serve accepts connections until the listener is closed. On return every live connection is closed
// and its handler has finished. An accept error observed after ctx is cancelled is a clean shutdown.
func (srv *Server) Serve(ctx context.Context) error {
	defer func() {
		srv.closeConns()
		srv.wg.Wait()
	}()

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		rw, err := srv.listener.Accept()
		if err != nil {
			// Accept() failing after cancellation means the owner closed the listener.
			if ctx.Err() != nil {
				log.Debugf("tcpmsg.Server: listener %s stopped: %v", srv.listener.Addr(), err)
				return nil
			}

			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				log.Warnf("tcpmsg.Server: Accept error on %s: %v; retrying in %v", srv.listener.Addr(), err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}

			log.Errorf("tcpmsg.Server: critical accept error on %s: %v. Server stopping.", srv.listener.Addr(), err)
			return err
		}

		tempDelay = 0
		log.Debugf("tcpmsg.Server: accepted connection from %s on %s", rw.RemoteAddr(), srv.listener.Addr())

		if !srv.track(ctx, rw) {
			rw.Close()
			continue
		}
		go srv.serveConn(rw)
	}
}

func (srv *Server) track(ctx context.Context, conn net.Conn) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	srv.conns[conn] = struct{}{}
	srv.wg.Add(1)
	return true
}

func (srv *Server) untrack(conn net.Conn) {
	srv.mu.Lock()
	delete(srv.conns, conn)
	srv.mu.Unlock()
	srv.wg.Done()
}

func (srv *Server) closeConns() {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	for conn := range srv.conns {
		conn.Close()
	}
}

func (srv *Server) serveConn(conn net.Conn) {
	defer srv.untrack(conn)
	defer conn.Close()

	from := remoteAddrPort(conn)
	buf := make([]byte, srv.bufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			srv.handler(buf[:n], from)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Debugf("tcpmsg.Server: connection %s closed: %v", conn.RemoteAddr(), err)
			} else {
				log.Errorf("tcpmsg.Server: read error on connection %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
	}
}

func remoteAddrPort(conn net.Conn) netip.AddrPort {
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ap := tcpAddr.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	ap, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		log.Warnf("tcpmsg.Server: failed to parse remote address '%s': %v", conn.RemoteAddr(), err)
	}
	return ap
}
