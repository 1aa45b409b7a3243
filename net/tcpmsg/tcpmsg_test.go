package tcpmsg

import (
	"context"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	payload string
	from    netip.AddrPort
}

func startServer(t *testing.T) (*Server, net.Listener, chan received, context.CancelFunc, chan error) {
	t.Helper()

	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	got := make(chan received, 8)
	srv := NewServer(l, 0, func(payload []byte, from netip.AddrPort) {
		got <- received{payload: string(payload), from: from}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	return srv, l, got, cancel, done
}

func serverAddr(srv *Server) netip.AddrPort {
	return srv.Addr().(*net.TCPAddr).AddrPort()
}

func TestSendDeliversPayload(t *testing.T) {
	srv, l, got, cancel, done := startServer(t)

	require.NoError(t, Send(context.Background(), serverAddr(srv), []byte("ping"), time.Second))

	select {
	case r := <-got:
		assert.Equal(t, "ping", r.payload)
		assert.Equal(t, netip.MustParseAddr("127.0.0.1"), r.from.Addr())
	case <-time.After(2 * time.Second):
		t.Fatal("payload not received")
	}

	cancel()
	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeClosesLiveConnectionsOnShutdown(t *testing.T) {
	srv, l, got, cancel, done := startServer(t)

	conn, err := net.Dial("tcp4", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("first"))
	require.NoError(t, err)
	select {
	case r := <-got:
		assert.Equal(t, "first", r.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("payload not received")
	}

	// The connection stays open: the handler keeps reading until shutdown
	cancel()
	require.NoError(t, l.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop with a live connection")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestSendToClosedPortFails(t *testing.T) {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr).AddrPort()
	require.NoError(t, l.Close())

	err = Send(context.Background(), addr, []byte("x"), time.Second)
	assert.Error(t, err)
}

func TestSendClosesConnectionAfterWrite(t *testing.T) {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		// ReadAll only returns nil once the peer has closed its side
		data, err := io.ReadAll(conn)
		if err == nil {
			got <- data
		}
	}()

	addr := l.Addr().(*net.TCPAddr).AddrPort()
	require.NoError(t, Send(context.Background(), addr, []byte("hello"), time.Second))

	select {
	case data := <-got:
		assert.Equal(t, "hello", string(data))
	case <-time.After(3 * time.Second):
		t.Fatal("connection was not closed by the sender")
	}
}
