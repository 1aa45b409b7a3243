package tcpmsg

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Send opens a connection to addr, writes payload in full and closes the connection.
func Send(ctx context.Context, addr netip.AddrPort, payload []byte, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", addr.String())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}

	// net.Conn.Write only returns short with an error
	if _, err := conn.Write(payload); err != nil {
		conn.Close()
		return fmt.Errorf("failed to write to %s: %w", addr, err)
	}

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", addr, err)
	}
	return nil
}
