package bcast

import (
	"context"
	"net"
)

// ListenUDP binds an IPv4 UDP socket suitable for sending and receiving broadcasts.
// SO_REUSEADDR is set where the platform supports it so several nodes on one host can share the port.
func ListenUDP(ctx context.Context, address string) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp4", address)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
