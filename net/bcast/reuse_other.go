//go:build !unix

package bcast

import "syscall"

// Go already enables SO_BROADCAST on datagram sockets; address reuse is left at the OS default.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
