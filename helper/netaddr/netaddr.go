// Package netaddr picks the local IPv4 address a node binds and advertises.
package netaddr

import (
	"net"
	"net/netip"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Interface is a snapshot of one OS network interface.
type Interface struct {
	Name  string
	Addrs []netip.Addr
}

var (
	wirelessPatterns = []string{"wi-fi", "wireless", "wlan"}

	privateRanges = []netip.Prefix{
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("10.0.0.0/8"),
	}

	Loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})
)

func isWireless(name string) bool {
	name = strings.ToLower(name)
	for _, p := range wirelessPatterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// IsPrivate reports whether addr is an IPv4 address in one of the LAN ranges we advertise on.
func IsPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.Is4() {
		return false
	}
	for _, p := range privateRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func firstPrivate(iface Interface) (netip.Addr, bool) {
	for _, a := range iface.Addrs {
		if IsPrivate(a) {
			return a.Unmap(), true
		}
	}
	return netip.Addr{}, false
}

// Resolve chooses an address from the given interface snapshot. Wireless interfaces win,
// then any interface with a private address, then the loopback address.
func Resolve(ifaces []Interface) netip.Addr {
	for _, iface := range ifaces {
		if !isWireless(iface.Name) {
			continue
		}
		if a, ok := firstPrivate(iface); ok {
			return a
		}
	}

	for _, iface := range ifaces {
		if a, ok := firstPrivate(iface); ok {
			return a
		}
	}

	return Loopback
}

// Interfaces returns the OS interface snapshot. Interfaces whose addresses can't be read are skipped.
func Interfaces() []Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Warnf("netaddr: failed to list network interfaces: %v", err)
		return nil
	}

	var result []Interface
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			log.Debugf("netaddr: could not get addresses for interface %s: %v", iface.Name, err)
			continue
		}

		snap := Interface{Name: iface.Name}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if a, ok := netip.AddrFromSlice(ip); ok {
				snap.Addrs = append(snap.Addrs, a.Unmap())
			}
		}
		result = append(result, snap)
	}
	return result
}

// ResolveLocal runs Resolve over the current OS interfaces.
func ResolveLocal() netip.Addr {
	addr := Resolve(Interfaces())
	log.Debugf("netaddr: resolved local address %s", addr)
	return addr
}
