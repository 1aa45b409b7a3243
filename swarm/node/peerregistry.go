package node

import (
	"net/netip"
	"slices"
	"sync"
	"time"
)

// PeerRecord is a copy of what the registry knows about one peer.
type PeerRecord struct {
	Address  netip.Addr
	Nickname string
	TCPPort  int
	LastSeen time.Time
}

// PeerRegistry is the live table of peers keyed by address. Callers only ever see copies of its records.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers map[netip.Addr]*PeerRecord

	now func() time.Time
}

func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[netip.Addr]*PeerRecord),
		now:   time.Now,
	}
}

// Upsert inserts a peer or refreshes its record and LastSeen. Returns true only when the address was not known.
func (r *PeerRegistry) Upsert(addr netip.Addr, nickname string, tcpPort int) bool {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[addr]
	if !ok {
		r.peers[addr] = &PeerRecord{
			Address:  addr,
			Nickname: nickname,
			TCPPort:  tcpPort,
			LastSeen: now,
		}
		return true
	}

	p.Nickname = nickname
	p.TCPPort = tcpPort
	// LastSeen never goes backwards, even if the wall clock does
	if now.After(p.LastSeen) {
		p.LastSeen = now
	}
	return false
}

// Evict removes every peer not heard from for longer than timeout and returns their addresses in order.
func (r *PeerRegistry) Evict(now time.Time, timeout time.Duration) []netip.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []netip.Addr
	for addr, p := range r.peers {
		if now.Sub(p.LastSeen) > timeout {
			delete(r.peers, addr)
			removed = append(removed, addr)
		}
	}

	slices.SortFunc(removed, netip.Addr.Compare)
	return removed
}

func (r *PeerRegistry) Get(addr netip.Addr) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[addr]
	if !ok {
		return PeerRecord{}, false
	}
	return *p, true
}

// Snapshot returns a point-in-time copy of all records ordered by address.
func (r *PeerRegistry) Snapshot() []PeerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make([]PeerRecord, 0, len(r.peers))
	for _, p := range r.peers {
		snap = append(snap, *p)
	}

	slices.SortFunc(snap, func(a, b PeerRecord) int {
		return a.Address.Compare(b.Address)
	})
	return snap
}

func (r *PeerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
