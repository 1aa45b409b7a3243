package node

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newRegistryWithClock(start time.Time) (*PeerRegistry, *fakeClock) {
	clock := &fakeClock{now: start}
	r := NewPeerRegistry()
	r.now = clock.Now
	return r, clock
}

var (
	alice = netip.MustParseAddr("10.0.0.5")
	bob   = netip.MustParseAddr("192.168.1.7")
	carol = netip.MustParseAddr("10.0.0.6")
)

func TestUpsertReportsNewOnlyOnce(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	r, clock := newRegistryWithClock(t0)

	assert.True(t, r.Upsert(alice, "Alice", 41235))
	for i := 1; i <= 3; i++ {
		clock.Set(t0.Add(time.Duration(i) * 5 * time.Second))
		assert.False(t, r.Upsert(alice, "Alice", 41235))
	}

	rec, ok := r.Get(alice)
	require.True(t, ok)
	assert.Equal(t, t0.Add(15*time.Second), rec.LastSeen)
	assert.Equal(t, 1, r.Len())
}

func TestUpsertRefreshesFieldsButNeverMovesLastSeenBack(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	r, clock := newRegistryWithClock(t0)

	r.Upsert(alice, "Alice", 41235)
	clock.Set(t0.Add(-time.Minute))
	r.Upsert(alice, "Alicia", 5000)

	rec, ok := r.Get(alice)
	require.True(t, ok)
	assert.Equal(t, "Alicia", rec.Nickname)
	assert.Equal(t, 5000, rec.TCPPort)
	assert.Equal(t, t0, rec.LastSeen)
}

func TestEvictBoundary(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	r, clock := newRegistryWithClock(t0)
	timeout := 60 * time.Second

	r.Upsert(alice, "Alice", 1) // lastSeen = t0
	clock.Set(t0.Add(1 * time.Second))
	r.Upsert(carol, "Carol", 1) // lastSeen = t0+1s
	clock.Set(t0.Add(30 * time.Second))
	r.Upsert(bob, "Bob", 1) // lastSeen = t0+30s

	// now-60s == t0+1s: Carol sits exactly on the boundary and survives, Alice is older and goes
	removed := r.Evict(t0.Add(61*time.Second), timeout)
	assert.Equal(t, []netip.Addr{alice}, removed)

	_, ok := r.Get(alice)
	assert.False(t, ok)
	_, ok = r.Get(carol)
	assert.True(t, ok)
	_, ok = r.Get(bob)
	assert.True(t, ok)

	removed = r.Evict(t0.Add(200*time.Second), timeout)
	assert.Equal(t, []netip.Addr{carol, bob}, removed)
	assert.Equal(t, 0, r.Len())
}

func TestSnapshotIsOrderedCopy(t *testing.T) {
	r := NewPeerRegistry()
	r.Upsert(bob, "Bob", 2)
	r.Upsert(carol, "Carol", 3)
	r.Upsert(alice, "Alice", 1)

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []netip.Addr{alice, carol, bob}, []netip.Addr{snap[0].Address, snap[1].Address, snap[2].Address})

	snap[0].Nickname = "mutated"
	rec, _ := r.Get(alice)
	assert.Equal(t, "Alice", rec.Nickname)
}

func TestGetUnknown(t *testing.T) {
	r := NewPeerRegistry()
	_, ok := r.Get(alice)
	assert.False(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewPeerRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := netip.AddrFrom4([4]byte{10, 0, 0, byte(i)})
			for j := 0; j < 200; j++ {
				r.Upsert(addr, "peer", 41235)
				r.Snapshot()
				r.Evict(time.Now(), time.Hour)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, r.Len())
}
