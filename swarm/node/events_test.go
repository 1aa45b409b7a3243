package node

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueDeliversInOrder(t *testing.T) {
	q := NewEventQueue(4)

	q.Log("hello")
	q.Display(DisplayMessage{Timestamp: "10:00:00", Sender: "Alice", Address: alice, Text: "hi"})
	q.PeerListChanged([]PeerRecord{{Address: alice, Nickname: "Alice"}})

	e := <-q.Events()
	assert.Equal(t, EventLog, e.Kind)
	assert.Equal(t, "hello", e.Text)
	assert.False(t, e.Time.IsZero())

	e = <-q.Events()
	require.Equal(t, EventDisplay, e.Kind)
	assert.Equal(t, "hi", e.Message.Text)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), e.Message.Address)

	e = <-q.Events()
	require.Equal(t, EventPeerListChanged, e.Kind)
	assert.Len(t, e.Peers, 1)
}

func TestEventQueueDropsWhenFull(t *testing.T) {
	q := NewEventQueue(1)

	// Must not block
	q.Log("first")
	q.Log("second")

	e := <-q.Events()
	assert.Equal(t, "first", e.Text)
	select {
	case e := <-q.Events():
		t.Fatalf("unexpected event %v", e)
	default:
	}
}
