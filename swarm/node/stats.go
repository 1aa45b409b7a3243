package node

import "sync/atomic"

// StatsSnapshot is a read-only copy of the traffic counters.
type StatsSnapshot struct {
	BytesSent        uint64
	BytesReceived    uint64
	MessagesSent     uint64
	MessagesReceived uint64
}

// Stats counts message traffic for the lifetime of the process. There is no reset.
type Stats struct {
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
}

func (s *Stats) recordSent(n int) {
	s.bytesSent.Add(uint64(n))
	s.messagesSent.Add(1)
}

func (s *Stats) recordReceived(n int) {
	s.bytesReceived.Add(uint64(n))
	s.messagesReceived.Add(1)
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BytesSent:        s.bytesSent.Load(),
		BytesReceived:    s.bytesReceived.Load(),
		MessagesSent:     s.messagesSent.Load(),
		MessagesReceived: s.messagesReceived.Load(),
	}
}
