package node

import (
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// DisplayMessage is a chat line, either received from a peer or sent by us (Sender "You").
type DisplayMessage struct {
	Timestamp string // HH:MM:SS
	Sender    string
	Address   netip.Addr
	Text      string
}

// Observer receives everything a user interface needs from a Node.
// Methods are called from the networking goroutines and must not block.
type Observer interface {
	Display(DisplayMessage)
	Log(string)
	PeerListChanged([]PeerRecord)
}

type nopObserver struct{}

func (nopObserver) Display(DisplayMessage)       {}
func (nopObserver) Log(string)                   {}
func (nopObserver) PeerListChanged([]PeerRecord) {}

type EventKind int

const (
	EventDisplay EventKind = iota
	EventLog
	EventPeerListChanged
)

func (k EventKind) String() string {
	switch k {
	case EventDisplay:
		return "display"
	case EventLog:
		return "log"
	case EventPeerListChanged:
		return "peers"
	default:
		return "unknown"
	}
}

// Event is one Observer call turned into a value. Only the field matching Kind is set.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Message DisplayMessage
	Text    string
	Peers   []PeerRecord
}

// EventQueue is an Observer that publishes events onto a buffered channel drained by a single consumer,
// so the networking goroutines never touch the consumer's state. Events are dropped when the buffer is full.
type EventQueue struct {
	ch chan Event
}

var _ Observer = (*EventQueue)(nil)

func NewEventQueue(size int) *EventQueue {
	return &EventQueue{ch: make(chan Event, size)}
}

// Events returns the channel to drain. It is never closed; consumers stop on their own signal.
func (q *EventQueue) Events() <-chan Event {
	return q.ch
}

func (q *EventQueue) push(e Event) {
	e.Time = time.Now()
	select {
	case q.ch <- e:
	default:
		log.Warnf("EventQueue: queue full, dropping %s event", e.Kind)
	}
}

func (q *EventQueue) Display(m DisplayMessage) {
	q.push(Event{Kind: EventDisplay, Message: m})
}

func (q *EventQueue) Log(text string) {
	q.push(Event{Kind: EventLog, Text: text})
}

func (q *EventQueue) PeerListChanged(peers []PeerRecord) {
	q.push(Event{Kind: EventPeerListChanged, Peers: peers})
}
