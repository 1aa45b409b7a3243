package peer

import "time"

type Metadata struct {
	Address   string    `cbor:"1,keyasint,omitempty"` // Peer IPv4 address, textual form
	Nickname  string    `cbor:"2,keyasint,omitempty"` // Last announced nickname
	TCPPort   int       `cbor:"3,keyasint,omitempty"` // Last announced messaging port
	FirstSeen time.Time `cbor:"4,keyasint,omitempty"` // First time we heard from this peer
	LastSeen  time.Time `cbor:"5,keyasint,omitempty"` // Last time we heard from this peer
}

// PeerIndex remembers every peer ever discovered, across restarts.
type PeerIndex interface {
	// Get retrieves the metadata for a peer, given its address.
	// It returns an error if the address is unknown or an issue occurs.
	Get(address string) (*Metadata, error)

	// Put stores or updates a peer's metadata in the index.
	// FirstSeen of an already known peer is preserved.
	Put(*Metadata) (*Metadata, error)

	// Enumerate returns the metadata of all peers currently in the index, ordered by address.
	Enumerate() ([]*Metadata, error)
}
