package leveldb

import (
	"errors"
	"fmt"
	"lanchat/datamodel/peer"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	log "github.com/sirupsen/logrus"
)

const (
	keyPrefixPeer = "PER" // Peer metadata indexed by address. Followed by the textual address
)

var ErrNotFound = errors.New("peer not found")

// Sub-second LastSeen precision is kept; the default CBOR time mode truncates to seconds
var peerEncMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

var _ peer.PeerIndex = (*PeerIndex)(nil)

type PeerIndex struct {
	LevelDB
}

func keyFromAddress(address string) []byte {
	return append([]byte(keyPrefixPeer), []byte(address)...)
}

func NewPeerIndex(path string) (*PeerIndex, error) {
	// Init the underlying LevelDB object
	ldb, err := initLevelDb(path)
	if err != nil {
		return nil, err
	}

	return &PeerIndex{
		LevelDB: LevelDB{
			path: path,
			db:   ldb,
		},
	}, nil
}

func (l *PeerIndex) get(address string) (*peer.Metadata, error) {
	raw, err := l.db.Get(keyFromAddress(address), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// Unmarshall CBOR
	md := &peer.Metadata{}
	if err := cbor.Unmarshal(raw, md); err != nil {
		return nil, err
	}

	// Compare the address just in case
	if md.Address != address {
		log.Errorf("Get: address mismatch: %s != %s", address, md.Address)
		return nil, ErrCorrupted
	}

	return md, nil
}

func (l *PeerIndex) Get(address string) (*peer.Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.get(address)
}

func (l *PeerIndex) Put(metadata *peer.Metadata) (*peer.Metadata, error) {
	if metadata.Address == "" {
		return nil, errors.New("peer address required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	md := *metadata

	// Keep the original discovery time of a known peer
	existing, err := l.get(md.Address)
	switch {
	case err == nil:
		if !existing.FirstSeen.IsZero() {
			md.FirstSeen = existing.FirstSeen
		}
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}
	if md.FirstSeen.IsZero() {
		md.FirstSeen = md.LastSeen
	}

	raw, err := peerEncMode.Marshal(&md)
	if err != nil {
		return nil, err
	}

	// Insert
	if err := l.db.Put(keyFromAddress(md.Address), raw, nil); err != nil {
		return nil, err
	}

	return &md, nil
}

func (l *PeerIndex) Enumerate() ([]*peer.Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var results []*peer.Metadata

	// Keys share a prefix, so iteration order is address order
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefixPeer)), nil)
	defer iter.Release()

	for iter.Next() {
		metadata := &peer.Metadata{}
		if err := cbor.Unmarshal(iter.Value(), metadata); err != nil {
			return nil, err
		}
		results = append(results, metadata)
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return results, nil
}
