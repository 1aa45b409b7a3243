package node

import (
	"context"
	"lanchat/datamodel/peer"
	"lanchat/swarm/protocol"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// This is run via the RunWithTicker() helper. Broadcast failures never stop the loop.
func (n *Node) publishAnnouncement(ctx context.Context) error {
	msg := &protocol.Discovery{
		Nickname: n.Nickname,
		TCPPort:  n.MessagePort(),
	}

	payload, err := protocol.Encode(msg)
	if err != nil {
		n.notify(log.ErrorLevel, "Discovery broadcast error: %v", err)
		return nil
	}

	if err := n.pubsub.Publish(payload); err != nil {
		n.notify(log.ErrorLevel, "Discovery broadcast error: %v", err)
	}

	return nil
}

// handleDatagram processes one datagram received on the discovery socket.
func (n *Node) handleDatagram(payload []byte, from netip.AddrPort) {
	sender := from.Addr().Unmap()

	// Check if we received our own announcement
	if sender == n.LocalAddr {
		log.Tracef("Received our own announcement - ignoring")
		return
	}

	if !sender.Is4() {
		log.Debugf("Ignoring discovery packet from non-IPv4 sender %s", sender)
		return
	}

	msg, err := protocol.DecodeDiscovery(payload)
	if err != nil {
		n.notify(log.WarnLevel, "Error processing discovery packet from %s: %v", sender, err)
		return
	}

	log.Debugf("PeerAnnouncement: peer: %s, addr: %s, port: %d", msg.Nickname, sender, msg.TCPPort)

	isNew := n.peers.Upsert(sender, msg.Nickname, msg.TCPPort)
	n.rememberPeer(sender)

	if isNew {
		n.notify(log.InfoLevel, "Discovered new peer: %s (%s)", msg.Nickname, sender)
		n.observer.PeerListChanged(n.peers.Snapshot())
	}
}

// rememberPeer copies the live record into the known-peer cache, if one is configured.
func (n *Node) rememberPeer(addr netip.Addr) {
	if n.peerIndex == nil {
		return
	}

	rec, ok := n.peers.Get(addr)
	if !ok {
		return
	}

	_, err := n.peerIndex.Put(&peer.Metadata{
		Address:  rec.Address.String(),
		Nickname: rec.Nickname,
		TCPPort:  rec.TCPPort,
		LastSeen: rec.LastSeen.Round(time.Millisecond),
	})
	if err != nil {
		log.Errorf("Failed to store peer metadata for %s: %v", addr, err)
	}
}
