package node

import (
	"lanchat/swarm/protocol"
	"net/netip"

	log "github.com/sirupsen/logrus"
)

// handleMessage processes one read from an inbound message connection. A read is expected to hold
// exactly one envelope; a bad read is reported and the connection stays open.
func (n *Node) handleMessage(payload []byte, from netip.AddrPort) {
	sender := from.Addr().Unmap()

	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		n.notify(log.WarnLevel, "Error processing message from %s: %v", sender, err)
		return
	}

	n.stats.recordReceived(len(payload))

	n.observer.Display(DisplayMessage{
		Timestamp: msg.Timestamp,
		Sender:    msg.Nickname,
		Address:   sender,
		Text:      msg.Text,
	})
}
