package node

import (
	"context"
	"errors"
	"fmt"
	"lanchat/net/tcpmsg"
	"lanchat/swarm/protocol"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"
)

// SelfSender is the sender label shown for our own outgoing messages.
const SelfSender = "You"

var ErrUnknownPeer = errors.New("unknown peer")

// Send delivers text to one known peer over a fresh TCP connection. Counters are only updated
// once the whole envelope has been written; an unknown address fails without dialing.
func (n *Node) Send(ctx context.Context, addr netip.Addr, text string) error {
	addr = addr.Unmap()

	rec, ok := n.peers.Get(addr)
	if !ok {
		n.notify(log.WarnLevel, "Unknown peer: %s", addr)
		return fmt.Errorf("%s: %w", addr, ErrUnknownPeer)
	}

	msg := protocol.NewMessage(n.Nickname, text, time.Now())
	payload, err := protocol.Encode(msg)
	if err != nil {
		n.notify(log.ErrorLevel, "Error sending message to %s: %v", addr, err)
		return err
	}

	dst := netip.AddrPortFrom(addr, uint16(rec.TCPPort))
	if err := tcpmsg.Send(ctx, dst, payload, n.dialTimeout); err != nil {
		n.notify(log.ErrorLevel, "Error sending message to %s: %v", addr, err)
		return err
	}

	n.stats.recordSent(len(payload))

	n.observer.Display(DisplayMessage{
		Timestamp: msg.Timestamp,
		Sender:    SelfSender,
		Address:   addr,
		Text:      text,
	})

	return nil
}

// SendToMany sends text to each address in turn and returns how many sends succeeded.
func (n *Node) SendToMany(ctx context.Context, addrs []netip.Addr, text string) int {
	if len(addrs) == 0 {
		n.notify(log.InfoLevel, "No peers selected. Please select one or more peers.")
		return 0
	}

	successCount := 0
	for _, addr := range addrs {
		if err := n.Send(ctx, addr, text); err == nil {
			successCount++
		}
	}

	if successCount > 0 {
		n.notify(log.InfoLevel, "Message sent to %d peer(s)", successCount)
	} else {
		n.notify(log.WarnLevel, "Failed to send message to any selected peers")
	}

	return successCount
}
