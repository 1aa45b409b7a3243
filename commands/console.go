package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"lanchat/swarm/node"
	"lanchat/swarm/protocol"
	"net/netip"
	"strings"
	"time"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdQuit
	cmdHelp
	cmdPeers
	cmdStats
	cmdSend
)

var errEmptyMessage = errors.New("empty message")

// command is one parsed line of console input. A cmdSend with no addresses goes to every known peer.
type command struct {
	kind  commandKind
	addrs []netip.Addr
	text  string
}

// parseLine turns a console line into a command.
//
//	/quit, /peers, /stats, /help
//	@10.0.0.5,10.0.0.6 hello   send to the listed peers
//	hello                      send to every known peer
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}

	switch line {
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/peers":
		return command{kind: cmdPeers}, nil
	case "/stats":
		return command{kind: cmdStats}, nil
	}

	if strings.HasPrefix(line, "/") {
		return command{}, fmt.Errorf("unknown command %q, try /help", line)
	}

	if !strings.HasPrefix(line, "@") {
		return command{kind: cmdSend, text: line}, nil
	}

	target, text, _ := strings.Cut(line[1:], " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return command{}, errEmptyMessage
	}

	var addrs []netip.Addr
	for _, s := range strings.Split(target, ",") {
		if s == "" {
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return command{}, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		addrs = append(addrs, addr.Unmap())
	}
	if len(addrs) == 0 {
		return command{}, fmt.Errorf("no peer address given before the message")
	}

	return command{kind: cmdSend, addrs: addrs, text: text}, nil
}

// Console is the terminal front-end for a running node. All of its output goes through one goroutine:
// the one calling printEvent and handleLine.
type Console struct {
	out   io.Writer
	node  *node.Node
	start time.Time
}

func NewConsole(out io.Writer, n *node.Node) *Console {
	return &Console{
		out:   out,
		node:  n,
		start: time.Now(),
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) banner(udpPort int) {
	c.printf("P2P Chat - %s\n", c.node.Nickname)
	c.printf("Local IP: %s | UDP: %d | TCP: %d\n", c.node.LocalAddr, udpPort, c.node.MessagePort())
	c.printf("Discovering peers... (type /help for commands)\n")
}

func (c *Console) help() {
	c.printf("Commands:\n")
	c.printf("  /peers              list discovered peers\n")
	c.printf("  /stats              show session statistics\n")
	c.printf("  /quit               leave the chat\n")
	c.printf("  @ip[,ip...] text    send to selected peers\n")
	c.printf("  text                send to every known peer\n")
}

// formatEvent renders a queued node event as one console line.
func formatEvent(e node.Event) string {
	switch e.Kind {
	case node.EventDisplay:
		m := e.Message
		return fmt.Sprintf("[%s] %s (%s): %s", m.Timestamp, m.Sender, m.Address, m.Text)
	case node.EventLog:
		return fmt.Sprintf("[%s] SYSTEM: %s", e.Time.Format(protocol.TimestampLayout), e.Text)
	case node.EventPeerListChanged:
		return fmt.Sprintf("[%s] SYSTEM: %d peer(s) online", e.Time.Format(protocol.TimestampLayout), len(e.Peers))
	default:
		return ""
	}
}

func (c *Console) printEvent(e node.Event) {
	if line := formatEvent(e); line != "" {
		c.printf("%s\n", line)
	}
}

func (c *Console) printPeers() {
	peers := c.node.Peers().Snapshot()
	if len(peers) == 0 {
		c.printf("No peers discovered yet\n")
		return
	}

	c.printf("Peers (%d):\n", len(peers))
	for _, p := range peers {
		c.printf("  %s (%s) tcp:%d, last seen %v ago\n",
			p.Nickname, p.Address, p.TCPPort, time.Since(p.LastSeen).Round(time.Second))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (c *Console) printStats() {
	st := c.node.Stats()

	status := "Offline"
	if c.node.Running() {
		status = "Online"
	}

	c.printf("Status: %s\n", status)
	c.printf("Messages sent: %d, received: %d\n", st.MessagesSent, st.MessagesReceived)
	c.printf("Bytes sent: %d, received: %d\n", st.BytesSent, st.BytesReceived)
	c.printf("Peers: %d\n", c.node.Peers().Len())
	c.printf("Session: %s\n", formatDuration(time.Since(c.start)))
}

// handleLine runs one line of input. It returns false once the user asked to quit.
func (c *Console) handleLine(ctx context.Context, line string) bool {
	cmd, err := parseLine(line)
	if err != nil {
		c.printf("Error: %v\n", err)
		return true
	}

	switch cmd.kind {
	case cmdQuit:
		return false
	case cmdHelp:
		c.help()
	case cmdPeers:
		c.printPeers()
	case cmdStats:
		c.printStats()
	case cmdSend:
		addrs := cmd.addrs
		if addrs == nil {
			for _, p := range c.node.Peers().Snapshot() {
				addrs = append(addrs, p.Address)
			}
		}
		c.node.SendToMany(ctx, addrs, cmd.text)
	}

	return true
}

// tick is the console's once-a-second housekeeping.
func (c *Console) tick(ctx context.Context) error {
	c.node.EvictStale(time.Now())
	return nil
}
