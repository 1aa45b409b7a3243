package node

import (
	"context"
	"errors"
	"fmt"
	"lanchat/config"
	"lanchat/datamodel/peer"
	"lanchat/helper/netaddr"
	"lanchat/helper/timer"
	"lanchat/net/bcast"
	"lanchat/net/tcpmsg"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStarted  = errors.New("node already started")
	ErrStopped         = errors.New("node stopped")
	ErrShutdownTimeout = errors.New("node loops did not finish within the shutdown grace period")
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Node struct {
	// Identity
	Nickname  string
	LocalAddr netip.Addr

	// Settings
	listenAddress     string
	discoveryPort     int
	messagePort       int
	broadcastAddr     netip.Addr
	broadcastInterval time.Duration
	peerTimeout       time.Duration
	dialTimeout       time.Duration
	shutdownGrace     time.Duration
	readBufferSize    int

	// State shared between the loops
	peers     *PeerRegistry
	stats     Stats
	peerIndex peer.PeerIndex // optional
	observer  Observer

	// Lifecycle. Sockets are opened and closed only by Start and Stop.
	mu          sync.Mutex
	state       State
	running     atomic.Bool
	boundPort   atomic.Int32
	udpConn     *net.UDPConn
	tcpListener net.Listener
	pubsub      *bcast.PubSub
	msgServer   *tcpmsg.Server
	cancel      context.CancelFunc
	done        chan error
}

// New creates an idle node. peerIndex and observer may be nil.
func New(cfg *config.Config, peerIndex peer.PeerIndex, observer Observer) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if observer == nil {
		observer = nopObserver{}
	}

	node := &Node{
		Nickname:          cfg.Node.Nickname,
		listenAddress:     cfg.Network.ListenAddress,
		discoveryPort:     cfg.Network.DiscoveryPort,
		messagePort:       cfg.Network.MessagePort,
		broadcastInterval: cfg.Network.BroadcastInterval.Duration,
		peerTimeout:       cfg.Network.PeerTimeout.Duration,
		dialTimeout:       cfg.Network.DialTimeout.Duration,
		shutdownGrace:     cfg.Network.ShutdownGrace.Duration,
		readBufferSize:    cfg.Network.ReadBuffer,
		peers:             NewPeerRegistry(),
		peerIndex:         peerIndex,
		observer:          observer,
	}

	if cfg.Network.LocalAddress != "" {
		addr, err := netip.ParseAddr(cfg.Network.LocalAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid local address: %w", err)
		}
		if !addr.Unmap().Is4() {
			return nil, fmt.Errorf("local address %s is not IPv4", addr)
		}
		node.LocalAddr = addr.Unmap()
	} else {
		node.LocalAddr = netaddr.ResolveLocal()
	}

	baddr, err := netip.ParseAddr(cfg.Network.BroadcastAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid broadcast address: %w", err)
	}
	node.broadcastAddr = baddr.Unmap()

	log.Infof("I am %s, advertising %s", node.Nickname, node.LocalAddr)

	return node, nil
}

// notify logs msg and hands it to the observer.
func (n *Node) notify(level log.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.StandardLogger().Log(level, msg)
	n.observer.Log(msg)
}

// Start binds the discovery and messaging sockets and spawns the background loops.
// A bind failure leaves the node idle with no socket open.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}

	udpAddr := net.JoinHostPort(n.listenAddress, strconv.Itoa(n.discoveryPort))
	uc, err := bcast.ListenUDP(context.Background(), udpAddr)
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket %s: %w", udpAddr, err)
	}

	tcpAddr := net.JoinHostPort(n.LocalAddr.String(), strconv.Itoa(n.messagePort))
	tl, err := net.Listen("tcp4", tcpAddr)
	if err != nil {
		uc.Close()
		return fmt.Errorf("failed to bind message listener %s: %w", tcpAddr, err)
	}

	// Port 0 in the config means "any": announce what we actually got
	n.boundPort.Store(int32(tl.Addr().(*net.TCPAddr).Port))
	dstPort := n.discoveryPort
	if dstPort == 0 {
		dstPort = uc.LocalAddr().(*net.UDPAddr).Port
	}

	n.udpConn = uc
	n.tcpListener = tl
	n.pubsub = bcast.New(uc, net.UDPAddrFromAddrPort(netip.AddrPortFrom(n.broadcastAddr, uint16(dstPort))))
	n.msgServer = tcpmsg.NewServer(tl, n.readBufferSize, n.handleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan error, 1)
	n.state = StateRunning
	n.running.Store(true)

	// Plain Group: one loop failing must not stop its siblings
	var wg errgroup.Group

	wg.Go(func() error {
		return n.pubsub.Listen(ctx, n.handleDatagram)
	})

	wg.Go(func() error {
		return n.msgServer.Serve(ctx)
	})

	wg.Go(func() error {
		interval := &timer.Interval{
			Duration:  n.broadcastInterval,
			Immediate: true,
		}
		err := timer.RunWithTicker(ctx, interval, n.publishAnnouncement)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	go func() {
		n.done <- wg.Wait()
	}()

	n.notify(log.InfoLevel, "P2P Chat started on %s (UDP discovery port %d, TCP messaging port %d)",
		n.LocalAddr, uc.LocalAddr().(*net.UDPAddr).Port, n.MessagePort())

	return nil
}

// Stop closes both sockets, which unblocks the loops, and waits for them up to the shutdown grace period.
// Stopping is terminal; calling Stop again is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.state != StateRunning {
		n.state = StateStopped
		n.mu.Unlock()
		return nil
	}

	n.state = StateStopped
	n.running.Store(false)
	n.cancel()

	if err := n.udpConn.Close(); err != nil {
		log.Warnf("Node.Stop: error closing discovery socket: %v", err)
	}
	if err := n.tcpListener.Close(); err != nil {
		log.Warnf("Node.Stop: error closing message listener: %v", err)
	}
	done := n.done
	n.mu.Unlock()

	select {
	case err := <-done:
		if err != nil {
			log.Errorf("Node.Stop: background loop failed: %v", err)
		}
	case <-time.After(n.shutdownGrace):
		n.notify(log.WarnLevel, "Shutdown grace period of %v exceeded", n.shutdownGrace)
		return ErrShutdownTimeout
	}

	n.notify(log.InfoLevel, "P2P Chat stopped")
	return nil
}

func (n *Node) Running() bool {
	return n.running.Load()
}

func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// MessagePort is the TCP port announced to peers: the bound port once started, the configured one before.
func (n *Node) MessagePort() int {
	if p := n.boundPort.Load(); p != 0 {
		return int(p)
	}
	return n.messagePort
}

func (n *Node) Peers() *PeerRegistry {
	return n.peers
}

func (n *Node) Stats() StatsSnapshot {
	return n.stats.Snapshot()
}

// EvictStale drops peers silent for longer than the peer timeout. Meant to be called on a fixed
// external cadence (once a second); the node never schedules it on its own.
func (n *Node) EvictStale(now time.Time) []netip.Addr {
	removed := n.peers.Evict(now, n.peerTimeout)
	if len(removed) == 0 {
		return nil
	}

	log.Debugf("EvictStale: removed %v", removed)
	n.notify(log.InfoLevel, "Removed %d inactive peer(s)", len(removed))
	n.observer.PeerListChanged(n.peers.Snapshot())

	return removed
}
