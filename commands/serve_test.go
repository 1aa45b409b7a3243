package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lanchat/config"
	"lanchat/datamodel/peer"
	"lanchat/datastore/leveldb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.NewEmptyConfig(filepath.Join(t.TempDir(), "config.json"))
	cfg.Node.Nickname = "alice"
	cfg.Network.LocalAddress = "127.0.0.1"
	cfg.Network.ListenAddress = "127.0.0.1"
	cfg.Network.DiscoveryPort = 0
	cfg.Network.MessagePort = 0
	cfg.Network.BroadcastAddress = "127.0.0.1"
	cfg.Network.BroadcastInterval = config.Duration{Duration: 50 * time.Millisecond}
	cfg.DataStore.PeerIndexPath = filepath.Join(t.TempDir(), "peers")
	return cfg
}

func TestServeQuit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network.MetricsAddress = "127.0.0.1:0"

	var out bytes.Buffer
	err := Serve(context.Background(), cfg, ServeOptions{
		In:  strings.NewReader("/help\n/peers\n/stats\n/quit\n/stats\n"),
		Out: &out,
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "P2P Chat - alice")
	assert.Contains(t, text, "Local IP: 127.0.0.1")
	assert.Contains(t, text, "No peers discovered yet")
	assert.Contains(t, text, "Status: Online")
	assert.Equal(t, 1, strings.Count(text, "Status:"))
	assert.Contains(t, text, "SYSTEM: P2P Chat stopped")
}

func TestServeEndsOnEOF(t *testing.T) {
	var out bytes.Buffer
	err := Serve(context.Background(), testConfig(t), ServeOptions{
		In:        strings.NewReader("hello\n"),
		Out:       &out,
		QuitOnEOF: true,
	})
	require.NoError(t, err)

	// No peers known: the broadcast send reaches nobody
	assert.Contains(t, out.String(), "No peers selected")
}

func TestServeKeepsRunningAfterEOFUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	var out bytes.Buffer
	err := Serve(ctx, testConfig(t), ServeOptions{
		In:  strings.NewReader(""),
		Out: &out,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Node.Nickname = ""

	err := Serve(context.Background(), cfg, ServeOptions{In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestRunInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	RunInit(context.Background(), config.NewEmptyConfig(path), "carol")

	cfg, err := config.NewConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.Node.Nickname)
	assert.NoError(t, cfg.Validate())
}

func TestRunInfoListsRememberedPeers(t *testing.T) {
	cfg := testConfig(t)

	idx, err := leveldb.NewPeerIndex(cfg.DataStore.PeerIndexPath)
	require.NoError(t, err)
	_, err = idx.Put(&peer.Metadata{
		Address:  "192.168.1.7",
		Nickname: "bob",
		TCPPort:  41235,
		LastSeen: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	RunInfo(context.Background(), cfg)

	assert.Contains(t, buf.String(), "1 peers known")
	assert.Contains(t, buf.String(), "bob (192.168.1.7)")
}
