package commands

import (
	"context"
	"lanchat/config"
	"lanchat/datastore/leveldb"
	"time"
)

// RunInfo lists every peer remembered in the known-peer cache.
func RunInfo(ctx context.Context, cfg *config.Config) {
	pidx, err := leveldb.NewPeerIndex(cfg.DataStore.PeerIndexPath)
	if err != nil {
		log.Fatalf("Failed to open peer index: %v", err)
	}
	defer pidx.Close()

	peers, err := pidx.Enumerate()
	if err != nil {
		log.Errorf("Failed to enumerate peer index: %v", err)
		return
	}

	log.Infof("Peer index: %d peers known", len(peers))
	for _, p := range peers {
		log.Infof("Peer: %s (%s), tcp port: %d, first seen: %v, last seen: %v ago",
			p.Nickname, p.Address, p.TCPPort, p.FirstSeen.Format(time.RFC3339), time.Since(p.LastSeen).Round(time.Second))
	}
}
