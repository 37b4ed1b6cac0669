package raft

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	hraft "github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/metrics"
	"github.com/cuemby/slotdb/internal/types"
)

// Config configures a single Raft node backing a Database.
type Config struct {
	DataDir   string
	NodeID    string // generated with uuid.NewString() if empty
	BindAddr  string
	Bootstrap bool
	Peers     []string // "nodeID@addr", only consulted when Bootstrap is true
}

// Node owns a hraft.Raft instance, its FSM and its persistent stores,
// wired the way the teacher's Manager.Bootstrap/Join wire hashicorp/raft,
// but against the custom file-backed LogStore/StableStore/SnapshotStore
// this package implements instead of raft-boltdb.
type Node struct {
	cfg    Config
	raft   *hraft.Raft
	fsm    *FSM
	logs   *FileLogStore
	stable *FileStableStore
	snaps  *FileSnapshotStore
	logger zerolog.Logger
}

// Open creates a Raft node over db. With cfg.Bootstrap set it bootstraps
// a cluster of this node plus cfg.Peers; otherwise it starts without a
// configuration and does not contact any peer itself.
func Open(cfg Config, db *database.Database) (*Node, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	raftDir := filepath.Join(cfg.DataDir, "raft")
	if err := os.MkdirAll(raftDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create raft dir %s: %v", types.ErrRaft, raftDir, err)
	}

	logs, err := OpenLogStore(filepath.Join(raftDir, "raft.log"))
	if err != nil {
		return nil, err
	}
	stable, err := OpenStableStore(filepath.Join(raftDir, "raft_state.json"))
	if err != nil {
		return nil, err
	}
	snaps, err := OpenSnapshotStore(raftDir)
	if err != nil {
		return nil, err
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve bind addr %s: %v", types.ErrRaft, cfg.BindAddr, err)
	}
	transport, err := hraft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("%w: create transport: %v", types.ErrRaft, err)
	}

	rc := hraft.DefaultConfig()
	rc.LocalID = hraft.ServerID(cfg.NodeID)

	fsm := NewFSM(db)
	r, err := hraft.NewRaft(rc, fsm, logs, stable, snaps, transport)
	if err != nil {
		return nil, fmt.Errorf("%w: create raft: %v", types.ErrRaft, err)
	}

	n := &Node{cfg: cfg, raft: r, fsm: fsm, logs: logs, stable: stable, snaps: snaps, logger: log.WithComponent("raft")}

	if cfg.Bootstrap {
		servers := []hraft.Server{{ID: rc.LocalID, Address: transport.LocalAddr()}}
		for _, peer := range cfg.Peers {
			id, addr, err := splitPeer(peer)
			if err != nil {
				return nil, err
			}
			if id == cfg.NodeID {
				continue
			}
			servers = append(servers, hraft.Server{ID: hraft.ServerID(id), Address: hraft.ServerAddress(addr)})
		}
		future := r.BootstrapCluster(hraft.Configuration{Servers: servers})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("%w: bootstrap cluster: %v", types.ErrRaft, err)
		}
	}

	go n.watchLeadership()
	return n, nil
}

func splitPeer(peer string) (id, addr string, err error) {
	for i := 0; i < len(peer); i++ {
		if peer[i] == '@' {
			return peer[:i], peer[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%w: invalid peer %q, want nodeID@addr", types.ErrRaft, peer)
}

func (n *Node) watchLeadership() {
	for isLeader := range n.raft.LeaderCh() {
		if isLeader {
			metrics.RaftIsLeader.Set(1)
			n.logger.Info().Str("node_id", n.cfg.NodeID).Msg("became raft leader")
		} else {
			metrics.RaftIsLeader.Set(0)
		}
	}
}

// AddVoter adds a new server to the cluster; only valid on the leader.
func (n *Node) AddVoter(nodeID, addr string) error {
	if n.raft.State() != hraft.Leader {
		return fmt.Errorf("%w: not the leader", types.ErrRaft)
	}
	future := n.raft.AddVoter(hraft.ServerID(nodeID), hraft.ServerAddress(addr), 0, 10*time.Second)
	return future.Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool { return n.raft.State() == hraft.Leader }

// LeaderAddr returns the current leader's transport address, empty if unknown.
func (n *Node) LeaderAddr() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// Apply submits cmd to the cluster, blocking until it is committed and
// applied by the local FSM, and returns its CommandResponse.
func (n *Node) Apply(cmd Command, timeout time.Duration) (CommandResponse, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftCommitLatency)

	data, err := cmd.Marshal()
	if err != nil {
		return CommandResponse{}, err
	}
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return CommandResponse{}, fmt.Errorf("%w: apply command: %v", types.ErrRaft, err)
	}
	resp, ok := future.Response().(CommandResponse)
	if !ok {
		return CommandResponse{}, fmt.Errorf("%w: unexpected apply response type %T", types.ErrRaft, future.Response())
	}
	if resp.Kind == RespError {
		return resp, fmt.Errorf("%w: %s", types.ErrRaft, resp.Message)
	}
	return resp, nil
}

// Shutdown blocks until the Raft node stops.
func (n *Node) Shutdown() error {
	future := n.raft.Shutdown()
	if err := future.Error(); err != nil {
		return fmt.Errorf("%w: shutdown raft: %v", types.ErrRaft, err)
	}
	return n.logs.Close()
}
