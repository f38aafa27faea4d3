package raft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/pixperk/escrowd/pkg/clock"
	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/events"
	"github.com/pixperk/escrowd/pkg/fsm"
	"github.com/pixperk/escrowd/pkg/metrics"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/storage"
	"github.com/pixperk/escrowd/pkg/types"
)

const DefaultApplyTimeout = 5 * time.Second

// returned by writes on a follower, the caller should retry on the leader
var ErrNotLeader = raft.ErrNotLeader

// wraps a raft inst with the escrow fsm and provides a clean api
type Node struct {
	raft    *raft.Raft
	fsm     *fsm.FSM
	raftFSM *fsm.RaftFSM
	storage *storage.BoltDBStorage
	cfg     *Config

	current  atomic.Pointer[raft.Raft] //read by the event sink from the fsm goroutine
	notifyCh chan bool
	done     chan struct{}
	wg       sync.WaitGroup
	shutdown sync.Once
}

type Config struct {
	NodeID       string         //unique ID for this node
	BindAddr     string         //net addr to bind Raft communication
	DataDir      string         //data directory for Raft storage
	Bootstrap    bool           //if this is the first node in the cluster
	LedgerID     types.Identity //identity of the escrow account
	ApplyTimeout time.Duration  //upper bound on one replicated write

	Sink   events.Sink  //receives committed events while this node leads
	Clock  clock.Clock  //stamps commands on the leader
	Logger *slog.Logger //ledger logs
	HCLog  hclog.Logger //raft internals
}

func NewNode(cfg *Config) (*Node, error) {
	if cfg.NodeID == "" {
		return nil, errors.New("node id is required")
	}
	if cfg.LedgerID == "" {
		cfg.LedgerID = "escrow"
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = DefaultApplyTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.HCLog == nil {
		cfg.HCLog = hclog.New(&hclog.LoggerOptions{
			Name:   "raft",
			Level:  hclog.Warn,
			Output: io.Discard,
		})
	}

	n := &Node{
		cfg:      cfg,
		notifyCh: make(chan bool, 8),
		done:     make(chan struct{}),
	}

	opts := []escrow.Option{
		escrow.WithClock(cfg.Clock),
		escrow.WithLogger(cfg.Logger.With("node_id", cfg.NodeID)),
	}
	if cfg.Sink != nil {
		opts = append(opts, escrow.WithEventSink(&leaderSink{node: n, sink: cfg.Sink}))
	}
	n.raftFSM = fsm.NewRaftFSM(cfg.LedgerID, opts...)
	n.fsm = n.raftFSM.GetFSM()

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.Logger = cfg.HCLog
	raftCfg.NotifyCh = n.notifyCh

	raftCfg.HeartbeatTimeout = 1000 * time.Millisecond
	raftCfg.ElectionTimeout = 1000 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 500 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond //time to wait before committing entries
	raftCfg.SnapshotThreshold = 8192              // snapshot after 8K log entries

	//add boltDB storage
	raftStorage, err := storage.NewBoltDBStorageWithOptions(cfg.DataDir, storage.Options{Logger: cfg.HCLog})
	if err != nil {
		return nil, fmt.Errorf("failed to create stores: %w", err)
	}
	n.storage = raftStorage

	hasState, err := raftStorage.HasState()
	if err != nil {
		raftStorage.Close()
		return nil, fmt.Errorf("failed to inspect raft state: %w", err)
	}

	//tcp transport for inter-node communication
	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		raftStorage.Close()
		return nil, fmt.Errorf("failed to resolve bind addr: %w", err)
	}
	var advertise net.Addr
	if addr.Port != 0 {
		advertise = addr
	} //else advertise whatever port the listener got

	transport, err := raft.NewTCPTransportWithLogger(cfg.BindAddr, advertise, 3, 10*time.Second, cfg.HCLog.Named("transport"))
	if err != nil {
		raftStorage.Close()
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, n.raftFSM, raftStorage.LogStore, raftStorage.StableStore, raftStorage.SnapshotStore, transport)
	if err != nil {
		transport.Close()
		raftStorage.Close()
		return nil, fmt.Errorf("failed to create raft: %w", err)
	}
	n.raft = r
	n.current.Store(r)

	//bootstrap only a fresh node, restarts recover from storage
	if cfg.Bootstrap && !hasState {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raftCfg.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}

		if err := r.BootstrapCluster(configuration).Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
			r.Shutdown()
			raftStorage.Close()
			return nil, fmt.Errorf("failed to bootstrap: %w", err)
		}
	}

	n.wg.Add(1)
	go n.watchLeadership()

	return n, nil
}

// tracks leadership changes for the event sink and metrics
func (n *Node) watchLeadership() {
	defer n.wg.Done()

	for {
		select {
		case <-n.done:
			return
		case leader := <-n.notifyCh:
			metrics.SetLeader(leader)
			n.cfg.Logger.Info("raft leadership changed",
				"node_id", n.cfg.NodeID,
				"leader", leader,
			)
		}
	}
}

// apply a command to the Raft cluster
// the leader stamps the command so every replica evaluates it at the same time
func (n *Node) Apply(ctx context.Context, cmd types.Command) (any, error) {
	if !n.IsLeader() {
		return nil, ErrNotLeader
	}

	data, err := types.EncodeCommand(cmd, n.cfg.Clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	timeout := n.cfg.ApplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	//replicate to cluster via Raft
	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", cmd.Type(), err)
	}
	metrics.RaftAppliedIndex.Set(float64(future.Index()))

	//the fsm returns domain errors as the response
	if err, ok := future.Response().(error); ok {
		return nil, err
	}
	return future.Response(), nil
}

// adds a voter, must be called on the leader
func (n *Node) Join(nodeID, addr string) error {
	if !n.IsLeader() {
		return ErrNotLeader
	}

	cfgFuture := n.raft.GetConfiguration()
	if err := cfgFuture.Error(); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	for _, srv := range cfgFuture.Configuration().Servers {
		if srv.ID == raft.ServerID(nodeID) && srv.Address == raft.ServerAddress(addr) {
			return nil //already a member
		}
		if srv.ID == raft.ServerID(nodeID) || srv.Address == raft.ServerAddress(addr) {
			if err := n.raft.RemoveServer(srv.ID, 0, 0).Error(); err != nil {
				return fmt.Errorf("failed to remove stale server %s: %w", srv.ID, err)
			}
		}
	}

	if err := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0).Error(); err != nil {
		return fmt.Errorf("failed to add voter %s: %w", nodeID, err)
	}

	n.cfg.Logger.Info("node joined", "joined_id", nodeID, "addr", addr)
	n.refreshPeers()
	return nil
}

// removes a server, must be called on the leader
func (n *Node) Remove(nodeID string) error {
	if !n.IsLeader() {
		return ErrNotLeader
	}
	if err := n.raft.RemoveServer(raft.ServerID(nodeID), 0, 0).Error(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", nodeID, err)
	}
	n.refreshPeers()
	return nil
}

func (n *Node) refreshPeers() {
	f := n.raft.GetConfiguration()
	if f.Error() == nil {
		metrics.RaftPeers.Set(float64(len(f.Configuration().Servers)))
	}
}

// returns true if this node is the leader
func (n *Node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// returns the leader's address and id
func (n *Node) Leader() (string, string) {
	addr, id := n.raft.LeaderWithID()
	return string(addr), string(id)
}

// returns the leader's address
func (n *Node) GetLeader() string {
	addr, _ := n.Leader()
	return addr
}

func (n *Node) ID() string {
	return n.cfg.NodeID
}

// address the transport listens on
func (n *Node) Addr() string {
	f := n.raft.GetConfiguration()
	if f.Error() == nil {
		for _, srv := range f.Configuration().Servers {
			if srv.ID == raft.ServerID(n.cfg.NodeID) {
				return string(srv.Address)
			}
		}
	}
	return n.cfg.BindAddr
}

// blocks until a leader is elected
func (n *Node) WaitForLeader(timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	timeoutCh := time.After(timeout)

	for {
		select {
		case <-timeoutCh:
			return fmt.Errorf("no leader elected within timeout")
		case <-ticker.C:
			if n.GetLeader() != "" {
				return nil
			}
		}
	}
}

// returns ledger statistics
func (n *Node) Stats() escrow.Stats {
	return n.fsm.Stats()
}

// returns raft's own counters (state, term, last_log_index, ...)
func (n *Node) RaftStats() map[string]string {
	return n.raft.Stats()
}

func (n *Node) AppliedIndex() uint64 {
	return n.raft.AppliedIndex()
}

// read side of the replicated state, reads are served locally and may lag
// the leader on followers
func (n *Node) Ledger() *escrow.Ledger {
	return n.fsm.Ledger()
}

func (n *Node) Registry() *registry.Registry {
	return n.fsm.Registry()
}

func (n *Node) Payments() *payment.Ledger {
	return n.fsm.Payments()
}

// gracefully shuts down the Raft node
func (n *Node) Shutdown() error {
	var err error
	n.shutdown.Do(func() {
		err = n.raft.Shutdown().Error()
		close(n.done)
		n.wg.Wait()
		if cerr := n.storage.Close(); err == nil {
			err = cerr
		}
		metrics.SetLeader(false)
	})
	return err
}

// forwards events only while this node leads, followers apply the same log
// and would otherwise publish every event again
type leaderSink struct {
	node *Node
	sink events.Sink
}

func (s *leaderSink) Publish(ctx context.Context, evs []types.Event) error {
	if r := s.node.current.Load(); r == nil || r.State() != raft.Leader {
		return nil
	}
	return s.sink.Publish(ctx, evs)
}
