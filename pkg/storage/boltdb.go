package storage

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
)

// default number of snapshots kept on disk
const DefaultSnapshotRetain = 3

// BoltDBStorage wraps Raft's BoltDB storage components
// logstore : stores the Raft log entries
// stablestore : stores stable Raft metadata [stable = survives restarts]
// snapshotstore : stores snapshots of the escrow ledger state
type BoltDBStorage struct {
	LogStore      raft.LogStore
	StableStore   raft.StableStore
	SnapshotStore raft.SnapshotStore

	db *raftboltdb.BoltStore
}

type Options struct {
	SnapshotRetain int
	Logger         hclog.Logger
}

func NewBoltDBStorage(dataDir string) (*BoltDBStorage, error) {
	return NewBoltDBStorageWithOptions(dataDir, Options{})
}

func NewBoltDBStorageWithOptions(dataDir string, opts Options) (*BoltDBStorage, error) {
	if opts.SnapshotRetain <= 0 {
		opts.SnapshotRetain = DefaultSnapshotRetain
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	//boltDB is used for both log and stable storage
	boltDB, err := raftboltdb.New(raftboltdb.Options{
		Path: filepath.Join(dataDir, "raft.db"),
	})
	if err != nil {
		return nil, err
	}

	//snapshot store (file-based)
	snapshotDir := filepath.Join(dataDir, "snapshots")
	snapShotStore, err := raft.NewFileSnapshotStoreWithLogger(snapshotDir, opts.SnapshotRetain, opts.Logger.Named("snapshot"))
	if err != nil {
		boltDB.Close()
		return nil, err
	}

	return &BoltDBStorage{
		LogStore:      boltDB,
		StableStore:   boltDB,
		SnapshotStore: snapShotStore,
		db:            boltDB,
	}, nil
}

// index of the newest stored log entry, 0 when empty
func (b *BoltDBStorage) LastIndex() (uint64, error) {
	return b.LogStore.LastIndex()
}

// reports whether the data dir already holds raft state, a node with state
// must not bootstrap again
func (b *BoltDBStorage) HasState() (bool, error) {
	return raft.HasExistingState(b.LogStore, b.StableStore, b.SnapshotStore)
}

func (b *BoltDBStorage) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}
