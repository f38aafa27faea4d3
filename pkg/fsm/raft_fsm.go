package fsm

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hashicorp/raft"
	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/types"
)

// adapter to bridge Raft FSM with our internal FSM
type RaftFSM struct {
	fsm *FSM
}

func NewRaftFSM(self types.Identity, opts ...escrow.Option) *RaftFSM {
	return &RaftFSM{
		fsm: NewFSM(self, opts...),
	}
}

func (rf *RaftFSM) GetFSM() *FSM {
	return rf.fsm
}

func (rf *RaftFSM) Apply(log *raft.Log) any {
	//s1 : decode the envelope
	cmd, at, err := types.DecodeCommand(log.Data)
	if err != nil {
		return err
	}

	//s2 : entries without a stamp fall back to the leader's append time
	if at.IsZero() {
		at = log.AppendedAt.UTC()
	}
	if at.IsZero() {
		at = time.Unix(0, 0).UTC()
	}

	//s3 : apply to FSM
	result, err := rf.fsm.Apply(cmd, at)
	if err != nil {
		return err
	}

	return result
}

// create a snapshot of the current FSM state
// raft never runs Snapshot concurrently with Apply
func (rf *RaftFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{
		Ledger:   rf.fsm.ledger.State(),
		Registry: rf.fsm.registry.State(),
		Payments: rf.fsm.payments.State(),
	}, nil
}

// restores FSM state from snapshot
// when a node falls behind and needs to catch up or a new node joins
func (rf *RaftFSM) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(snapshot).Decode(&snap); err != nil {
		return err
	}

	rf.fsm.registry.Restore(snap.Registry)
	rf.fsm.payments.Restore(snap.Payments)
	rf.fsm.ledger.Restore(snap.Ledger)
	return nil
}

// point-in-time snapshot of FSM state
type fsmSnapshot struct {
	Ledger   escrow.State   `json:"ledger"`
	Registry registry.State `json:"registry"`
	Payments payment.State  `json:"payments"`
}

// persist snapshot to given sink
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s); err != nil {
		sink.Cancel() //fail snapshot on error
		return err
	}
	return sink.Close() //mark snapshot as complete
}

// called when snapshot is no longer needed
// we have no resources to clean up here
func (s *fsmSnapshot) Release() {}
