package fsm

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logEntry(t *testing.T, index uint64, cmd types.Command, at time.Time) *raft.Log {
	t.Helper()
	data, err := types.EncodeCommand(cmd, at)
	require.NoError(t, err)
	return &raft.Log{
		Index: index,
		Term:  1,
		Type:  raft.LogCommand,
		Data:  data,
	}
}

// TestRaftFSMApply tests that Apply decodes the envelope and uses its timestamp
func TestRaftFSMApply(t *testing.T) {
	raftFSM := NewRaftFSM(ledgerID)
	seed(t, raftFSM.fsm)

	result := raftFSM.Apply(logEntry(t, 1, types.ListCmd{
		Lender: "alice",
		Terms:  types.ListTerms{Asset: face, MaxDuration: 3, DailyPrice: 2, Collateral: 5, PaymentAsset: "usd"},
	}, t0))
	listed, ok := result.(escrow.ListResponse)
	require.True(t, ok, "expected ListResponse, got %v", result)

	stamped := t0.Add(90 * time.Minute)
	result = raftFSM.Apply(logEntry(t, 2, types.RentCmd{Borrower: "bob", ListingID: listed.ListingIDs[0], Duration: 1}, stamped))
	rented, ok := result.(escrow.RentResponse)
	require.True(t, ok, "expected RentResponse, got %v", result)

	rental, err := raftFSM.fsm.Ledger().GetRental(rented.RentalIDs[0])
	require.NoError(t, err)
	assert.Equal(t, stamped, rental.StartedAt)
}

// TestRaftFSMApplyFallsBackToAppendedAt tests entries without a leader stamp
func TestRaftFSMApplyFallsBackToAppendedAt(t *testing.T) {
	raftFSM := NewRaftFSM(ledgerID)
	seed(t, raftFSM.fsm)

	entry := logEntry(t, 1, types.ListCmd{
		Lender: "alice",
		Terms:  types.ListTerms{Asset: face, MaxDuration: 3, DailyPrice: 2, Collateral: 5, PaymentAsset: "usd"},
	}, time.Time{})
	require.IsType(t, escrow.ListResponse{}, raftFSM.Apply(entry))

	appended := t0.Add(time.Minute)
	entry = logEntry(t, 2, types.RentCmd{Borrower: "bob", ListingID: 1, Duration: 1}, time.Time{})
	entry.AppendedAt = appended
	require.IsType(t, escrow.RentResponse{}, raftFSM.Apply(entry))

	rental, err := raftFSM.fsm.Ledger().GetRental(1)
	require.NoError(t, err)
	assert.Equal(t, appended, rental.StartedAt)
}

// TestRaftFSMApplyErrors tests that failures come back as the log response
func TestRaftFSMApplyErrors(t *testing.T) {
	raftFSM := NewRaftFSM(ledgerID)

	result := raftFSM.Apply(&raft.Log{Index: 1, Data: []byte{0xff, 0xff}})
	err, ok := result.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, types.ErrMalformedCommand)

	result = raftFSM.Apply(logEntry(t, 2, types.RentCmd{Borrower: "bob", ListingID: 1, Duration: 1}, t0))
	err, ok = result.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

// TestRaftFSMSnapshot tests snapshot creation
func TestRaftFSMSnapshot(t *testing.T) {
	raftFSM := NewRaftFSM(ledgerID)
	seed(t, raftFSM.fsm)

	_, err := raftFSM.fsm.Apply(types.ListCmd{
		Lender: "alice",
		Terms:  types.ListTerms{Asset: face, MaxDuration: 3, DailyPrice: 2, Collateral: 5, PaymentAsset: "usd"},
	}, t0)
	require.NoError(t, err)

	snapshot, err := raftFSM.Snapshot()
	require.NoError(t, err)

	fsmSnap := snapshot.(*fsmSnapshot)
	assert.Len(t, fsmSnap.Ledger.Listings, 1)
	assert.Equal(t, uint64(1), fsmSnap.Ledger.EventSeq)
	assert.NotEmpty(t, fsmSnap.Registry.Owners)
}

// TestRaftFSMRestore tests restoring from snapshot
func TestRaftFSMRestore(t *testing.T) {
	original := NewRaftFSM(ledgerID)
	seed(t, original.fsm)

	_, err := original.fsm.Apply(types.ListCmd{
		Lender: "alice",
		Terms:  types.ListTerms{Asset: face, MaxDuration: 3, DailyPrice: 2, Collateral: 5, PaymentAsset: "usd"},
	}, t0)
	require.NoError(t, err)
	_, err = original.fsm.Apply(types.RentCmd{Borrower: "bob", ListingID: 1, Duration: 2}, t0)
	require.NoError(t, err)

	snapshot, err := original.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	mockSink := &mockSnapshotSink{buffer: &buf}
	require.NoError(t, snapshot.Persist(mockSink))

	restored := NewRaftFSM(ledgerID)
	require.NoError(t, restored.Restore(io.NopCloser(&buf)))

	rental, err := restored.fsm.Ledger().GetRental(1)
	require.NoError(t, err)
	assert.Equal(t, types.Identity("bob"), rental.Borrower)
	assert.True(t, rental.StartedAt.Equal(t0))

	assert.Equal(t, original.fsm.Stats(), restored.fsm.Stats())
	assert.Equal(t, types.Amount(91), restored.fsm.Payments().BalanceOf("bob", "usd"))
	require.NoError(t, restored.fsm.Ledger().CheckInvariants())

	//the restored replica keeps settling where the original left off
	_, err = restored.fsm.Apply(types.ReturnCmd{Caller: "bob", RentalID: 1}, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.Amount(96), restored.fsm.Payments().BalanceOf("bob", "usd"))
}

// mockSnapshotSink implements raft.SnapshotSink for testing
type mockSnapshotSink struct {
	buffer *bytes.Buffer
}

func (m *mockSnapshotSink) Write(p []byte) (n int, err error) {
	return m.buffer.Write(p)
}

func (m *mockSnapshotSink) Close() error {
	return nil
}

func (m *mockSnapshotSink) ID() string {
	return "mock-snapshot"
}

func (m *mockSnapshotSink) Cancel() error {
	return nil
}
