package fsm

import (
	"testing"
	"time"

	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerID = types.Identity("escrow")

var (
	t0   = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	face = types.AssetRef{Registry: "faces", Instance: "7"}
)

// seeds alice with an approved asset and bob with approved usd
func seed(t *testing.T, fsm *FSM) {
	t.Helper()

	cmds := []types.Command{
		types.MintAssetCmd{Owner: "alice", Asset: face},
		types.SetApprovalCmd{Owner: "alice", Operator: ledgerID, Approved: true},
		types.FaucetCmd{To: "bob", Asset: "usd", Amount: 100},
		types.ApprovePaymentCmd{Owner: "bob", Spender: ledgerID, Asset: "usd", Amount: payment.Unlimited},
	}
	for _, cmd := range cmds {
		_, err := fsm.Apply(cmd, t0)
		require.NoError(t, err, "seed %s", cmd.Type())
	}
}

// TestAdminCommands tests the registry and payment admin commands
func TestAdminCommands(t *testing.T) {
	fsm := NewFSM(ledgerID)

	result, err := fsm.Apply(types.MintAssetCmd{Owner: "alice", Asset: face}, t0)
	require.NoError(t, err)
	assert.Equal(t, MintAssetResponse{Asset: face, Owner: "alice"}, result)

	_, err = fsm.Apply(types.MintAssetCmd{Owner: "bob", Asset: face}, t0)
	assert.ErrorIs(t, err, registry.ErrAssetExists)

	result, err = fsm.Apply(types.FaucetCmd{To: "bob", Asset: "usd", Amount: 40}, t0)
	require.NoError(t, err)
	assert.Equal(t, FaucetResponse{Balance: 40}, result)

	result, err = fsm.Apply(types.FaucetCmd{To: "bob", Asset: "usd", Amount: 2}, t0)
	require.NoError(t, err)
	assert.Equal(t, FaucetResponse{Balance: 42}, result)

	result, err = fsm.Apply(types.ApprovePaymentCmd{Owner: "bob", Spender: ledgerID, Asset: "usd", Amount: 30}, t0)
	require.NoError(t, err)
	assert.Equal(t, ApprovePaymentResponse{Allowance: 30}, result)

	result, err = fsm.Apply(types.SetApprovalCmd{Owner: "alice", Operator: ledgerID, Approved: true}, t0)
	require.NoError(t, err)
	assert.Equal(t, SetApprovalResponse{Approved: true}, result)
	assert.True(t, fsm.Registry().IsApproved("alice", ledgerID))

	_, err = fsm.Apply(types.FaucetCmd{To: "", Asset: "usd", Amount: 1}, t0)
	assert.ErrorIs(t, err, types.ErrInvalidTerms)
}

// TestLedgerCommands tests that ledger commands reach the escrow ledger at the given time
func TestLedgerCommands(t *testing.T) {
	fsm := NewFSM(ledgerID)
	seed(t, fsm)

	result, err := fsm.Apply(types.ListCmd{
		Lender: "alice",
		Terms:  types.ListTerms{Asset: face, MaxDuration: 5, DailyPrice: 1, Collateral: 11, PaymentAsset: "usd"},
	}, t0)
	require.NoError(t, err)
	listed, ok := result.(escrow.ListResponse)
	require.True(t, ok, "expected ListResponse")

	rentAt := t0.Add(time.Hour)
	result, err = fsm.Apply(types.RentCmd{Borrower: "bob", ListingID: listed.ListingIDs[0], Duration: 2}, rentAt)
	require.NoError(t, err)
	rented := result.(escrow.RentResponse)

	rental, err := fsm.Ledger().GetRental(rented.RentalIDs[0])
	require.NoError(t, err)
	assert.Equal(t, rentAt, rental.StartedAt)

	assert.Equal(t, types.Amount(87), fsm.Payments().BalanceOf("bob", "usd"))
	assert.Equal(t, 1, fsm.Stats().ActiveRentals)

	_, err = fsm.Apply(types.ReturnCmd{Caller: "bob", RentalID: rental.ID}, rentAt.Add(3*types.Day))
	assert.ErrorIs(t, err, types.ErrDurationExceeded)
	_, err = fsm.Apply(types.ClaimCmd{Caller: "alice", RentalID: rental.ID}, rentAt.Add(3*types.Day))
	require.NoError(t, err)
	assert.Equal(t, types.Amount(13), fsm.Payments().BalanceOf("alice", "usd"))
}
