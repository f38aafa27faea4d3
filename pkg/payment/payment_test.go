package payment

import (
	"testing"

	"github.com/pixperk/escrowd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const escrow = types.Identity("escrow")

func TestPaymentLedger(t *testing.T) {
	var newLedger = func(t *testing.T) *Ledger {
		p := New(escrow)
		require.NoError(t, p.Mint("bob", 100, "dai"))
		return p
	}

	t.Run("should pull value with an allowance", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, 20, "dai")

		require.NoError(t, p.TransferFrom("bob", "alice", 15, "dai"))

		assert.Equal(t, types.Amount(85), p.BalanceOf("bob", "dai"))
		assert.Equal(t, types.Amount(15), p.BalanceOf("alice", "dai"))
		assert.Equal(t, types.Amount(5), p.Allowance("bob", escrow, "dai"))
	})

	t.Run("should keep unlimited allowances", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, Unlimited, "dai")

		require.NoError(t, p.TransferFrom("bob", escrow, 40, "dai"))
		assert.Equal(t, Unlimited, p.Allowance("bob", escrow, "dai"))
	})

	t.Run("should fail without allowance", func(t *testing.T) {
		p := newLedger(t)

		err := p.TransferFrom("bob", "alice", 1, "dai")
		assert.ErrorIs(t, err, ErrInsufficientAllowance)
		assert.Equal(t, types.Amount(100), p.BalanceOf("bob", "dai"))
	})

	t.Run("should fail without balance", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, Unlimited, "dai")

		err := p.TransferFrom("bob", "alice", 101, "dai")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("should keep assets apart", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, Unlimited, "usdc")

		err := p.TransferFrom("bob", "alice", 1, "usdc")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("should pay out of its own account", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, Unlimited, "dai")
		require.NoError(t, p.TransferFrom("bob", escrow, 11, "dai"))

		require.NoError(t, p.Transfer("bob", 11, "dai"))
		assert.Equal(t, types.Amount(0), p.BalanceOf(escrow, "dai"))
		assert.ErrorIs(t, p.Transfer("bob", 1, "dai"), ErrInsufficientBalance)
	})

	t.Run("should reject overflowing mints", func(t *testing.T) {
		p := newLedger(t)
		assert.ErrorIs(t, p.Mint("bob", Unlimited, "dai"), types.ErrAmountOverflow)
	})

	t.Run("should roll back every write", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, 50, "dai")

		p.Begin()
		require.NoError(t, p.TransferFrom("bob", "alice", 30, "dai"))
		require.NoError(t, p.Mint("carol", 5, "usdc"))
		p.Rollback()

		assert.Equal(t, types.Amount(100), p.BalanceOf("bob", "dai"))
		assert.Equal(t, types.Amount(0), p.BalanceOf("alice", "dai"))
		assert.Equal(t, types.Amount(50), p.Allowance("bob", escrow, "dai"))
		assert.Equal(t, types.Amount(0), p.BalanceOf("carol", "usdc"))
	})

	t.Run("should restore from state", func(t *testing.T) {
		p := newLedger(t)
		p.Approve("bob", escrow, 7, "dai")

		restored := New(escrow)
		restored.Restore(p.State())

		assert.Equal(t, p.State(), restored.State())
	})
}
