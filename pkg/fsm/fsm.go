package fsm

import (
	"fmt"
	"time"

	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/types"
)

// composes the escrow ledger with the in-process asset registry and payment
// ledger it settles against
// critical :
//   - every replica must reach the same state for the same log, so nothing
//     here reads the wall clock; the command time comes from the caller
//   - admin commands only touch the adapters, never the ledger stores
type FSM struct {
	ledger   *escrow.Ledger
	registry *registry.Registry
	payments *payment.Ledger
}

// returned by MintAssetCmd
type MintAssetResponse struct {
	Asset types.AssetRef
	Owner types.Identity
}

// returned by SetApprovalCmd
type SetApprovalResponse struct {
	Approved bool
}

// returned by FaucetCmd
type FaucetResponse struct {
	Balance types.Amount
}

// returned by ApprovePaymentCmd
type ApprovePaymentResponse struct {
	Allowance types.Amount
}

func NewFSM(self types.Identity, opts ...escrow.Option) *FSM {
	reg := registry.New(self)
	payments := payment.New(self)

	return &FSM{
		ledger:   escrow.New(self, reg, payments, opts...),
		registry: reg,
		payments: payments,
	}
}

// applies a command as of at and returns the result or error
func (f *FSM) Apply(cmd types.Command, at time.Time) (any, error) {
	switch c := cmd.(type) {
	case types.MintAssetCmd:
		return f.applyMintAsset(c)
	case types.SetApprovalCmd:
		return f.applySetApproval(c)
	case types.FaucetCmd:
		return f.applyFaucet(c)
	case types.ApprovePaymentCmd:
		return f.applyApprovePayment(c)
	case nil:
		return nil, fmt.Errorf("nil command")
	default:
		return f.ledger.ApplyAt(cmd, at)
	}
}

func (f *FSM) applyMintAsset(cmd types.MintAssetCmd) (any, error) {
	if cmd.Owner == "" || cmd.Asset.IsZero() {
		return nil, fmt.Errorf("mint asset: owner and asset are required: %w", types.ErrInvalidTerms)
	}
	if err := f.registry.Mint(cmd.Owner, cmd.Asset); err != nil {
		return nil, err
	}
	return MintAssetResponse{Asset: cmd.Asset, Owner: cmd.Owner}, nil
}

func (f *FSM) applySetApproval(cmd types.SetApprovalCmd) (any, error) {
	if cmd.Owner == "" || cmd.Operator == "" {
		return nil, fmt.Errorf("set approval: owner and operator are required: %w", types.ErrInvalidTerms)
	}
	f.registry.SetApproval(cmd.Owner, cmd.Operator, cmd.Approved)
	return SetApprovalResponse{Approved: cmd.Approved}, nil
}

func (f *FSM) applyFaucet(cmd types.FaucetCmd) (any, error) {
	if cmd.To == "" || cmd.Asset == "" {
		return nil, fmt.Errorf("faucet: recipient and asset are required: %w", types.ErrInvalidTerms)
	}
	if err := f.payments.Mint(cmd.To, cmd.Amount, cmd.Asset); err != nil {
		return nil, err
	}
	return FaucetResponse{Balance: f.payments.BalanceOf(cmd.To, cmd.Asset)}, nil
}

func (f *FSM) applyApprovePayment(cmd types.ApprovePaymentCmd) (any, error) {
	if cmd.Owner == "" || cmd.Spender == "" || cmd.Asset == "" {
		return nil, fmt.Errorf("approve payment: owner, spender and asset are required: %w", types.ErrInvalidTerms)
	}
	f.payments.Approve(cmd.Owner, cmd.Spender, cmd.Amount, cmd.Asset)
	return ApprovePaymentResponse{Allowance: f.payments.Allowance(cmd.Owner, cmd.Spender, cmd.Asset)}, nil
}

func (f *FSM) Ledger() *escrow.Ledger {
	return f.ledger
}

func (f *FSM) Registry() *registry.Registry {
	return f.registry
}

func (f *FSM) Payments() *payment.Ledger {
	return f.payments
}

// returns ledger statistics
func (f *FSM) Stats() escrow.Stats {
	return f.ledger.Stats()
}
