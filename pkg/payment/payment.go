// Package payment is an in-process ledger of fungible payment assets.
//
// It follows the allowance model of token contracts: an owner approves a
// spender for an amount, the spender then pulls value with TransferFrom.
// The ledger is bound to one spender, the escrow ledger, whose own account
// holds escrowed collateral and pays it out with Transfer.
package payment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pixperk/escrowd/pkg/journal"
	"github.com/pixperk/escrowd/pkg/types"
)

// Unlimited is an allowance that never decreases.
const Unlimited = types.Amount(math.MaxUint64)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type Ledger struct {
	mu  sync.RWMutex
	log journal.Log

	self       types.Identity
	balances   map[types.AssetID]map[types.Identity]types.Amount
	allowances map[types.AssetID]map[allowanceKey]types.Amount
}

type allowanceKey struct {
	Owner   types.Identity
	Spender types.Identity
}

func New(self types.Identity) *Ledger {
	return &Ledger{
		self:       self,
		balances:   make(map[types.AssetID]map[types.Identity]types.Amount),
		allowances: make(map[types.AssetID]map[allowanceKey]types.Amount),
	}
}

// account this ledger spends from
func (p *Ledger) Self() types.Identity {
	return p.self
}

func (p *Ledger) Begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Begin()
}

func (p *Ledger) Commit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Commit()
}

func (p *Ledger) Rollback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Rollback()
}

// credits new value to an account (faucet)
func (p *Ledger) Mint(to types.Identity, amount types.Amount, asset types.AssetID) error {
	if to == "" || asset == "" {
		return fmt.Errorf("mint: recipient and asset are required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bal := p.balances[asset][to]
	if bal > math.MaxUint64-amount {
		return fmt.Errorf("mint %d %s to %s: %w", amount, asset, to, types.ErrAmountOverflow)
	}
	p.setBalance(asset, to, bal+amount)
	return nil
}

func (p *Ledger) Approve(owner, spender types.Identity, amount types.Amount, asset types.AssetID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setAllowance(asset, allowanceKey{Owner: owner, Spender: spender}, amount)
}

func (p *Ledger) Allowance(owner, spender types.Identity, asset types.AssetID) types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.allowances[asset][allowanceKey{Owner: owner, Spender: spender}]
}

func (p *Ledger) BalanceOf(holder types.Identity, asset types.AssetID) types.Amount {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[asset][holder]
}

// pulls amount from owner to recipient using the ledger's allowance
func (p *Ledger) TransferFrom(owner, recipient types.Identity, amount types.Amount, asset types.AssetID) error {
	if amount == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := allowanceKey{Owner: owner, Spender: p.self}
	allowed := p.allowances[asset][key]
	if owner != p.self && allowed < amount {
		return fmt.Errorf("%s allows %s %d %s, need %d: %w", owner, p.self, allowed, asset, amount, ErrInsufficientAllowance)
	}

	if err := p.move(owner, recipient, amount, asset); err != nil {
		return err
	}

	if owner != p.self && allowed != Unlimited {
		p.setAllowance(asset, key, allowed-amount)
	}
	return nil
}

// pays amount out of the ledger's own account
func (p *Ledger) Transfer(recipient types.Identity, amount types.Amount, asset types.AssetID) error {
	if amount == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.move(p.self, recipient, amount, asset)
}

func (p *Ledger) move(from, to types.Identity, amount types.Amount, asset types.AssetID) error {
	fromBal := p.balances[asset][from]
	if fromBal < amount {
		return fmt.Errorf("%s holds %d %s, need %d: %w", from, fromBal, asset, amount, ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}

	toBal := p.balances[asset][to]
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("credit %s: %w", to, types.ErrAmountOverflow)
	}

	p.setBalance(asset, from, fromBal-amount)
	p.setBalance(asset, to, toBal+amount)
	return nil
}

func (p *Ledger) setBalance(asset types.AssetID, holder types.Identity, v types.Amount) {
	bals, ok := p.balances[asset]
	if !ok {
		bals = make(map[types.Identity]types.Amount)
		p.balances[asset] = bals
	}

	prev, had := bals[holder]
	bals[holder] = v
	p.log.Record(func() {
		if had {
			bals[holder] = prev
		} else {
			delete(bals, holder)
		}
	})
}

func (p *Ledger) setAllowance(asset types.AssetID, key allowanceKey, v types.Amount) {
	allows, ok := p.allowances[asset]
	if !ok {
		allows = make(map[allowanceKey]types.Amount)
		p.allowances[asset] = allows
	}

	prev, had := allows[key]
	allows[key] = v
	p.log.Record(func() {
		if had {
			allows[key] = prev
		} else {
			delete(allows, key)
		}
	})
}

type Balance struct {
	Asset  types.AssetID  `json:"asset"`
	Holder types.Identity `json:"holder"`
	Amount types.Amount   `json:"amount"`
}

type Allowance struct {
	Asset   types.AssetID  `json:"asset"`
	Owner   types.Identity `json:"owner"`
	Spender types.Identity `json:"spender"`
	Amount  types.Amount   `json:"amount"`
}

// point-in-time copy of all balances and allowances, deterministic order
type State struct {
	Balances   []Balance   `json:"balances"`
	Allowances []Allowance `json:"allowances"`
}

func (p *Ledger) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	st := State{Balances: []Balance{}, Allowances: []Allowance{}}
	for asset, bals := range p.balances {
		for holder, amount := range bals {
			st.Balances = append(st.Balances, Balance{Asset: asset, Holder: holder, Amount: amount})
		}
	}
	for asset, allows := range p.allowances {
		for key, amount := range allows {
			st.Allowances = append(st.Allowances, Allowance{
				Asset:   asset,
				Owner:   key.Owner,
				Spender: key.Spender,
				Amount:  amount,
			})
		}
	}

	sort.Slice(st.Balances, func(i, j int) bool {
		a, b := st.Balances[i], st.Balances[j]
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Holder < b.Holder
	})
	sort.Slice(st.Allowances, func(i, j int) bool {
		a, b := st.Allowances[i], st.Allowances[j]
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Spender < b.Spender
	})
	return st
}

func (p *Ledger) Restore(st State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.balances = make(map[types.AssetID]map[types.Identity]types.Amount)
	for _, b := range st.Balances {
		bals, ok := p.balances[b.Asset]
		if !ok {
			bals = make(map[types.Identity]types.Amount)
			p.balances[b.Asset] = bals
		}
		bals[b.Holder] = b.Amount
	}

	p.allowances = make(map[types.AssetID]map[allowanceKey]types.Amount)
	for _, a := range st.Allowances {
		allows, ok := p.allowances[a.Asset]
		if !ok {
			allows = make(map[allowanceKey]types.Amount)
			p.allowances[a.Asset] = allows
		}
		allows[allowanceKey{Owner: a.Owner, Spender: a.Spender}] = a.Amount
	}
}
