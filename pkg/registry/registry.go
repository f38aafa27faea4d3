// Package registry is an in-process asset registry: it records who owns each
// unique asset and which operators may move an owner's assets.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pixperk/escrowd/pkg/journal"
	"github.com/pixperk/escrowd/pkg/types"
)

var (
	ErrUnknownAsset = errors.New("unknown asset")
	ErrAssetExists  = errors.New("asset already exists")
	ErrNotOwner     = errors.New("sender is not the asset owner")
)

// Registry moves assets on behalf of a single operator, the escrow ledger.
// Transfers out of an owner other than the operator itself need the owner's
// approval for the operator.
type Registry struct {
	mu  sync.RWMutex
	log journal.Log

	operator  types.Identity
	owners    map[types.AssetRef]types.Identity
	approvals map[types.Identity]map[types.Identity]bool // owner -> operator -> approved
}

func New(operator types.Identity) *Registry {
	return &Registry{
		operator:  operator,
		owners:    make(map[types.AssetRef]types.Identity),
		approvals: make(map[types.Identity]map[types.Identity]bool),
	}
}

func (r *Registry) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Begin()
}

func (r *Registry) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Commit()
}

func (r *Registry) Rollback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Rollback()
}

// creates an asset owned by owner
func (r *Registry) Mint(owner types.Identity, ref types.AssetRef) error {
	if owner == "" || ref.Registry == "" || ref.Instance == "" {
		return fmt.Errorf("mint %s: owner, registry and instance are required", ref)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[ref]; exists {
		return fmt.Errorf("mint %s: %w", ref, ErrAssetExists)
	}
	r.setOwner(ref, owner)
	return nil
}

// grants or revokes operator's right to move every asset of owner
func (r *Registry) SetApproval(owner, operator types.Identity, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops, ok := r.approvals[owner]
	if !ok {
		ops = make(map[types.Identity]bool)
		r.approvals[owner] = ops
	}

	prev, had := ops[operator]
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}

	r.log.Record(func() {
		if had {
			ops[operator] = prev
		} else {
			delete(ops, operator)
		}
	})
}

func (r *Registry) IsApproved(owner, operator types.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approvals[owner][operator]
}

func (r *Registry) OwnerOf(ref types.AssetRef) (types.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[ref]
	if !ok {
		return "", fmt.Errorf("%s: %w", ref, ErrUnknownAsset)
	}
	return owner, nil
}

// moves ref from -> to, performed by the operator
func (r *Registry) Transfer(from, to types.Identity, ref types.AssetRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[ref]
	if !ok {
		return fmt.Errorf("%s: %w", ref, ErrUnknownAsset)
	}
	if owner != from {
		return fmt.Errorf("%s owned by %s, not %s: %w", ref, owner, from, ErrNotOwner)
	}
	if from != r.operator && !r.approvals[from][r.operator] {
		return fmt.Errorf("%s has not approved %s: %w", from, r.operator, types.ErrNotAuthorized)
	}

	r.setOwner(ref, to)
	return nil
}

func (r *Registry) setOwner(ref types.AssetRef, owner types.Identity) {
	prev, had := r.owners[ref]
	r.owners[ref] = owner
	r.log.Record(func() {
		if had {
			r.owners[ref] = prev
		} else {
			delete(r.owners, ref)
		}
	})
}

// assets currently owned by owner, sorted
func (r *Registry) AssetsOf(owner types.Identity) []types.AssetRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var refs []types.AssetRef
	for ref, o := range r.owners {
		if o == owner {
			refs = append(refs, ref)
		}
	}
	sortRefs(refs)
	return refs
}

type Ownership struct {
	Asset types.AssetRef `json:"asset"`
	Owner types.Identity `json:"owner"`
}

type Approval struct {
	Owner    types.Identity `json:"owner"`
	Operator types.Identity `json:"operator"`
}

// point-in-time copy of the registry, deterministic order
type State struct {
	Owners    []Ownership `json:"owners"`
	Approvals []Approval  `json:"approvals"`
}

func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := State{
		Owners:    make([]Ownership, 0, len(r.owners)),
		Approvals: []Approval{},
	}
	for ref, owner := range r.owners {
		st.Owners = append(st.Owners, Ownership{Asset: ref, Owner: owner})
	}
	sort.Slice(st.Owners, func(i, j int) bool {
		return lessRef(st.Owners[i].Asset, st.Owners[j].Asset)
	})

	for owner, ops := range r.approvals {
		for op, ok := range ops {
			if ok {
				st.Approvals = append(st.Approvals, Approval{Owner: owner, Operator: op})
			}
		}
	}
	sort.Slice(st.Approvals, func(i, j int) bool {
		a, b := st.Approvals[i], st.Approvals[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Operator < b.Operator
	})
	return st
}

func (r *Registry) Restore(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners = make(map[types.AssetRef]types.Identity, len(st.Owners))
	for _, o := range st.Owners {
		r.owners[o.Asset] = o.Owner
	}

	r.approvals = make(map[types.Identity]map[types.Identity]bool)
	for _, a := range st.Approvals {
		ops, ok := r.approvals[a.Owner]
		if !ok {
			ops = make(map[types.Identity]bool)
			r.approvals[a.Owner] = ops
		}
		ops[a.Operator] = true
	}
}

func sortRefs(refs []types.AssetRef) {
	sort.Slice(refs, func(i, j int) bool { return lessRef(refs[i], refs[j]) })
}

func lessRef(a, b types.AssetRef) bool {
	if a.Registry != b.Registry {
		return a.Registry < b.Registry
	}
	return a.Instance < b.Instance
}
