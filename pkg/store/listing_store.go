// Package store holds the listing and rental arenas of the escrow ledger.
//
// Both stores are append-only slices of slots. A slot is either populated or
// zeroed, and its index (plus one) is a permanent handle that is never reused.
// Stores are not safe for concurrent use, the ledger serializes all access.
package store

import (
	"fmt"

	"github.com/pixperk/escrowd/pkg/journal"
	"github.com/pixperk/escrowd/pkg/types"
)

type ListingStore struct {
	journal.Log

	slots  []types.Listing
	active int
}

func NewListingStore() *ListingStore {
	return &ListingStore{}
}

// appends a listing and returns its ID, IDs start at 1
func (s *ListingStore) Create(l types.Listing) uint64 {
	l.ID = uint64(len(s.slots)) + 1
	s.slots = append(s.slots, l)
	s.active++

	n := len(s.slots) - 1
	s.Record(func() {
		s.slots = s.slots[:n]
		s.active--
	})
	return l.ID
}

// returns a copy of the listing, zeroed or unknown IDs are not found
func (s *ListingStore) Get(id uint64) (types.Listing, error) {
	slot, err := s.slot(id)
	if err != nil {
		return types.Listing{}, err
	}
	return *slot, nil
}

func (s *ListingStore) SetBorrowed(id uint64, borrowed bool) error {
	slot, err := s.slot(id)
	if err != nil {
		return err
	}

	prev := slot.IsBorrowed
	slot.IsBorrowed = borrowed
	s.Record(func() { s.slots[id-1].IsBorrowed = prev })
	return nil
}

// zeroes the listing, the slot stays so the ID is never reissued
func (s *ListingStore) Clear(id uint64) error {
	slot, err := s.slot(id)
	if err != nil {
		return err
	}

	prev := *slot
	*slot = types.Listing{}
	s.active--
	s.Record(func() {
		s.slots[id-1] = prev
		s.active++
	})
	return nil
}

// number of listings ever created, zeroed ones included
func (s *ListingStore) Count() uint64 {
	return uint64(len(s.slots))
}

// number of listings that are not zeroed
func (s *ListingStore) Active() int {
	return s.active
}

// calls fn for every live listing in ID order until fn returns false
func (s *ListingStore) Each(fn func(types.Listing) bool) {
	for i := range s.slots {
		if s.slots[i].IsZero() {
			continue
		}
		if !fn(s.slots[i]) {
			return
		}
	}
}

func (s *ListingStore) slot(id uint64) (*types.Listing, error) {
	if id == 0 || id > uint64(len(s.slots)) {
		return nil, fmt.Errorf("listing %d: %w", id, types.ErrNotFound)
	}
	slot := &s.slots[id-1]
	if slot.IsZero() {
		return nil, fmt.Errorf("listing %d: %w", id, types.ErrNotFound)
	}
	return slot, nil
}

// copies every slot, tombstones included
func (s *ListingStore) Slots() []types.Listing {
	out := make([]types.Listing, len(s.slots))
	copy(out, s.slots)
	return out
}

// replaces the whole arena, used when restoring a snapshot
func (s *ListingStore) Restore(slots []types.Listing) {
	s.slots = make([]types.Listing, len(slots))
	copy(s.slots, slots)

	s.active = 0
	for i := range s.slots {
		if !s.slots[i].IsZero() {
			s.active++
		}
	}
}
