package store

import (
	"fmt"

	"github.com/pixperk/escrowd/pkg/journal"
	"github.com/pixperk/escrowd/pkg/types"
)

type RentalStore struct {
	journal.Log

	slots  []types.Rental
	active int

	byListing map[uint64]uint64 //listing ID -> active rental ID
}

func NewRentalStore() *RentalStore {
	return &RentalStore{
		byListing: make(map[uint64]uint64),
	}
}

// appends a rental and returns its ID, IDs start at 1
func (s *RentalStore) Create(r types.Rental) uint64 {
	r.ID = uint64(len(s.slots)) + 1
	s.slots = append(s.slots, r)
	s.active++

	prev, hadPrev := s.byListing[r.ListingID]
	s.byListing[r.ListingID] = r.ID

	n := len(s.slots) - 1
	s.Record(func() {
		s.slots = s.slots[:n]
		s.active--
		if hadPrev {
			s.byListing[r.ListingID] = prev
		} else {
			delete(s.byListing, r.ListingID)
		}
	})
	return r.ID
}

func (s *RentalStore) Get(id uint64) (types.Rental, error) {
	slot, err := s.slot(id)
	if err != nil {
		return types.Rental{}, err
	}
	return *slot, nil
}

// zeroes a rental, closing it for good
func (s *RentalStore) Clear(id uint64) error {
	slot, err := s.slot(id)
	if err != nil {
		return err
	}

	prev := *slot
	*slot = types.Rental{}
	s.active--

	indexed := s.byListing[prev.ListingID] == id
	if indexed {
		delete(s.byListing, prev.ListingID)
	}

	s.Record(func() {
		s.slots[id-1] = prev
		s.active++
		if indexed {
			s.byListing[prev.ListingID] = id
		}
	})
	return nil
}

// active rental against a listing, if any
func (s *RentalStore) ActiveFor(listingID uint64) (types.Rental, bool) {
	id, ok := s.byListing[listingID]
	if !ok {
		return types.Rental{}, false
	}
	return s.slots[id-1], true
}

func (s *RentalStore) Count() uint64 {
	return uint64(len(s.slots))
}

func (s *RentalStore) Active() int {
	return s.active
}

// calls fn for every active rental in ID order until fn returns false
func (s *RentalStore) Each(fn func(types.Rental) bool) {
	for i := range s.slots {
		if s.slots[i].IsZero() {
			continue
		}
		if !fn(s.slots[i]) {
			return
		}
	}
}

func (s *RentalStore) slot(id uint64) (*types.Rental, error) {
	if id == 0 || id > uint64(len(s.slots)) {
		return nil, fmt.Errorf("rental %d: %w", id, types.ErrNotFound)
	}
	slot := &s.slots[id-1]
	if slot.IsZero() {
		return nil, fmt.Errorf("rental %d: %w", id, types.ErrNotFound)
	}
	return slot, nil
}

func (s *RentalStore) Slots() []types.Rental {
	out := make([]types.Rental, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *RentalStore) Restore(slots []types.Rental) {
	s.slots = make([]types.Rental, len(slots))
	copy(s.slots, slots)

	s.active = 0
	s.byListing = make(map[uint64]uint64)
	for i := range s.slots {
		if s.slots[i].IsZero() {
			continue
		}
		s.active++
		s.byListing[s.slots[i].ListingID] = s.slots[i].ID
	}
}
