package escrow

import (
	"fmt"
	"time"

	"github.com/pixperk/escrowd/pkg/types"
)

// ListMany lists every asset or none of them.
func (l *Ledger) ListMany(lender types.Identity, terms []types.ListTerms) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listMany(lender, terms, l.clock.Now())
}

// RentMany rents every listing or none of them. Each listing settles in its
// own payment asset.
func (l *Ledger) RentMany(borrower types.Identity, rentals []types.RentTerms) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rentMany(borrower, rentals, l.clock.Now())
}

// ReturnMany returns every rental or none of them.
func (l *Ledger) ReturnMany(caller types.Identity, rentalIDs []uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.returnMany(caller, rentalIDs, l.clock.Now())
}

// ClaimMany claims the collateral of every rental or of none of them.
func (l *Ledger) ClaimMany(caller types.Identity, rentalIDs []uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.claimMany(caller, rentalIDs, l.clock.Now())
}

// DelistMany delists every listing or none of them.
func (l *Ledger) DelistMany(caller types.Identity, listingIDs []uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delistMany(caller, listingIDs, l.clock.Now())
}

func (l *Ledger) listMany(lender types.Identity, terms []types.ListTerms, at time.Time) ([]uint64, error) {
	if len(terms) == 0 {
		return nil, types.ErrEmptyBatch
	}

	ids := make([]uint64, 0, len(terms))
	err := l.atomically(opName(types.CommandTypeList, len(terms)), at, func() error {
		for i, t := range terms {
			id, err := l.list(lender, t, at)
			if err != nil {
				return batchErr(i, len(terms), err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (l *Ledger) rentMany(borrower types.Identity, rentals []types.RentTerms, at time.Time) ([]uint64, error) {
	if len(rentals) == 0 {
		return nil, types.ErrEmptyBatch
	}

	ids := make([]uint64, 0, len(rentals))
	err := l.atomically(opName(types.CommandTypeRent, len(rentals)), at, func() error {
		for i, r := range rentals {
			id, err := l.rent(borrower, r.ListingID, r.Duration, at)
			if err != nil {
				return batchErr(i, len(rentals), err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (l *Ledger) returnMany(caller types.Identity, rentalIDs []uint64, at time.Time) error {
	return l.eachID(types.CommandTypeReturn, caller, rentalIDs, at, l.returnAsset)
}

func (l *Ledger) claimMany(caller types.Identity, rentalIDs []uint64, at time.Time) error {
	return l.eachID(types.CommandTypeClaim, caller, rentalIDs, at, l.claim)
}

func (l *Ledger) delistMany(caller types.Identity, listingIDs []uint64, at time.Time) error {
	return l.eachID(types.CommandTypeDelist, caller, listingIDs, at, l.delist)
}

// applies fn to every id inside one transaction
func (l *Ledger) eachID(typ types.CommandType, caller types.Identity, ids []uint64, at time.Time,
	fn func(types.Identity, uint64, time.Time) error) error {
	if len(ids) == 0 {
		return types.ErrEmptyBatch
	}

	return l.atomically(opName(typ, len(ids)), at, func() error {
		for i, id := range ids {
			if err := fn(caller, id, at); err != nil {
				return batchErr(i, len(ids), err)
			}
		}
		return nil
	})
}

func batchErr(i, n int, err error) error {
	if n == 1 {
		return err
	}
	return fmt.Errorf("batch item %d: %w", i, err)
}

func opName(single types.CommandType, n int) string {
	if n == 1 {
		return single.String()
	}
	return single.String() + "_many"
}
