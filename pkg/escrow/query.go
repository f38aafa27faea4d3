package escrow

import (
	"errors"
	"fmt"

	"github.com/pixperk/escrowd/pkg/types"
)

// returns a listing, zeroed or unknown IDs are not found
func (l *Ledger) GetListing(id uint64) (types.Listing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listings.Get(id)
}

// returns an active rental, closed or unknown IDs are not found
func (l *Ledger) GetRental(id uint64) (types.Rental, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rentals.Get(id)
}

// number of listings ever created
func (l *Ledger) ListingCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listings.Count()
}

// number of rentals ever created
func (l *Ledger) RentalCount() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rentals.Count()
}

// live listings in ID order
func (l *Ledger) Listings() []types.Listing {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.Listing
	l.listings.Each(func(listing types.Listing) bool {
		out = append(out, listing)
		return true
	})
	return out
}

// active rentals in ID order
func (l *Ledger) Rentals() []types.Rental {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.Rental
	l.rentals.Each(func(r types.Rental) bool {
		out = append(out, r)
		return true
	})
	return out
}

// current ledger stats
type Stats struct {
	ActiveListings int
	ActiveRentals  int
	ListingCount   uint64
	RentalCount    uint64
	Escrowed       map[types.AssetID]types.Amount
	EventSeq       uint64
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	escrowed := make(map[types.AssetID]types.Amount, len(l.escrowed))
	for asset, amount := range l.escrowed {
		escrowed[asset] = amount
	}

	return Stats{
		ActiveListings: l.listings.Active(),
		ActiveRentals:  l.rentals.Active(),
		ListingCount:   l.listings.Count(),
		RentalCount:    l.rentals.Count(),
		Escrowed:       escrowed,
		EventSeq:       l.eventSeq,
	}
}

// verifies the ledger invariants against the stores and both adapters:
//   - a listing is borrowed iff exactly one active rental references it
//   - the ledger has custody of every listed asset
//   - every active rental respects its listing's max duration
//   - the escrow account holds at least the collateral of every active rental
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		errs     []error
		held     = make(map[types.AssetID]types.Amount)
		referred = make(map[uint64]int)
	)

	l.rentals.Each(func(r types.Rental) bool {
		referred[r.ListingID]++
		listing, err := l.listings.Get(r.ListingID)
		if err != nil {
			errs = append(errs, fmt.Errorf("rental %d references missing listing %d", r.ID, r.ListingID))
			return true
		}
		if r.Duration > listing.MaxDuration {
			errs = append(errs, fmt.Errorf("rental %d runs %d days, listing %d allows %d", r.ID, r.Duration, listing.ID, listing.MaxDuration))
		}
		held[listing.PaymentAsset] += listing.Collateral
		return true
	})

	l.listings.Each(func(listing types.Listing) bool {
		if n := referred[listing.ID]; listing.IsBorrowed != (n == 1) || n > 1 {
			errs = append(errs, fmt.Errorf("listing %d borrowed=%t with %d active rentals", listing.ID, listing.IsBorrowed, n))
		}
		if r, ok := l.rentals.ActiveFor(listing.ID); ok != listing.IsBorrowed || (ok && r.ListingID != listing.ID) {
			errs = append(errs, fmt.Errorf("listing %d borrowed=%t but rental index has %d", listing.ID, listing.IsBorrowed, r.ID))
		}
		owner, err := l.registry.OwnerOf(listing.Asset)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %d: %w", listing.ID, err))
		} else if owner != l.self {
			errs = append(errs, fmt.Errorf("listing %d asset %s held by %s", listing.ID, listing.Asset, owner))
		}
		return true
	})

	for asset, amount := range held {
		if l.escrowed[asset] != amount {
			errs = append(errs, fmt.Errorf("escrowed %s tracked as %d, rentals hold %d", asset, l.escrowed[asset], amount))
		}
		if bal := l.payments.BalanceOf(l.self, asset); bal < amount {
			errs = append(errs, fmt.Errorf("escrow account holds %d %s, rentals need %d", bal, asset, amount))
		}
	}

	return errors.Join(errs...)
}
