package escrow

import "github.com/pixperk/escrowd/pkg/types"

// point-in-time copy of the ledger's own state
// adapters snapshot themselves
type State struct {
	Listings []types.Listing `json:"listings"`
	Rentals  []types.Rental  `json:"rentals"`
	EventSeq uint64          `json:"event_seq"`
}

func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return State{
		Listings: l.listings.Slots(),
		Rentals:  l.rentals.Slots(),
		EventSeq: l.eventSeq,
	}
}

// replaces the ledger state, escrowed totals are rebuilt from active rentals
func (l *Ledger) Restore(st State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listings.Restore(st.Listings)
	l.rentals.Restore(st.Rentals)
	l.eventSeq = st.EventSeq

	l.escrowed = make(map[types.AssetID]types.Amount)
	l.rentals.Each(func(r types.Rental) bool {
		if listing, err := l.listings.Get(r.ListingID); err == nil {
			l.escrowed[listing.PaymentAsset] += listing.Collateral
		}
		return true
	})
}
