package types

import (
	"strconv"
	"time"
)

// what happened to the entity carried by an event
type EventKind string

const (
	EventListingCreated  EventKind = "listing.created"
	EventListingBorrowed EventKind = "listing.borrowed"
	EventListingReleased EventKind = "listing.released"
	EventListingDelisted EventKind = "listing.delisted"
	EventRentalCreated   EventKind = "rental.created"
	EventRentalReturned  EventKind = "rental.returned"
	EventRentalClaimed   EventKind = "rental.claimed"
)

// one record per entity mutated by a committed operation
// Listing and Rental carry the post-mutation values, a delisted listing or a
// closed rental is therefore reported zeroed apart from its ID
type Event struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	At       time.Time `json:"at"`
	Listing  *Listing  `json:"listing,omitempty"`
	Rental   *Rental   `json:"rental,omitempty"`
	Previous *Rental   `json:"previous,omitempty"` //rental as it was before it closed
}

// id of the entity the event is about, used as partition key
func (e Event) EntityKey() string {
	switch {
	case e.Listing != nil:
		return "listing:" + strconv.FormatUint(e.Listing.ID, 10)
	case e.Rental != nil:
		return "rental:" + strconv.FormatUint(e.Rental.ID, 10)
	default:
		return ""
	}
}
