package types

import "time"

const Day = 24 * time.Hour

// MaxRentalDays bounds listing and rental durations, a due date must stay
// within what time.Duration can add to the start time
const MaxRentalDays = 36500

// a rental is one borrowing episode against a listing
// it is either active or closed (zeroed), nothing in between
type Rental struct {
	ID        uint64    `json:"id"`
	ListingID uint64    `json:"listing_id"`
	Borrower  Identity  `json:"borrower"`
	Duration  uint32    `json:"duration"` //days agreed for this rental
	StartedAt time.Time `json:"started_at"`
}

func (r *Rental) IsZero() bool {
	return r.Borrower == "" && r.ListingID == 0
}

// the instant the rental window closes
func (r *Rental) DueAt() time.Time {
	return r.StartedAt.Add(time.Duration(r.Duration) * Day)
}

// timeliness predicate, once false only a collateral claim is possible
func (r *Rental) IsTimely(now time.Time) bool {
	return now.Before(r.DueAt())
}
