package escrow

import (
	"fmt"
	"time"

	"github.com/pixperk/escrowd/pkg/types"
)

// returned when listings are created
type ListResponse struct {
	ListingIDs []uint64
}

// returned when rentals are created
type RentResponse struct {
	RentalIDs []uint64
}

// returned when rentals are returned
type ReturnResponse struct {
	RentalIDs []uint64
}

// returned when collateral is claimed
type ClaimResponse struct {
	RentalIDs []uint64
}

// returned when listings are withdrawn
type DelistResponse struct {
	ListingIDs []uint64
}

// applies a command at the ledger clock's current time
func (l *Ledger) Apply(cmd types.Command) (any, error) {
	return l.ApplyAt(cmd, l.clock.Now())
}

// applies a command as if it ran at the given instant
// replicas use the time stamped by the leader so they all evaluate the
// rental window the same way
func (l *Ledger) ApplyAt(cmd types.Command, at time.Time) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch c := cmd.(type) {
	case types.ListCmd:
		ids, err := l.listMany(c.Lender, []types.ListTerms{c.Terms}, at)
		return listResponse(ids, err)
	case types.ListManyCmd:
		ids, err := l.listMany(c.Lender, c.Terms, at)
		return listResponse(ids, err)
	case types.RentCmd:
		ids, err := l.rentMany(c.Borrower, []types.RentTerms{{ListingID: c.ListingID, Duration: c.Duration}}, at)
		return rentResponse(ids, err)
	case types.RentManyCmd:
		ids, err := l.rentMany(c.Borrower, c.Rentals, at)
		return rentResponse(ids, err)
	case types.ReturnCmd:
		return l.applyReturn(c.Caller, []uint64{c.RentalID}, at)
	case types.ReturnManyCmd:
		return l.applyReturn(c.Caller, c.RentalIDs, at)
	case types.ClaimCmd:
		return l.applyClaim(c.Caller, []uint64{c.RentalID}, at)
	case types.ClaimManyCmd:
		return l.applyClaim(c.Caller, c.RentalIDs, at)
	case types.DelistCmd:
		return l.applyDelist(c.Caller, []uint64{c.ListingID}, at)
	case types.DelistManyCmd:
		return l.applyDelist(c.Caller, c.ListingIDs, at)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

func (l *Ledger) applyReturn(caller types.Identity, ids []uint64, at time.Time) (any, error) {
	if err := l.returnMany(caller, ids, at); err != nil {
		return nil, err
	}
	return ReturnResponse{RentalIDs: ids}, nil
}

func (l *Ledger) applyClaim(caller types.Identity, ids []uint64, at time.Time) (any, error) {
	if err := l.claimMany(caller, ids, at); err != nil {
		return nil, err
	}
	return ClaimResponse{RentalIDs: ids}, nil
}

func (l *Ledger) applyDelist(caller types.Identity, ids []uint64, at time.Time) (any, error) {
	if err := l.delistMany(caller, ids, at); err != nil {
		return nil, err
	}
	return DelistResponse{ListingIDs: ids}, nil
}

func listResponse(ids []uint64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return ListResponse{ListingIDs: ids}, nil
}

func rentResponse(ids []uint64, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return RentResponse{RentalIDs: ids}, nil
}
