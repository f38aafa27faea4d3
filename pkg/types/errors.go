package types

import "errors"

var (
	// lookup errors
	ErrNotFound = errors.New("not found")

	// caller is not the lender or borrower the operation requires
	ErrNotAuthorized = errors.New("not authorized")

	// listing errors
	ErrAlreadyBorrowed = errors.New("listing is already borrowed")
	ErrInvalidTerms    = errors.New("invalid listing terms")

	// duration errors
	ErrDurationExceeded = errors.New("duration exceeded")
	ErrInvalidDuration  = errors.New("invalid rental duration")
	ErrRentalNotExpired = errors.New("rental has not expired")

	// value errors
	ErrTransferFailed = errors.New("transfer failed")
	ErrAmountOverflow = errors.New("amount overflow")

	ErrEmptyBatch = errors.New("empty batch")
)
