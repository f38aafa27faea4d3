// Package escrow is the rental escrow ledger.
//
// The ledger records listings, takes custody of listed assets, collects fees
// and collateral for rentals and settles every rental either by a timely
// return (collateral back to the borrower) or by a default claim (collateral
// to the lender). Every operation is atomic across the listing and rental
// stores and both external adapters: on any failure every staged write is
// rolled back and the caller gets the error.
package escrow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/pixperk/escrowd/pkg/clock"
	"github.com/pixperk/escrowd/pkg/journal"
	"github.com/pixperk/escrowd/pkg/store"
	"github.com/pixperk/escrowd/pkg/types"
)

// Transactional state can be rolled back as part of a ledger operation.
type Transactional interface {
	Begin()
	Commit()
	Rollback()
}

// AssetRegistry custodies the unique assets being rented.
type AssetRegistry interface {
	Transactional
	OwnerOf(ref types.AssetRef) (types.Identity, error)
	Transfer(from, to types.Identity, ref types.AssetRef) error
}

// PaymentLedger moves fee and collateral value. TransferFrom pulls from an
// owner who authorized the ledger, Transfer pays out of the ledger's account.
type PaymentLedger interface {
	Transactional
	TransferFrom(owner, recipient types.Identity, amount types.Amount, asset types.AssetID) error
	Transfer(recipient types.Identity, amount types.Amount, asset types.AssetID) error
	BalanceOf(holder types.Identity, asset types.AssetID) types.Amount
}

// EventSink receives the events of every committed operation, in order.
type EventSink interface {
	Publish(ctx context.Context, events []types.Event) error
}

type Ledger struct {
	mu  sync.RWMutex
	log journal.Log // undo records for escrowed totals

	self     types.Identity
	registry AssetRegistry
	payments PaymentLedger

	listings *store.ListingStore
	rentals  *store.RentalStore

	escrowed map[types.AssetID]types.Amount //collateral held per payment asset
	eventSeq uint64
	pending  []types.Event

	clock  clock.Clock
	sink   EventSink
	logger *slog.Logger
}

type Option func(*Ledger)

// WithClock sets the clock used by operations that are not given a time.
// DEFAULT: the system clock
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEventSink sets where committed events are published.
func WithEventSink(sink EventSink) Option {
	return func(l *Ledger) {
		l.sink = sink
	}
}

// New creates a ledger whose escrow account is self.
func New(self types.Identity, registry AssetRegistry, payments PaymentLedger, opts ...Option) *Ledger {
	l := &Ledger{
		self:     self,
		registry: registry,
		payments: payments,
		listings: store.NewListingStore(),
		rentals:  store.NewRentalStore(),
		escrowed: make(map[types.AssetID]types.Amount),
		clock:    clock.System{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Self is the identity holding custody and collateral.
func (l *Ledger) Self() types.Identity {
	return l.self
}

// List takes custody of an asset and creates an available listing.
func (l *Ledger) List(lender types.Identity, terms types.ListTerms) (uint64, error) {
	ids, err := l.ListMany(lender, []types.ListTerms{terms})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// Rent borrows a listing for duration days, paying the full fee up front and
// moving the collateral into escrow.
func (l *Ledger) Rent(borrower types.Identity, listingID uint64, duration uint32) (uint64, error) {
	ids, err := l.RentMany(borrower, []types.RentTerms{{ListingID: listingID, Duration: duration}})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// ReturnAsset closes a rental inside its window and refunds the collateral.
func (l *Ledger) ReturnAsset(caller types.Identity, rentalID uint64) error {
	return l.ReturnMany(caller, []uint64{rentalID})
}

// ClaimCollateral closes an expired rental and pays its collateral to the lender.
func (l *Ledger) ClaimCollateral(caller types.Identity, rentalID uint64) error {
	return l.ClaimMany(caller, []uint64{rentalID})
}

// Delist gives the asset of an unborrowed listing back to its lender.
func (l *Ledger) Delist(caller types.Identity, listingID uint64) error {
	return l.DelistMany(caller, []uint64{listingID})
}

func (l *Ledger) list(lender types.Identity, terms types.ListTerms, at time.Time) (uint64, error) {
	if lender == "" {
		return 0, fmt.Errorf("list: empty lender: %w", types.ErrNotAuthorized)
	}
	if lender == l.self {
		return 0, fmt.Errorf("list: escrow account %s cannot lend: %w", lender, types.ErrNotAuthorized)
	}
	if err := validateTerms(terms); err != nil {
		return 0, err
	}

	if err := l.registry.Transfer(lender, l.self, terms.Asset); err != nil {
		return 0, fmt.Errorf("take custody of %s: %w: %w", terms.Asset, types.ErrTransferFailed, err)
	}

	listing := types.Listing{
		Lender:       lender,
		Asset:        terms.Asset,
		DailyPrice:   terms.DailyPrice,
		MaxDuration:  terms.MaxDuration,
		Collateral:   terms.Collateral,
		PaymentAsset: terms.PaymentAsset,
	}
	listing.ID = l.listings.Create(listing)

	l.emit(types.Event{Kind: types.EventListingCreated, At: at, Listing: &listing})
	return listing.ID, nil
}

func (l *Ledger) rent(borrower types.Identity, listingID uint64, duration uint32, at time.Time) (uint64, error) {
	if borrower == "" {
		return 0, fmt.Errorf("rent: empty borrower: %w", types.ErrNotAuthorized)
	}
	if borrower == l.self {
		return 0, fmt.Errorf("rent: escrow account %s cannot borrow: %w", borrower, types.ErrNotAuthorized)
	}

	listing, err := l.listings.Get(listingID)
	if err != nil {
		return 0, err
	}
	if active, ok := l.rentals.ActiveFor(listingID); listing.IsBorrowed || ok {
		return 0, fmt.Errorf("listing %d held by rental %d: %w", listingID, active.ID, types.ErrAlreadyBorrowed)
	}
	if duration == 0 {
		return 0, fmt.Errorf("rent listing %d for 0 days: %w", listingID, types.ErrInvalidDuration)
	}
	if duration > listing.MaxDuration {
		return 0, fmt.Errorf("rent listing %d for %d days, max is %d: %w",
			listingID, duration, listing.MaxDuration, types.ErrDurationExceeded)
	}
	//listings restored from older state may predate the cap
	if duration > types.MaxRentalDays {
		return 0, fmt.Errorf("rent listing %d for %d days, cap is %d: %w",
			listingID, duration, types.MaxRentalDays, types.ErrInvalidDuration)
	}

	fee, err := feeFor(listing.DailyPrice, duration)
	if err != nil {
		return 0, err
	}

	//fee is paid up front, straight to the lender
	if err := l.payments.TransferFrom(borrower, listing.Lender, fee, listing.PaymentAsset); err != nil {
		return 0, fmt.Errorf("pay fee for listing %d: %w: %w", listingID, types.ErrTransferFailed, err)
	}
	if err := l.payments.TransferFrom(borrower, l.self, listing.Collateral, listing.PaymentAsset); err != nil {
		return 0, fmt.Errorf("escrow collateral for listing %d: %w: %w", listingID, types.ErrTransferFailed, err)
	}
	if err := l.addEscrowed(listing.PaymentAsset, listing.Collateral); err != nil {
		return 0, err
	}

	rental := types.Rental{
		ListingID: listingID,
		Borrower:  borrower,
		Duration:  duration,
		StartedAt: at,
	}
	rental.ID = l.rentals.Create(rental)

	if err := l.listings.SetBorrowed(listingID, true); err != nil {
		return 0, err
	}
	listing.IsBorrowed = true

	l.emit(types.Event{Kind: types.EventRentalCreated, At: at, Rental: &rental})
	l.emit(types.Event{Kind: types.EventListingBorrowed, At: at, Listing: &listing})
	return rental.ID, nil
}

func (l *Ledger) returnAsset(caller types.Identity, rentalID uint64, at time.Time) error {
	rental, err := l.rentals.Get(rentalID)
	if err != nil {
		return err
	}
	if caller != rental.Borrower {
		return fmt.Errorf("return rental %d: %s is not the borrower: %w", rentalID, caller, types.ErrNotAuthorized)
	}
	if !rental.IsTimely(at) {
		return fmt.Errorf("return rental %d due at %s: %w", rentalID, rental.DueAt().Format(time.RFC3339), types.ErrDurationExceeded)
	}

	return l.settle(rental, rental.Borrower, types.EventRentalReturned, at)
}

func (l *Ledger) claim(caller types.Identity, rentalID uint64, at time.Time) error {
	rental, err := l.rentals.Get(rentalID)
	if err != nil {
		return err
	}
	listing, err := l.listings.Get(rental.ListingID)
	if err != nil {
		return err
	}
	if caller != listing.Lender {
		return fmt.Errorf("claim rental %d: %s is not the lender: %w", rentalID, caller, types.ErrNotAuthorized)
	}
	if rental.IsTimely(at) {
		return fmt.Errorf("claim rental %d due at %s: %w", rentalID, rental.DueAt().Format(time.RFC3339), types.ErrRentalNotExpired)
	}

	return l.settle(rental, listing.Lender, types.EventRentalClaimed, at)
}

// releases the collateral of rental to recipient and closes the rental
func (l *Ledger) settle(rental types.Rental, recipient types.Identity, kind types.EventKind, at time.Time) error {
	listing, err := l.listings.Get(rental.ListingID)
	if err != nil {
		return err
	}

	if err := l.payments.Transfer(recipient, listing.Collateral, listing.PaymentAsset); err != nil {
		return fmt.Errorf("release collateral of rental %d: %w: %w", rental.ID, types.ErrTransferFailed, err)
	}
	l.subEscrowed(listing.PaymentAsset, listing.Collateral)

	if err := l.rentals.Clear(rental.ID); err != nil {
		return err
	}
	if err := l.listings.SetBorrowed(listing.ID, false); err != nil {
		return err
	}
	listing.IsBorrowed = false

	prev := rental
	l.emit(types.Event{Kind: kind, At: at, Rental: &types.Rental{ID: rental.ID}, Previous: &prev})
	l.emit(types.Event{Kind: types.EventListingReleased, At: at, Listing: &listing})
	return nil
}

func (l *Ledger) delist(caller types.Identity, listingID uint64, at time.Time) error {
	listing, err := l.listings.Get(listingID)
	if err != nil {
		return err
	}
	if caller != listing.Lender {
		return fmt.Errorf("delist listing %d: %s is not the lender: %w", listingID, caller, types.ErrNotAuthorized)
	}
	if listing.IsBorrowed {
		return fmt.Errorf("delist listing %d: %w", listingID, types.ErrAlreadyBorrowed)
	}

	if err := l.registry.Transfer(l.self, listing.Lender, listing.Asset); err != nil {
		return fmt.Errorf("return custody of %s: %w: %w", listing.Asset, types.ErrTransferFailed, err)
	}
	if err := l.listings.Clear(listingID); err != nil {
		return err
	}

	l.emit(types.Event{Kind: types.EventListingDelisted, At: at, Listing: &types.Listing{ID: listingID}})
	return nil
}

// runs fn as one unit: every journal commits or every journal rolls back
// must be called with l.mu held
func (l *Ledger) atomically(op string, at time.Time, fn func() error) error {
	journals := []Transactional{l.listings, l.rentals, &l.log, l.registry, l.payments}
	for _, j := range journals {
		j.Begin()
	}
	l.pending = l.pending[:0]

	if err := fn(); err != nil {
		for _, j := range journals {
			j.Rollback()
		}
		l.pending = l.pending[:0]
		l.logger.Debug("operation rolled back", "op", op, "error", err)
		return err
	}

	for _, j := range journals {
		j.Commit()
	}

	events := make([]types.Event, len(l.pending))
	for i, ev := range l.pending {
		l.eventSeq++
		ev.Seq = l.eventSeq
		events[i] = ev
	}
	l.pending = l.pending[:0]

	l.logger.Debug("operation committed", "op", op, "events", len(events), "at", at)
	l.publish(events)
	return nil
}

func (l *Ledger) emit(ev types.Event) {
	l.pending = append(l.pending, ev)
}

func (l *Ledger) publish(events []types.Event) {
	if l.sink == nil || len(events) == 0 {
		return
	}
	//state is already committed, a sink failure cannot undo it
	if err := l.sink.Publish(context.Background(), events); err != nil {
		l.logger.Warn("failed to publish events",
			"first_seq", events[0].Seq,
			"count", len(events),
			"error", err,
		)
	}
}

func (l *Ledger) addEscrowed(asset types.AssetID, amount types.Amount) error {
	prev := l.escrowed[asset]
	if prev > math.MaxUint64-amount {
		return fmt.Errorf("escrow %d %s: %w", amount, asset, types.ErrAmountOverflow)
	}
	l.setEscrowed(asset, prev+amount)
	return nil
}

func (l *Ledger) subEscrowed(asset types.AssetID, amount types.Amount) {
	l.setEscrowed(asset, l.escrowed[asset]-amount)
}

func (l *Ledger) setEscrowed(asset types.AssetID, v types.Amount) {
	prev, had := l.escrowed[asset]
	if v == 0 {
		delete(l.escrowed, asset)
	} else {
		l.escrowed[asset] = v
	}
	l.log.Record(func() {
		if had {
			l.escrowed[asset] = prev
		} else {
			delete(l.escrowed, asset)
		}
	})
}

func validateTerms(terms types.ListTerms) error {
	if terms.Asset.Registry == "" || terms.Asset.Instance == "" {
		return fmt.Errorf("asset registry and instance are required: %w", types.ErrInvalidTerms)
	}
	if terms.PaymentAsset == "" {
		return fmt.Errorf("payment asset is required: %w", types.ErrInvalidTerms)
	}
	if terms.MaxDuration == 0 {
		return fmt.Errorf("max duration must be at least one day: %w", types.ErrInvalidTerms)
	}
	if terms.MaxDuration > types.MaxRentalDays {
		return fmt.Errorf("max duration %d exceeds %d days: %w", terms.MaxDuration, types.MaxRentalDays, types.ErrInvalidTerms)
	}
	return nil
}

// duration * daily price, overflow checked
func feeFor(dailyPrice types.Amount, duration uint32) (types.Amount, error) {
	d := types.Amount(duration)
	if dailyPrice != 0 && d > math.MaxUint64/dailyPrice {
		return 0, fmt.Errorf("fee of %d days at %d: %w", duration, dailyPrice, types.ErrAmountOverflow)
	}
	return dailyPrice * d, nil
}
