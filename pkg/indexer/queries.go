package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pixperk/escrowd/pkg/types"
)

// a listing as seen by readers, delisted ones stay for history
type ListingRecord struct {
	types.Listing
	Delisted  bool
	CreatedAt time.Time
}

type RentalRecord struct {
	types.Rental
	DueAt    time.Time
	Status   string
	ClosedAt *time.Time
}

// the ids an identity lent and borrowed
type Activity struct {
	Lending   []uint64
	Borrowing []uint64
}

const listingColumns = `id, lender, registry, instance, daily_price, max_duration, collateral, payment_asset, is_borrowed, delisted, created_at`

const rentalColumns = `id, listing_id, borrower, duration, started_at, due_at, status, closed_at`

var (
	listingsByLenderSQL = `
SELECT ` + listingColumns + `
FROM listings
WHERE lender = $1
ORDER BY id ASC;`

	availableListingsSQL = `
SELECT ` + listingColumns + `
FROM listings
WHERE is_borrowed = FALSE AND delisted = FALSE
ORDER BY id ASC
LIMIT $1;`

	availableListingsByAssetSQL = `
SELECT ` + listingColumns + `
FROM listings
WHERE is_borrowed = FALSE AND delisted = FALSE AND payment_asset = $1
ORDER BY id ASC
LIMIT $2;`

	rentalsByBorrowerSQL = `
SELECT ` + rentalColumns + `
FROM rentals
WHERE borrower = $1
ORDER BY id ASC;`

	activitySQL = `
SELECT role, entity_id
FROM user_activity
WHERE identity = $1
ORDER BY entity_id ASC;`
)

// ListingsByLender returns every listing a lender ever created.
func (p *Projector) ListingsByLender(ctx context.Context, lender types.Identity) ([]ListingRecord, error) {
	rows, err := p.db.QueryContext(ctx, p.q(listingsByLenderSQL), string(lender))
	if err != nil {
		return nil, fmt.Errorf("failed to list listings of %s: %w", lender, err)
	}
	return scanListings(rows)
}

// AvailableListings returns listings that can be rented right now,
// optionally only those priced in paymentAsset. limit <= 0 means 100.
func (p *Projector) AvailableListings(ctx context.Context, paymentAsset types.AssetID, limit int) ([]ListingRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		rows *sql.Rows
		err  error
	)
	if paymentAsset == "" {
		rows, err = p.db.QueryContext(ctx, p.q(availableListingsSQL), limit)
	} else {
		rows, err = p.db.QueryContext(ctx, p.q(availableListingsByAssetSQL), string(paymentAsset), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list available listings: %w", err)
	}
	return scanListings(rows)
}

// RentalsByBorrower returns every rental of a borrower, open or closed.
func (p *Projector) RentalsByBorrower(ctx context.Context, borrower types.Identity) ([]RentalRecord, error) {
	rows, err := p.db.QueryContext(ctx, p.q(rentalsByBorrowerSQL), string(borrower))
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals of %s: %w", borrower, err)
	}
	defer rows.Close()

	var rentals []RentalRecord
	for rows.Next() {
		var (
			r                RentalRecord
			who              string
			startedAt, dueAt int64
			closedAt         sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ListingID, &who, &r.Duration, &startedAt, &dueAt, &r.Status, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		r.Borrower = types.Identity(who)
		r.StartedAt = time.Unix(0, startedAt).UTC()
		r.DueAt = time.Unix(0, dueAt).UTC()
		if closedAt.Valid {
			t := time.Unix(0, closedAt.Int64).UTC()
			r.ClosedAt = &t
		}
		rentals = append(rentals, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return rentals, nil
}

// UserActivity lists what an identity has lent and borrowed.
func (p *Projector) UserActivity(ctx context.Context, who types.Identity) (Activity, error) {
	rows, err := p.db.QueryContext(ctx, p.q(activitySQL), string(who))
	if err != nil {
		return Activity{}, fmt.Errorf("failed to get activity of %s: %w", who, err)
	}
	defer rows.Close()

	var a Activity
	for rows.Next() {
		var (
			role string
			id   uint64
		)
		if err := rows.Scan(&role, &id); err != nil {
			return Activity{}, fmt.Errorf("failed to scan activity: %w", err)
		}
		switch role {
		case RoleLender:
			a.Lending = append(a.Lending, id)
		case RoleBorrower:
			a.Borrowing = append(a.Borrowing, id)
		}
	}

	if err := rows.Err(); err != nil {
		return Activity{}, fmt.Errorf("row iteration error: %w", err)
	}
	return a, nil
}

func scanListings(rows *sql.Rows) ([]ListingRecord, error) {
	defer rows.Close()

	var listings []ListingRecord
	for rows.Next() {
		var (
			l                                                    ListingRecord
			lender, registry, instance, price, collateral, asset string
			createdAt                                            int64
		)
		err := rows.Scan(&l.ID, &lender, &registry, &instance, &price, &l.MaxDuration,
			&collateral, &asset, &l.IsBorrowed, &l.Delisted, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		l.Lender = types.Identity(lender)
		l.Asset = types.AssetRef{Registry: types.RegistryID(registry), Instance: types.InstanceID(instance)}
		l.PaymentAsset = types.AssetID(asset)
		l.CreatedAt = time.Unix(0, createdAt).UTC()
		if l.DailyPrice, err = parseAmount(price); err != nil {
			return nil, err
		}
		if l.Collateral, err = parseAmount(collateral); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return listings, nil
}
