package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/pixperk/escrowd/pkg/types"
)

const (
	RoleLender   = "lender"
	RoleBorrower = "borrower"

	StatusActive   = "active"
	StatusReturned = "returned"
	StatusClaimed  = "claimed"
)

// Projector applies events to the read tables and answers queries on them.
// Every row remembers the sequence of the last event applied to it, so
// redelivered or reordered events never move a row backwards.
type Projector struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

func NewProjector(db *sql.DB, driver string, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Projector{db: db, driver: driver, logger: logger}
}

var (
	upsertListingSQL = `
INSERT INTO listings (id, lender, registry, instance, daily_price, max_duration, collateral, payment_asset, is_borrowed, delisted, created_at, updated_seq)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11)
ON CONFLICT (id)
DO UPDATE SET
    is_borrowed = EXCLUDED.is_borrowed,
    updated_seq = EXCLUDED.updated_seq
WHERE listings.updated_seq < EXCLUDED.updated_seq;`

	delistSQL = `
UPDATE listings
SET delisted = TRUE, is_borrowed = FALSE, updated_seq = $2
WHERE id = $1 AND updated_seq < $2;`

	upsertRentalSQL = `
INSERT INTO rentals (id, listing_id, borrower, duration, started_at, due_at, status, closed_at, updated_seq)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id)
DO UPDATE SET
    status = EXCLUDED.status,
    closed_at = EXCLUDED.closed_at,
    updated_seq = EXCLUDED.updated_seq
WHERE rentals.updated_seq < EXCLUDED.updated_seq;`

	addActivitySQL = `
INSERT INTO user_activity (identity, role, entity_id, at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity, role, entity_id) DO NOTHING;`

	setLastSeqSQL = `
INSERT INTO indexer_state (id, last_seq)
VALUES (1, $1)
ON CONFLICT (id)
DO UPDATE SET last_seq = EXCLUDED.last_seq
WHERE indexer_state.last_seq < EXCLUDED.last_seq;`

	getLastSeqSQL = `
SELECT last_seq FROM indexer_state WHERE id = 1;`
)

// Apply projects one event inside a transaction.
func (p *Projector) Apply(ctx context.Context, ev types.Event) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := p.apply(ctx, tx, ev); err != nil {
		return fmt.Errorf("project event %d (%s): %w", ev.Seq, ev.Kind, err)
	}
	if _, err := tx.ExecContext(ctx, p.q(setLastSeqSQL), ev.Seq); err != nil {
		return fmt.Errorf("failed to record seq %d: %w", ev.Seq, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event %d: %w", ev.Seq, err)
	}
	return nil
}

func (p *Projector) apply(ctx context.Context, db DBTX, ev types.Event) error {
	at := ev.At.UnixNano()

	switch ev.Kind {
	case types.EventListingCreated, types.EventListingBorrowed, types.EventListingReleased:
		l := ev.Listing
		if l == nil {
			return fmt.Errorf("missing listing")
		}
		_, err := db.ExecContext(ctx, p.q(upsertListingSQL),
			l.ID, string(l.Lender), string(l.Asset.Registry), string(l.Asset.Instance),
			formatAmount(l.DailyPrice), l.MaxDuration, formatAmount(l.Collateral), string(l.PaymentAsset),
			l.IsBorrowed, at, ev.Seq,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert listing: %w", err)
		}
		if ev.Kind == types.EventListingCreated {
			return p.addActivity(ctx, db, l.Lender, RoleLender, l.ID, at)
		}
		return nil

	case types.EventListingDelisted:
		if ev.Listing == nil {
			return fmt.Errorf("missing listing")
		}
		if _, err := db.ExecContext(ctx, p.q(delistSQL), ev.Listing.ID, ev.Seq); err != nil {
			return fmt.Errorf("failed to delist: %w", err)
		}
		return nil

	case types.EventRentalCreated:
		r := ev.Rental
		if r == nil {
			return fmt.Errorf("missing rental")
		}
		if err := p.upsertRental(ctx, db, *r, StatusActive, sql.NullInt64{}, ev.Seq); err != nil {
			return err
		}
		return p.addActivity(ctx, db, r.Borrower, RoleBorrower, r.ID, at)

	case types.EventRentalReturned, types.EventRentalClaimed:
		//the closed rental is zeroed, its last state travels in Previous
		if ev.Previous == nil {
			return fmt.Errorf("missing previous rental")
		}
		status := StatusReturned
		if ev.Kind == types.EventRentalClaimed {
			status = StatusClaimed
		}
		return p.upsertRental(ctx, db, *ev.Previous, status, sql.NullInt64{Int64: at, Valid: true}, ev.Seq)

	default:
		p.logger.Warn("skipping unknown event kind", "kind", ev.Kind, "seq", ev.Seq)
		return nil
	}
}

func (p *Projector) upsertRental(ctx context.Context, db DBTX, r types.Rental, status string, closedAt sql.NullInt64, seq uint64) error {
	_, err := db.ExecContext(ctx, p.q(upsertRentalSQL),
		r.ID, r.ListingID, string(r.Borrower), r.Duration,
		r.StartedAt.UnixNano(), r.DueAt().UnixNano(), status, closedAt, seq,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rental: %w", err)
	}
	return nil
}

func (p *Projector) addActivity(ctx context.Context, db DBTX, who types.Identity, role string, id uint64, at int64) error {
	if _, err := db.ExecContext(ctx, p.q(addActivitySQL), string(who), role, id, at); err != nil {
		return fmt.Errorf("failed to record %s activity: %w", role, err)
	}
	return nil
}

// LastSeq is the highest event sequence projected so far.
func (p *Projector) LastSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := p.db.QueryRowContext(ctx, p.q(getLastSeqSQL)).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	return seq, nil
}

func (p *Projector) q(query string) string {
	return rebind(p.driver, query)
}

// amounts are uint64 and would overflow BIGINT, they are stored as decimal text
func formatAmount(a types.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func parseAmount(s string) (types.Amount, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return types.Amount(v), nil
}
