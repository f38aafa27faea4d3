package indexer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pixperk/escrowd/pkg/clock"
	"github.com/pixperk/escrowd/pkg/escrow"
	"github.com/pixperk/escrowd/pkg/events"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/registry"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	self  = types.Identity("escrow")
	alice = types.Identity("alice")
	bob   = types.Identity("bob")
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newProjector(t *testing.T) *Projector {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	//migrations are idempotent
	require.NoError(t, Migrate(ctx, db))

	return NewProjector(db, DriverSQLite, nil)
}

// runs a small market through a real ledger and returns what it published
//   - alice lists faces 1 and 2
//   - bob rents listing 1 and returns it
//   - bob rents listing 1 again and defaults, alice claims
//   - alice delists listing 2
func marketEvents(t *testing.T) []types.Event {
	t.Helper()

	reg := registry.New(self)
	payments := payment.New(self)
	c := clock.NewManual(start)
	rec := &events.Recorder{}

	face1 := types.AssetRef{Registry: "faces", Instance: "1"}
	face2 := types.AssetRef{Registry: "faces", Instance: "2"}
	require.NoError(t, reg.Mint(alice, face1))
	require.NoError(t, reg.Mint(alice, face2))
	reg.SetApproval(alice, self, true)
	require.NoError(t, payments.Mint(bob, 100, "usd"))
	payments.Approve(bob, self, payment.Unlimited, "usd")

	ledger := escrow.New(self, reg, payments, escrow.WithClock(c), escrow.WithEventSink(rec))
	terms := func(ref types.AssetRef) types.ListTerms {
		return types.ListTerms{Asset: ref, MaxDuration: 5, DailyPrice: 1, Collateral: 11, PaymentAsset: "usd"}
	}

	_, err := ledger.ListMany(alice, []types.ListTerms{terms(face1), terms(face2)})
	require.NoError(t, err)

	first, err := ledger.Rent(bob, 1, 2)
	require.NoError(t, err)
	c.Advance(time.Hour)
	require.NoError(t, ledger.ReturnAsset(bob, first))

	second, err := ledger.Rent(bob, 1, 1)
	require.NoError(t, err)
	c.Advance(2 * types.Day)
	require.NoError(t, ledger.ClaimCollateral(alice, second))

	require.NoError(t, ledger.Delist(alice, 2))

	return rec.Events()
}

func TestProjection(t *testing.T) {
	p := newProjector(t)
	ctx := context.Background()

	evs := marketEvents(t)
	for _, ev := range evs {
		require.NoError(t, p.Apply(ctx, ev))
	}

	listings, err := p.ListingsByLender(ctx, alice)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, uint64(1), listings[0].ID)
	assert.Equal(t, types.AssetRef{Registry: "faces", Instance: "1"}, listings[0].Asset)
	assert.Equal(t, types.Amount(11), listings[0].Collateral)
	assert.Equal(t, types.Amount(1), listings[0].DailyPrice)
	assert.Equal(t, uint32(5), listings[0].MaxDuration)
	assert.False(t, listings[0].IsBorrowed)
	assert.False(t, listings[0].Delisted)
	assert.True(t, listings[0].CreatedAt.Equal(start))
	assert.True(t, listings[1].Delisted)

	available, err := p.AvailableListings(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, uint64(1), available[0].ID)

	available, err = p.AvailableListings(ctx, "eur", 10)
	require.NoError(t, err)
	assert.Empty(t, available)

	rentals, err := p.RentalsByBorrower(ctx, bob)
	require.NoError(t, err)
	require.Len(t, rentals, 2)
	assert.Equal(t, StatusReturned, rentals[0].Status)
	assert.True(t, rentals[0].DueAt.Equal(start.Add(2*types.Day)))
	require.NotNil(t, rentals[0].ClosedAt)
	assert.True(t, rentals[0].ClosedAt.Equal(start.Add(time.Hour)))
	assert.Equal(t, StatusClaimed, rentals[1].Status)
	assert.Equal(t, uint32(1), rentals[1].Duration)

	activity, err := p.UserActivity(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, activity.Lending)
	assert.Empty(t, activity.Borrowing)

	activity, err = p.UserActivity(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, activity.Borrowing)

	seq, err := p.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, evs[len(evs)-1].Seq, seq)
}

func TestProjectionIgnoresRedeliveredEvents(t *testing.T) {
	p := newProjector(t)
	ctx := context.Background()

	evs := marketEvents(t)
	for _, ev := range evs {
		require.NoError(t, p.Apply(ctx, ev))
	}

	//replaying everything backwards must not move any row back in time
	for i := len(evs) - 1; i >= 0; i-- {
		require.NoError(t, p.Apply(ctx, evs[i]))
	}

	listings, err := p.ListingsByLender(ctx, alice)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.False(t, listings[0].IsBorrowed)
	assert.True(t, listings[1].Delisted)

	rentals, err := p.RentalsByBorrower(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, rentals[0].Status)
	assert.Equal(t, StatusClaimed, rentals[1].Status)

	seq, err := p.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, evs[len(evs)-1].Seq, seq)
}

func TestApplyRejectsIncompleteEvents(t *testing.T) {
	p := newProjector(t)
	ctx := context.Background()

	assert.Error(t, p.Apply(ctx, types.Event{Seq: 1, Kind: types.EventListingCreated}))
	assert.Error(t, p.Apply(ctx, types.Event{Seq: 2, Kind: types.EventRentalReturned, Rental: &types.Rental{ID: 1}}))

	//a failed event leaves nothing behind
	seq, err := p.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, p.Apply(ctx, types.Event{Seq: 3, Kind: "listing.repainted"}))
}

func TestFollow(t *testing.T) {
	p := newProjector(t)

	hub := events.NewHub(64)
	feed, cancel := hub.Subscribe()
	defer cancel()

	evs := marketEvents(t)
	require.NoError(t, hub.Publish(context.Background(), evs))
	hub.Close()

	require.NoError(t, Follow(context.Background(), feed, p))

	seq, err := p.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, evs[len(evs)-1].Seq, seq)
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestKafkaConsumer(t *testing.T) {
	p := newProjector(t)

	evs := marketEvents(t)
	reader := &fakeReader{}
	for i, ev := range evs {
		value, err := json.Marshal(ev)
		require.NoError(t, err)
		reader.msgs = append(reader.msgs, kafka.Message{Offset: int64(i), Key: []byte(ev.EntityKey()), Value: value})
		if i == 0 {
			reader.msgs = append(reader.msgs, kafka.Message{Offset: 1000, Value: []byte("not json")})
		}
	}
	total := len(reader.msgs)

	consumer := newKafkaConsumer(reader, p, nil)
	consumer.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.commits() == total }, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	seq, err := p.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, evs[len(evs)-1].Seq, seq)

	rentals, err := p.RentalsByBorrower(context.Background(), bob)
	require.NoError(t, err)
	assert.Len(t, rentals, 2)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = $1 AND c = $12"
	assert.Equal(t, "SELECT a FROM t WHERE b = ?1 AND c = ?12", rebind(DriverSQLite, q))
	assert.Equal(t, q, rebind(DriverPostgres, q))
}

func TestNewKafkaConsumerValidation(t *testing.T) {
	p := &Projector{}

	_, err := NewKafkaConsumer(nil, "events", "group", p, nil)
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "", "group", p, nil)
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "events", "", p, nil)
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "events", "group", nil, nil)
	assert.Error(t, err)
}
