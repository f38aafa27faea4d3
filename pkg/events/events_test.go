package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixperk/escrowd/pkg/types"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func listingEvent(seq, id uint64) types.Event {
	return types.Event{
		Seq:     seq,
		Kind:    types.EventListingCreated,
		At:      at,
		Listing: &types.Listing{ID: id, Lender: "alice", Asset: types.AssetRef{Registry: "faces", Instance: "1"}},
	}
}

// TestHubFanOut tests that every subscriber sees every event
func TestHubFanOut(t *testing.T) {
	hub := NewHub(8)

	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	require.NoError(t, hub.Publish(context.Background(), []types.Event{listingEvent(1, 1), listingEvent(2, 2)}))

	for _, ch := range []<-chan types.Event{a, b} {
		assert.Equal(t, uint64(1), (<-ch).Seq)
		assert.Equal(t, uint64(2), (<-ch).Seq)
	}
}

// TestHubDropsSlowSubscriber tests that a full subscriber is closed instead of blocking
func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	require.NoError(t, hub.Publish(context.Background(), []types.Event{listingEvent(1, 1), listingEvent(2, 2)}))
	assert.Equal(t, 0, hub.Len())

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, uint64(1), ev.Seq)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed")
}

// TestHubUnsubscribe tests that cancel closes the channel once
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(0)
	ch, cancel := hub.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())

	hub.Close()
	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

// TestArchiveRange tests that archived events come back in sequence order
func TestArchiveRange(t *testing.T) {
	archive, err := OpenArchive(t.TempDir())
	require.NoError(t, err)
	defer archive.Close()

	var batch []types.Event
	for seq := uint64(1); seq <= 5; seq++ {
		batch = append(batch, listingEvent(seq, seq))
	}
	require.NoError(t, archive.Publish(context.Background(), batch))

	got, err := archive.Range(3, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[0].Seq)
	assert.Equal(t, uint64(5), got[2].Seq)
	assert.Equal(t, "alice", string(got[0].Listing.Lender))

	got, err = archive.Range(1, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	last, err := archive.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), last)
}

// TestArchivePersistence tests that events survive a reopen
func TestArchivePersistence(t *testing.T) {
	dir := t.TempDir()

	archive, err := OpenArchive(dir)
	require.NoError(t, err)
	require.NoError(t, archive.Publish(context.Background(), []types.Event{listingEvent(7, 1)}))
	require.NoError(t, archive.Close())

	_, err = archive.Range(0, 0)
	assert.ErrorIs(t, err, ErrArchiveClosed)

	archive, err = OpenArchive(dir)
	require.NoError(t, err)
	defer archive.Close()

	last, err := archive.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), last)
}

type fakeWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	closed  bool
	started chan struct{} //signalled when a write begins, if set
	release chan struct{} //writes block until closed, if set
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.started != nil {
		w.started <- struct{}{}
	}
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

// TestKafkaSinkMessages tests keys and headers of produced messages
func TestKafkaSinkMessages(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSinkWithWriter(w, "ledger-1")

	rental := types.Event{Seq: 2, Kind: types.EventRentalCreated, At: at, Rental: &types.Rental{ID: 4, ListingID: 1}}
	require.NoError(t, sink.Publish(context.Background(), []types.Event{listingEvent(1, 1), rental}))

	//close flushes the queue
	require.NoError(t, sink.Close())
	assert.True(t, w.closed)

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "listing:1", string(msgs[0].Key))
	assert.Equal(t, "rental:4", string(msgs[1].Key))
	assert.Equal(t, string(types.EventRentalCreated), Header(msgs[1], HeaderEventType))
	assert.Equal(t, "2", Header(msgs[1], HeaderEventSeq))
	assert.Equal(t, "ledger-1", Header(msgs[1], HeaderLedgerID))
	assert.NotEmpty(t, Header(msgs[0], HeaderEventID))
	assert.NotEqual(t, Header(msgs[0], HeaderEventID), Header(msgs[1], HeaderEventID))

	assert.ErrorIs(t, sink.Publish(context.Background(), []types.Event{rental}), ErrProducerClosed)
	assert.NoError(t, sink.Close())
}

// TestKafkaSinkDoesNotBlockOnBroker tests that a stuck broker never stalls
// Publish, extra batches are dropped once the queue is full
func TestKafkaSinkDoesNotBlockOnBroker(t *testing.T) {
	w := &fakeWriter{started: make(chan struct{}, 4), release: make(chan struct{})}
	sink := newKafkaSinkWithWriter(w, "ledger-1", WithKafkaQueue(1))

	done := make(chan error, 3)
	go func() {
		//first batch is taken by the writer and hangs there
		done <- sink.Publish(context.Background(), []types.Event{listingEvent(1, 1)})
		<-w.started
		//second waits in the queue, third has no room
		done <- sink.Publish(context.Background(), []types.Event{listingEvent(2, 2)})
		done <- sink.Publish(context.Background(), []types.Event{listingEvent(3, 3)})
	}()

	for i, want := range []error{nil, nil, ErrQueueFull} {
		select {
		case err := <-done:
			if want == nil {
				assert.NoError(t, err, "publish %d", i+1)
			} else {
				assert.ErrorIs(t, err, want, "publish %d", i+1)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("publish %d blocked on the broker", i+1)
		}
	}

	close(w.release)
	require.NoError(t, sink.Close())

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", Header(msgs[0], HeaderEventSeq))
	assert.Equal(t, "2", Header(msgs[1], HeaderEventSeq))
}

// TestKafkaSinkWriteTimeout tests that a write gives up after the timeout so
// close does not hang on an unreachable broker
func TestKafkaSinkWriteTimeout(t *testing.T) {
	w := &fakeWriter{release: make(chan struct{})}
	sink := newKafkaSinkWithWriter(w, "ledger-1", WithKafkaWriteTimeout(20*time.Millisecond))

	require.NoError(t, sink.Publish(context.Background(), []types.Event{listingEvent(1, 1)}))

	closed := make(chan error, 1)
	go func() { closed <- sink.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close hung on a stuck write")
	}
	assert.Empty(t, w.written())
}

func TestNewKafkaSinkValidation(t *testing.T) {
	_, err := NewKafkaSink(nil, "events", "ledger")
	assert.Error(t, err)

	_, err = NewKafkaSink([]string{"localhost:9092"}, "", "ledger")
	assert.Error(t, err)
}

// TestMulti tests that one failing sink does not starve the others
func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	rec := &Recorder{}
	failing := SinkFunc(func(context.Context, []types.Event) error { return boom })

	err := Multi{failing, nil, rec}.Publish(context.Background(), []types.Event{listingEvent(1, 1)})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []types.EventKind{types.EventListingCreated}, rec.Kinds())

	rec.Reset()
	assert.Empty(t, rec.Events())
	assert.NoError(t, Discard.Publish(context.Background(), nil))
}
