package events

import (
	"context"
	"sync"

	"github.com/pixperk/escrowd/pkg/types"
)

// DefaultBuffer is the per-subscriber channel size.
const DefaultBuffer = 256

// Hub fans events out to live subscribers.
// A subscriber that falls a full buffer behind is dropped and its channel
// closed, publishing never blocks on a slow reader.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan types.Event
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]chan types.Event),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber. The returned cancel func unsubscribes
// and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan types.Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.nextID++
	id := h.nextID
	h.subs[id] = ch

	return ch, func() { h.unsubscribe(id) }
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *Hub) Publish(_ context.Context, events []types.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				//slow consumer
				delete(h.subs, id)
				close(ch)
			}
			if _, ok := h.subs[id]; !ok {
				break
			}
		}
	}
	return nil
}

// number of live subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel, later subscribers get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
