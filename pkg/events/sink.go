// Package events delivers committed ledger events to subscribers, durable
// storage and the message bus.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/pixperk/escrowd/pkg/types"
)

// Sink receives events in commit order.
type Sink interface {
	Publish(ctx context.Context, events []types.Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, events []types.Event) error

func (f SinkFunc) Publish(ctx context.Context, events []types.Event) error {
	return f(ctx, events)
}

// Multi publishes to every sink, a failing sink does not stop the rest.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, events []types.Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
var Discard Sink = SinkFunc(func(context.Context, []types.Event) error { return nil })

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *Recorder) Publish(_ context.Context, events []types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []types.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
