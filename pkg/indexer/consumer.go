package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pixperk/escrowd/pkg/events"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultMaxRetries = 3
	retryBackoff      = time.Second
)

var ErrConsumerClosed = errors.New("consumer is closed")

// the subset of kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer feeds the projector from the event topic, committing each
// offset once the event is projected.
type KafkaConsumer struct {
	reader     messageReader
	projector  *Projector
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, projector *Projector, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group ID cannot be empty")
	}
	if projector == nil {
		return nil, fmt.Errorf("projector cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
		Logger:         kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	})

	return newKafkaConsumer(reader, projector, logger), nil
}

func newKafkaConsumer(reader messageReader, projector *Projector, logger *slog.Logger) *KafkaConsumer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KafkaConsumer{
		reader:     reader,
		projector:  projector,
		maxRetries: DefaultMaxRetries,
		backoff:    retryBackoff,
		logger:     logger,
	}
}

// Run consumes until ctx is done.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrConsumerClosed
			}
			c.logger.Error("kafka consumer error fetching message", "error", err)
			if !sleep(ctx, c.backoff) {
				return ctx.Err()
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka consumer error committing offset", "offset", msg.Offset, "error", err)
		}
	}
}

// undecodable messages and events that keep failing are logged and skipped
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) {
	var ev types.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("dropping undecodable event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"event_id", events.Header(msg, events.HeaderEventID),
			"error", err,
		)
		return
	}

	for attempt := 0; ; attempt++ {
		err := c.projector.Apply(ctx, ev)
		if err == nil {
			return
		}
		if attempt >= c.maxRetries || ctx.Err() != nil {
			c.logger.Error("giving up on event", "seq", ev.Seq, "kind", ev.Kind, "attempts", attempt+1, "error", err)
			return
		}
		c.logger.Warn("retrying event", "seq", ev.Seq, "attempt", attempt+1, "error", err)
		if !sleep(ctx, c.backoff) {
			return
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

// Follow projects events from an in-process feed, typically a hub
// subscription, until the feed closes or ctx is done.
func Follow(ctx context.Context, feed <-chan types.Event, projector *Projector) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-feed:
			if !ok {
				return nil
			}
			if err := projector.Apply(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
