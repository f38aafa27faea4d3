package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
	HeaderEventSeq  = "event-seq"
	HeaderLedgerID  = "ledger-id"
)

const (
	DefaultKafkaQueue        = 1024
	DefaultKafkaWriteTimeout = 10 * time.Second
)

var (
	ErrProducerClosed = errors.New("kafka sink closed")
	ErrQueueFull      = errors.New("kafka sink queue is full")
)

// writer is the subset of kafka.Writer the sink uses
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events to a topic keyed by entity, so every update of
// one listing or rental lands on the same partition in order.
// Publish only enqueues, a single goroutine writes batches in order, so a slow
// broker never holds up the ledger. When the queue is full the batch is
// dropped and Publish reports ErrQueueFull.
type KafkaSink struct {
	mu       sync.RWMutex
	w        writer
	ledgerID string
	closed   bool
	logger   *slog.Logger

	queueSize    int
	writeTimeout time.Duration
	queue        chan []kafka.Message
	done         chan struct{}
}

type KafkaOption func(*KafkaSink)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(s *KafkaSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKafkaQueue sets how many batches may wait for the broker.
// DEFAULT: 1024
func WithKafkaQueue(n int) KafkaOption {
	return func(s *KafkaSink) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithKafkaWriteTimeout bounds one write to the broker.
// DEFAULT: 10s
func WithKafkaWriteTimeout(d time.Duration) KafkaOption {
	return func(s *KafkaSink) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func NewKafkaSink(brokers []string, topic, ledgerID string, opts ...KafkaOption) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	s := newKafkaSink(ledgerID, opts...)
	s.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		MaxAttempts:  5,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			s.logger.Error(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
	}
	s.start()
	return s, nil
}

func newKafkaSinkWithWriter(w writer, ledgerID string, opts ...KafkaOption) *KafkaSink {
	s := newKafkaSink(ledgerID, opts...)
	s.w = w
	s.start()
	return s
}

func newKafkaSink(ledgerID string, opts ...KafkaOption) *KafkaSink {
	s := &KafkaSink{
		ledgerID:     ledgerID,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		queueSize:    DefaultKafkaQueue,
		writeTimeout: DefaultKafkaWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *KafkaSink) start() {
	s.queue = make(chan []kafka.Message, s.queueSize)
	s.done = make(chan struct{})
	go s.run()
}

// Publish encodes events and queues them without waiting for the broker.
func (s *KafkaSink) Publish(_ context.Context, events []types.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrProducerClosed
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		msg, err := s.message(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	select {
	case s.queue <- msgs:
		return nil
	default:
		return fmt.Errorf("drop %d events from seq %d: %w", len(events), events[0].Seq, ErrQueueFull)
	}
}

func (s *KafkaSink) run() {
	defer close(s.done)
	for msgs := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		err := s.w.WriteMessages(ctx, msgs...)
		cancel()
		if err != nil {
			s.logger.Error("failed to write events",
				"count", len(msgs),
				"first_seq", Header(msgs[0], HeaderEventSeq),
				"error", err,
			)
		}
	}
}

func (s *KafkaSink) message(ev types.Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}

	return kafka.Message{
		Key:   []byte(ev.EntityKey()),
		Value: value,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.Kind)},
			{Key: HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: HeaderEventSeq, Value: []byte(fmt.Sprint(ev.Seq))},
			{Key: HeaderLedgerID, Value: []byte(s.ledgerID)},
		},
	}, nil
}

// Close stops accepting events, flushes what is queued and closes the writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.w.Close()
}

// Header returns the value of a header on a consumed message.
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
