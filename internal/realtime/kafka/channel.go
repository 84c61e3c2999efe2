// Package kafka subscribes to activity log records published on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"example.com/activityfeed/internal/domain"
	"example.com/activityfeed/internal/realtime"
)

const eventTypeHeader = "event_type"

// Reader exposes the minimal kafka.Reader interface needed by the channel.
type Reader interface {
	FetchMessage(context.Context) (kafkago.Message, error)
	CommitMessages(context.Context, ...kafkago.Message) error
	Close() error
}

// Option configures optional behaviour for the Channel.
type Option func(*Channel)

// WithLogger overrides the logger used to report consumer errors.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithInstanceID fixes the suffix that makes this process's consumer group unique.
func WithInstanceID(id string) Option {
	return func(c *Channel) {
		if id != "" {
			c.instanceID = id
		}
	}
}

// WithReaderFactory replaces the kafka.Reader constructor.
func WithReaderFactory(factory func(topic string) Reader) Option {
	return func(c *Channel) {
		c.newReader = factory
	}
}

// WithProbe replaces the broker reachability check run before subscribing.
func WithProbe(probe func(ctx context.Context, topic string) error) Option {
	return func(c *Channel) {
		c.probe = probe
	}
}

// Channel is a realtime.Channel backed by a Kafka consumer group of its own. Every notifier
// instance must see the whole topic, so the group id is the configured prefix plus an instance
// id, and a fresh group always starts at the latest offset.
type Channel struct {
	brokers      []string
	groupPrefix  string
	instanceID   string
	probeTimeout time.Duration
	newReader    func(topic string) Reader
	probe        func(ctx context.Context, topic string) error
	logger       zerolog.Logger
}

// NewChannel constructs a Channel reading from brokers in a group named after groupPrefix.
func NewChannel(brokers []string, groupPrefix string, opts ...Option) *Channel {
	c := &Channel{
		brokers:      brokers,
		groupPrefix:  groupPrefix,
		instanceID:   uuid.NewString(),
		probeTimeout: 5 * time.Second,
		logger:       zerolog.Nop(),
	}
	c.newReader = c.defaultReader
	c.probe = c.dialProbe
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe verifies the topic is reachable and starts consuming it from the latest offset.
func (c *Channel) Subscribe(ctx context.Context, topic string) (realtime.Stream, error) {
	if len(c.brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured: %w", realtime.ErrUnavailable)
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	if err := c.probe(probeCtx, topic); err != nil {
		return nil, fmt.Errorf("kafka: probe topic %s: %w", topic, err)
	}

	reader := c.newReader(topic)
	c.logger.Info().Str("topic", topic).Str("group", c.GroupID()).Msg("kafka subscription started")
	return realtime.NewStream(ctx, func(ctx context.Context, emit realtime.Emit) error {
		return c.consume(ctx, reader, emit)
	}, reader.Close), nil
}

func (c *Channel) consume(ctx context.Context, reader Reader, emit realtime.Emit) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("kafka: fetch: %w", err)
		}

		rec, decodeErr := decodeMessage(msg)
		switch {
		case errors.Is(decodeErr, errForeignEvent):
			c.logger.Debug().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("skipping foreign event type")
		case decodeErr != nil:
			c.logger.Warn().Err(decodeErr).Str("topic", msg.Topic).Int("partition", msg.Partition).Int64("offset", msg.Offset).Msg("decode error")
			decodeErrorCounter.WithLabelValues(msg.Topic).Inc()
		default:
			if !emit(rec) {
				return nil
			}
			processedCounter.WithLabelValues(msg.Topic).Inc()
		}

		// Malformed and foreign messages are committed too, so they never block the group.
		if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil && ctx.Err() == nil {
			c.logger.Warn().Err(commitErr).Str("topic", msg.Topic).Msg("commit error")
		}
	}
}

var errForeignEvent = errors.New("foreign event type")

func decodeMessage(msg kafkago.Message) (domain.RawRecord, error) {
	if eventType, ok := headerValue(msg, eventTypeHeader); ok && string(eventType) != domain.EventActivityLogged {
		return domain.RawRecord{}, errForeignEvent
	}
	if len(msg.Value) == 0 {
		return domain.RawRecord{}, errors.New("empty payload")
	}
	var rec domain.RawRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return domain.RawRecord{}, err
	}
	return rec, nil
}

func headerValue(msg kafkago.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}

// GroupID is the consumer group this channel joins.
func (c *Channel) GroupID() string {
	if c.groupPrefix == "" {
		return c.instanceID
	}
	return c.groupPrefix + "-" + c.instanceID
}

func (c *Channel) readerConfig(topic string) kafkago.ReaderConfig {
	return kafkago.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        c.GroupID(),
		Topic:          topic,
		StartOffset:    kafkago.LastOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	}
}

func (c *Channel) defaultReader(topic string) Reader {
	return kafkago.NewReader(c.readerConfig(topic))
}

// dialProbe succeeds once any broker answers a metadata request for topic.
func (c *Channel) dialProbe(ctx context.Context, topic string) error {
	var errs []error
	for _, broker := range c.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = conn.ReadPartitions(topic)
		conn.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}
