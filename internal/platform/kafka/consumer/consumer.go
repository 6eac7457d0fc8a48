package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one record from the subscribed topic.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes records for one topic. A nil record value is a tombstone
// and is routed to HandleTombstone, never to Handle.
type Handler interface {
	Handle(ctx context.Context, key, value []byte) error
	HandleTombstone(ctx context.Context, key []byte) error
}

// Consumer is a managed group consumer with at-least-once semantics.
//
// Records are processed strictly in order within a partition. A failing record
// is retried in place with quadratic backoff, without bound: skipping or
// dead-lettering a state change would silently diverge downstream state, so a
// poison message intentionally stalls its partition until resolved. Offsets
// are committed only after an entire fetched batch has been processed.
type Consumer struct {
	client      *kgo.Client
	topic       string
	handler     Handler
	logger      *slog.Logger
	backoffBase time.Duration

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures the Consumer.
type Option func(*Consumer)

// WithBackoffBase overrides the base delay used for per-record retries.
func WithBackoffBase(d time.Duration) Option {
	return func(c *Consumer) {
		c.backoffBase = d
	}
}

// New creates a consumer for one topic within the given group.
func New(brokers []string, group, topic string, handler Handler, logger *slog.Logger, opts ...Option) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer for %s: %w", topic, err)
	}

	c := &Consumer{
		client:      client,
		topic:       topic,
		handler:     handler,
		logger:      logger,
		backoffBase: time.Second,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls and processes until the context is cancelled. Returns the context
// error on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var processErr error
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if processErr != nil {
				return
			}
			for _, record := range p.Records {
				msg := &Message{
					Topic:     record.Topic,
					Partition: record.Partition,
					Offset:    record.Offset,
					Key:       record.Key,
					Value:     record.Value,
					Timestamp: record.Timestamp,
				}
				if err := c.processWithRetry(ctx, msg); err != nil {
					processErr = err
					return
				}
			}
		})
		if processErr != nil {
			// Only context cancellation escapes the retry loop. Nothing was
			// committed, so unprocessed records are redelivered.
			return processErr
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			// Failed commits mean redelivery; handlers are idempotent.
			c.logger.ErrorContext(ctx, "commit offsets failed",
				"topic", c.topic,
				"error", err,
			)
		}
	}
}

// processWithRetry dispatches one record, retrying in place until it succeeds
// or the context is cancelled. The delay grows as backoffBase * retries².
func (c *Consumer) processWithRetry(ctx context.Context, msg *Message) error {
	var retries int
	for {
		err := c.dispatch(ctx, msg)
		if err == nil {
			if retries > 0 {
				c.logger.InfoContext(ctx, "record processed after retries",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"retries", retries,
				)
			}
			recordsProcessed.WithLabelValues(msg.Topic).Inc()
			return nil
		}

		retries++
		recordRetries.WithLabelValues(msg.Topic).Inc()
		delay := c.backoffBase * time.Duration(retries*retries)
		c.logger.ErrorContext(ctx, "record processing failed, retrying",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"retries", retries,
			"delay", delay.String(),
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg *Message) error {
	if msg.Value == nil {
		return c.handler.HandleTombstone(ctx, msg.Key)
	}
	return c.handler.Handle(ctx, msg.Key, msg.Value)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
