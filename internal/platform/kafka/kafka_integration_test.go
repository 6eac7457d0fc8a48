//go:build integration

package kafka_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka/consumer"
	"github.com/navikt/amt-deltaker-sub001/internal/platform/kafka/producer"
	"github.com/navikt/amt-deltaker-sub001/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	logger   *slog.Logger
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *KafkaSuite) TearDownSuite() {
	_ = s.redpanda.Container.Terminate(context.Background())
}

// collectingHandler records everything it receives.
type collectingHandler struct {
	mu         sync.Mutex
	values     [][]byte
	tombstones [][]byte
}

func (h *collectingHandler) Handle(_ context.Context, _, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, value)
	return nil
}

func (h *collectingHandler) HandleTombstone(_ context.Context, key []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tombstones = append(h.tombstones, key)
	return nil
}

func (h *collectingHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values), len(h.tombstones)
}

func (s *KafkaSuite) TestEnsureTopicsIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(kafka.EnsureTopics(ctx, s.redpanda.Brokers, "kafka-it.ensure-v1"))
	s.Require().NoError(kafka.EnsureTopics(ctx, s.redpanda.Brokers, "kafka-it.ensure-v1"))
}

func (s *KafkaSuite) TestProduceAndConsumeRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "kafka-it.roundtrip-v1"
	s.Require().NoError(kafka.EnsureTopics(ctx, s.redpanda.Brokers, topic))

	p, err := producer.New(s.redpanda.Brokers, s.logger)
	s.Require().NoError(err)
	defer p.Close()

	s.Require().NoError(p.Publish(ctx, topic, []byte("key-1"), []byte(`{"n":1}`)))
	s.Require().NoError(p.Publish(ctx, topic, []byte("key-1"), []byte(`{"n":2}`)))
	s.Require().NoError(p.Publish(ctx, topic, []byte("key-1"), nil))

	handler := &collectingHandler{}
	c, err := consumer.New(s.redpanda.Brokers, "kafka-it-group", topic, handler, s.logger)
	s.Require().NoError(err)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(consumerCtx) }()

	s.Require().Eventually(func() bool {
		values, tombstones := handler.counts()
		return values == 2 && tombstones == 1
	}, 30*time.Second, 100*time.Millisecond)

	stopConsumer()
	s.ErrorIs(<-done, context.Canceled)
}
