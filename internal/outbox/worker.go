package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amt_deltaker_outbox_records_published_total",
		Help: "Outbox records published to Kafka.",
	}, []string{"topic"})
	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amt_deltaker_outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed and stopped the drain.",
	}, []string{"topic"})
)

// Publisher sends one record to the broker. A nil value produces a tombstone.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

const drainBatchSize = 100

// Worker drains the outbox on a fixed interval. Each tick publishes pending
// records oldest first and deletes each one only after the broker has
// acknowledged it, so a crash between publish and delete means a duplicate,
// never a loss. The tick stops at the first failure to preserve per-key
// ordering; the failed record is retried on the next tick.
type Worker struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	logger    *slog.Logger
}

func NewWorker(store Store, publisher Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		interval:  interval,
		logger:    logger.With(slog.String("component", "outbox-worker")),
	}
}

// Run drains until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.Error("outbox drain stopped", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		records, err := w.store.ListPending(ctx, drainBatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		for _, r := range records {
			if err := w.publisher.Publish(ctx, r.Topic, r.Key, r.Value); err != nil {
				publishFailures.WithLabelValues(r.Topic).Inc()
				return err
			}
			if err := w.store.Delete(ctx, r.ID); err != nil {
				return err
			}
			recordsPublished.WithLabelValues(r.Topic).Inc()
		}
		if len(records) < drainBatchSize {
			return nil
		}
	}
}
