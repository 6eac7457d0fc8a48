// Package outbox implements the transactional outbox: domain writes enqueue
// their Kafka records in the same database transaction, and a background
// worker drains the table to the broker. Records for the same key leave in
// insertion order because the drain stops at the first publish failure.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one pending Kafka message.
type Record struct {
	ID        uuid.UUID
	Topic     string
	Key       string
	Value     []byte
	Opprettet time.Time
}

// Store persists pending records. Insert participates in a caller
// transaction when one is present in the context.
type Store interface {
	Insert(ctx context.Context, r Record) error
	// ListPending returns up to limit records, oldest first.
	ListPending(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Enqueuer stages records inside the caller's transaction.
type Enqueuer struct {
	store Store
}

func NewEnqueuer(store Store) *Enqueuer {
	return &Enqueuer{store: store}
}

// Enqueue stages a record. A nil value becomes a tombstone on the topic.
func (e *Enqueuer) Enqueue(ctx context.Context, topic, key string, value []byte) error {
	return e.store.Insert(ctx, Record{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Value:     value,
		Opprettet: time.Now().UTC(),
	})
}
