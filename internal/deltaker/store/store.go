// Package store persists the deltaker aggregate: the main row, the versioned
// status rows and the participation-rate history.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
)

// Store is the persistence gateway for deltakere. Mutations participate in a
// caller transaction when one is present in the context.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (deltaker.Deltaker, error)
	ListForDeltakerliste(ctx context.Context, deltakerlisteID uuid.UUID) ([]deltaker.Deltaker, error)
	// Upsert writes the deltaker and maintains the status history: the new
	// current status row is inserted and any other open row is closed, so at
	// most one row per deltaker has gyldig_til NULL.
	Upsert(ctx context.Context, d deltaker.Deltaker) error
	Delete(ctx context.Context, id uuid.UUID) error

	GetMengder(ctx context.Context, deltakerID uuid.UUID) ([]deltaker.Deltakelsesmengde, error)
	UpsertMengde(ctx context.Context, m deltaker.Deltakelsesmengde) error
}
