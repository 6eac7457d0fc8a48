package historikk

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the six history sources. Vedtak and forslag are append-only:
// every revision writes a new row keyed (id, sist_endret) and reads resolve
// the latest row per id, so no history is ever rewritten in place.
// SlettForDeltaker is the only destructive operation and exists solely for
// participant purge.
type Store interface {
	AppendVedtak(ctx context.Context, v Vedtak) error
	ListVedtak(ctx context.Context, deltakerID uuid.UUID) ([]Vedtak, error)
	// GetUfattetVedtak returns the latest decision that has not been
	// ratified yet, or sentinel.ErrNotFound.
	GetUfattetVedtak(ctx context.Context, deltakerID uuid.UUID) (Vedtak, error)

	InsertEndring(ctx context.Context, e DeltakerEndring) error
	ListEndringer(ctx context.Context, deltakerID uuid.UUID) ([]DeltakerEndring, error)

	AppendForslag(ctx context.Context, f Forslag) error
	GetForslag(ctx context.Context, id uuid.UUID) (Forslag, error)
	ListForslag(ctx context.Context, deltakerID uuid.UUID) ([]Forslag, error)

	InsertEndringFraArrangor(ctx context.Context, e EndringFraArrangor) error
	ListEndringFraArrangor(ctx context.Context, deltakerID uuid.UUID) ([]EndringFraArrangor, error)

	InsertEndringFraTiltakskoordinator(ctx context.Context, e EndringFraTiltakskoordinator) error
	ListEndringFraTiltakskoordinator(ctx context.Context, deltakerID uuid.UUID) ([]EndringFraTiltakskoordinator, error)

	UpsertImportertFraArena(ctx context.Context, i ImportertFraArena) error
	GetImportertFraArena(ctx context.Context, deltakerID uuid.UUID) (*ImportertFraArena, error)

	// SlettForDeltaker removes every history row for the deltaker from all
	// six sources. Callers must run it inside the purge transaction.
	SlettForDeltaker(ctx context.Context, deltakerID uuid.UUID) error
}
