package refdata

import (
	"context"

	"github.com/google/uuid"
)

// Store mirrors upstream reference data. Upserts replace the whole row;
// deletes are driven by upstream tombstones.
type Store interface {
	UpsertDeltakerliste(ctx context.Context, d Deltakerliste) error
	GetDeltakerliste(ctx context.Context, id uuid.UUID) (Deltakerliste, error)
	DeleteDeltakerliste(ctx context.Context, id uuid.UUID) error

	UpsertTiltakstype(ctx context.Context, t Tiltakstype) error
	GetTiltakstype(ctx context.Context, id uuid.UUID) (Tiltakstype, error)

	UpsertNavAnsatt(ctx context.Context, a NavAnsatt) error
	GetNavAnsatt(ctx context.Context, id uuid.UUID) (NavAnsatt, error)
	DeleteNavAnsatt(ctx context.Context, id uuid.UUID) error

	UpsertNavEnhet(ctx context.Context, e NavEnhet) error
	GetNavEnhet(ctx context.Context, id uuid.UUID) (NavEnhet, error)

	UpsertArrangor(ctx context.Context, a Arrangor) error
	GetArrangor(ctx context.Context, id uuid.UUID) (Arrangor, error)
	DeleteArrangor(ctx context.Context, id uuid.UUID) error
}
