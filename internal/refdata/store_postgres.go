package refdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
	txcontext "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

// PostgresStore implements Store on database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) UpsertDeltakerliste(ctx context.Context, d Deltakerliste) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO deltakerliste (id, navn, tiltakstype_id, arrangor_id, status, start_dato, slutt_dato, oppstart)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			navn = EXCLUDED.navn,
			tiltakstype_id = EXCLUDED.tiltakstype_id,
			arrangor_id = EXCLUDED.arrangor_id,
			status = EXCLUDED.status,
			start_dato = EXCLUDED.start_dato,
			slutt_dato = EXCLUDED.slutt_dato,
			oppstart = EXCLUDED.oppstart
	`, d.ID, d.Navn, d.TiltakstypeID, d.ArrangorID, d.Status, d.StartDato, d.SluttDato, d.Oppstart)
	if err != nil {
		return fmt.Errorf("upsert deltakerliste %s: %w", d.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetDeltakerliste(ctx context.Context, id uuid.UUID) (Deltakerliste, error) {
	var d Deltakerliste
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, navn, tiltakstype_id, arrangor_id, status, start_dato, slutt_dato, oppstart
		FROM deltakerliste WHERE id = $1
	`, id).Scan(&d.ID, &d.Navn, &d.TiltakstypeID, &d.ArrangorID, &d.Status, &d.StartDato, &d.SluttDato, &d.Oppstart)
	if errors.Is(err, sql.ErrNoRows) {
		return Deltakerliste{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Deltakerliste{}, fmt.Errorf("get deltakerliste %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) DeleteDeltakerliste(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM deltakerliste WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete deltakerliste %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpsertTiltakstype(ctx context.Context, t Tiltakstype) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO tiltakstype (id, navn, tiltakskode)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET navn = EXCLUDED.navn, tiltakskode = EXCLUDED.tiltakskode
	`, t.ID, t.Navn, t.Tiltakskode)
	if err != nil {
		return fmt.Errorf("upsert tiltakstype %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetTiltakstype(ctx context.Context, id uuid.UUID) (Tiltakstype, error) {
	var t Tiltakstype
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, navn, tiltakskode FROM tiltakstype WHERE id = $1`, id,
	).Scan(&t.ID, &t.Navn, &t.Tiltakskode)
	if errors.Is(err, sql.ErrNoRows) {
		return Tiltakstype{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Tiltakstype{}, fmt.Errorf("get tiltakstype %s: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) UpsertNavAnsatt(ctx context.Context, a NavAnsatt) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO nav_ansatt (id, nav_ident, navn)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET nav_ident = EXCLUDED.nav_ident, navn = EXCLUDED.navn
	`, a.ID, a.NavIdent, a.Navn)
	if err != nil {
		return fmt.Errorf("upsert nav_ansatt %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetNavAnsatt(ctx context.Context, id uuid.UUID) (NavAnsatt, error) {
	var a NavAnsatt
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, nav_ident, navn FROM nav_ansatt WHERE id = $1`, id,
	).Scan(&a.ID, &a.NavIdent, &a.Navn)
	if errors.Is(err, sql.ErrNoRows) {
		return NavAnsatt{}, sentinel.ErrNotFound
	}
	if err != nil {
		return NavAnsatt{}, fmt.Errorf("get nav_ansatt %s: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) DeleteNavAnsatt(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM nav_ansatt WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete nav_ansatt %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) UpsertNavEnhet(ctx context.Context, e NavEnhet) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO nav_enhet (id, enhetsnummer, navn)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET enhetsnummer = EXCLUDED.enhetsnummer, navn = EXCLUDED.navn
	`, e.ID, e.Enhetsnummer, e.Navn)
	if err != nil {
		return fmt.Errorf("upsert nav_enhet %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetNavEnhet(ctx context.Context, id uuid.UUID) (NavEnhet, error) {
	var e NavEnhet
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, enhetsnummer, navn FROM nav_enhet WHERE id = $1`, id,
	).Scan(&e.ID, &e.Enhetsnummer, &e.Navn)
	if errors.Is(err, sql.ErrNoRows) {
		return NavEnhet{}, sentinel.ErrNotFound
	}
	if err != nil {
		return NavEnhet{}, fmt.Errorf("get nav_enhet %s: %w", id, err)
	}
	return e, nil
}

func (s *PostgresStore) UpsertArrangor(ctx context.Context, a Arrangor) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO arrangor (id, navn, organisasjonsnummer, overordnet_arrangor_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			navn = EXCLUDED.navn,
			organisasjonsnummer = EXCLUDED.organisasjonsnummer,
			overordnet_arrangor_id = EXCLUDED.overordnet_arrangor_id
	`, a.ID, a.Navn, a.Organisasjonsnummer, a.OverordnetArrangorID)
	if err != nil {
		return fmt.Errorf("upsert arrangor %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetArrangor(ctx context.Context, id uuid.UUID) (Arrangor, error) {
	var a Arrangor
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, navn, organisasjonsnummer, overordnet_arrangor_id
		FROM arrangor WHERE id = $1
	`, id).Scan(&a.ID, &a.Navn, &a.Organisasjonsnummer, &a.OverordnetArrangorID)
	if errors.Is(err, sql.ErrNoRows) {
		return Arrangor{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Arrangor{}, fmt.Errorf("get arrangor %s: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) DeleteArrangor(ctx context.Context, id uuid.UUID) error {
	if _, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM arrangor WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete arrangor %s: %w", id, err)
	}
	return nil
}
