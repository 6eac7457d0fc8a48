package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/navikt/amt-deltaker-sub001/internal/deltaker"
	"github.com/navikt/amt-deltaker-sub001/pkg/platform/sentinel"
	txcontext "github.com/navikt/amt-deltaker-sub001/pkg/platform/tx"
)

// Postgres implements Store on database/sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const deltakerColumns = `
	d.id, d.deltakerliste_id, d.personident, d.startdato, d.sluttdato,
	d.deltakelsesprosent, d.dager_per_uke, d.bakgrunnsinformasjon, d.innhold,
	d.kilde, d.sist_endret, d.er_manuelt_delt_med_arrangor,
	ds.id, ds.type, ds.aarsak, ds.gyldig_fra, ds.gyldig_til, ds.opprettet
`

const deltakerJoin = `
	FROM deltaker d
	JOIN deltaker_status ds ON ds.deltaker_id = d.id AND ds.gyldig_til IS NULL
`

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (deltaker.Deltaker, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+deltakerColumns+deltakerJoin+` WHERE d.id = $1`, id)
	d, err := scanDeltaker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return deltaker.Deltaker{}, sentinel.ErrNotFound
	}
	if err != nil {
		return deltaker.Deltaker{}, fmt.Errorf("get deltaker %s: %w", id, err)
	}
	return d, nil
}

func (s *Postgres) ListForDeltakerliste(ctx context.Context, deltakerlisteID uuid.UUID) ([]deltaker.Deltaker, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+deltakerColumns+deltakerJoin+` WHERE d.deltakerliste_id = $1 ORDER BY d.id`, deltakerlisteID)
	if err != nil {
		return nil, fmt.Errorf("list deltakere for deltakerliste %s: %w", deltakerlisteID, err)
	}
	defer rows.Close()

	var out []deltaker.Deltaker
	for rows.Next() {
		d, err := scanDeltaker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deltaker: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Postgres) Upsert(ctx context.Context, d deltaker.Deltaker) error {
	var innhold []byte
	if d.Innhold != nil {
		var err error
		innhold, err = json.Marshal(d.Innhold)
		if err != nil {
			return fmt.Errorf("marshal innhold: %w", err)
		}
	}

	exec := s.execer(ctx)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO deltaker (
			id, deltakerliste_id, personident, startdato, sluttdato,
			deltakelsesprosent, dager_per_uke, bakgrunnsinformasjon, innhold,
			kilde, sist_endret, er_manuelt_delt_med_arrangor
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			startdato = EXCLUDED.startdato,
			sluttdato = EXCLUDED.sluttdato,
			deltakelsesprosent = EXCLUDED.deltakelsesprosent,
			dager_per_uke = EXCLUDED.dager_per_uke,
			bakgrunnsinformasjon = EXCLUDED.bakgrunnsinformasjon,
			innhold = EXCLUDED.innhold,
			sist_endret = EXCLUDED.sist_endret,
			er_manuelt_delt_med_arrangor = EXCLUDED.er_manuelt_delt_med_arrangor
	`,
		d.ID, d.DeltakerlisteID, d.Personident, d.Startdato, d.Sluttdato,
		d.Deltakelsesprosent, d.DagerPerUke, d.Bakgrunnsinformasjon, innhold,
		d.Kilde, d.SistEndret, d.ErManueltDeltMedArrangor,
	)
	if err != nil {
		return fmt.Errorf("upsert deltaker %s: %w", d.ID, err)
	}

	// Superseded statuses get a closed validity interval before the new open
	// row goes in, so the partial unique index on open rows always holds.
	_, err = exec.ExecContext(ctx, `
		UPDATE deltaker_status SET gyldig_til = $1
		WHERE deltaker_id = $2 AND id != $3 AND gyldig_til IS NULL
	`, d.SistEndret, d.ID, d.Status.ID)
	if err != nil {
		return fmt.Errorf("close superseded statuses: %w", err)
	}

	var aarsak []byte
	if d.Status.Aarsak != nil {
		aarsak, err = json.Marshal(d.Status.Aarsak)
		if err != nil {
			return fmt.Errorf("marshal aarsak: %w", err)
		}
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO deltaker_status (id, deltaker_id, type, aarsak, gyldig_fra, gyldig_til, opprettet)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)
		ON CONFLICT (id) DO NOTHING
	`, d.Status.ID, d.ID, d.Status.Type, aarsak, d.Status.GyldigFra, d.Status.Opprettet)
	if err != nil {
		return fmt.Errorf("insert deltaker_status: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	exec := s.execer(ctx)
	for _, query := range []string{
		`DELETE FROM deltakelsesmengde WHERE deltaker_id = $1`,
		`DELETE FROM deltaker_status WHERE deltaker_id = $1`,
		`DELETE FROM deltaker WHERE id = $1`,
	} {
		if _, err := exec.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("delete deltaker %s: %w", id, err)
		}
	}
	return nil
}

func (s *Postgres) GetMengder(ctx context.Context, deltakerID uuid.UUID) ([]deltaker.Deltakelsesmengde, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, deltaker_id, deltakelsesprosent, dager_per_uke, gyldig_fra, opprettet
		FROM deltakelsesmengde
		WHERE deltaker_id = $1
		ORDER BY gyldig_fra, opprettet
	`, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("get deltakelsesmengder for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []deltaker.Deltakelsesmengde
	for rows.Next() {
		var m deltaker.Deltakelsesmengde
		if err := rows.Scan(&m.ID, &m.DeltakerID, &m.Deltakelsesprosent, &m.DagerPerUke, &m.GyldigFra, &m.Opprettet); err != nil {
			return nil, fmt.Errorf("scan deltakelsesmengde: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Postgres) UpsertMengde(ctx context.Context, m deltaker.Deltakelsesmengde) error {
	// Unique per (deltaker, gyldig_fra); a later record for the same date
	// replaces the earlier one.
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO deltakelsesmengde (id, deltaker_id, deltakelsesprosent, dager_per_uke, gyldig_fra, opprettet)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (deltaker_id, gyldig_fra) DO UPDATE SET
			deltakelsesprosent = EXCLUDED.deltakelsesprosent,
			dager_per_uke = EXCLUDED.dager_per_uke,
			opprettet = EXCLUDED.opprettet
	`, m.ID, m.DeltakerID, m.Deltakelsesprosent, m.DagerPerUke, m.GyldigFra, m.Opprettet)
	if err != nil {
		return fmt.Errorf("upsert deltakelsesmengde: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeltaker(row rowScanner) (deltaker.Deltaker, error) {
	var d deltaker.Deltaker
	var innhold, aarsak []byte
	var gyldigTil sql.NullTime

	err := row.Scan(
		&d.ID, &d.DeltakerlisteID, &d.Personident, &d.Startdato, &d.Sluttdato,
		&d.Deltakelsesprosent, &d.DagerPerUke, &d.Bakgrunnsinformasjon, &innhold,
		&d.Kilde, &d.SistEndret, &d.ErManueltDeltMedArrangor,
		&d.Status.ID, &d.Status.Type, &aarsak, &d.Status.GyldigFra, &gyldigTil, &d.Status.Opprettet,
	)
	if err != nil {
		return deltaker.Deltaker{}, err
	}

	if len(innhold) > 0 {
		if err := json.Unmarshal(innhold, &d.Innhold); err != nil {
			return deltaker.Deltaker{}, fmt.Errorf("unmarshal innhold: %w", err)
		}
	}
	if len(aarsak) > 0 {
		if err := json.Unmarshal(aarsak, &d.Status.Aarsak); err != nil {
			return deltaker.Deltaker{}, fmt.Errorf("unmarshal aarsak: %w", err)
		}
	}
	if gyldigTil.Valid {
		t := gyldigTil.Time.UTC()
		d.Status.GyldigTil = &t
	}
	return d, nil
}
