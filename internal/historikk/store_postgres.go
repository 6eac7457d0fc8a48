package historikk

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

// PostgresStore implements Store on database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) AppendVedtak(ctx context.Context, v Vedtak) error {
	snapshot, err := json.Marshal(v.DeltakerVedVedtak)
	if err != nil {
		return fmt.Errorf("marshal vedtak snapshot: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO vedtak (
			id, deltaker_id, fattet, gyldig_til, deltaker_ved_vedtak, fattet_av_nav,
			opprettet, opprettet_av, sist_endret, sist_endret_av
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.DeltakerID, v.Fattet, v.GyldigTil, snapshot, v.FattetAvNav,
		v.Opprettet, v.OpprettetAv, v.SistEndret, v.SistEndretAv)
	if err != nil {
		return fmt.Errorf("append vedtak %s: %w", v.ID, err)
	}
	return nil
}

// latest row per vedtak id
const vedtakLatest = `
	SELECT DISTINCT ON (id)
		id, deltaker_id, fattet, gyldig_til, deltaker_ved_vedtak, fattet_av_nav,
		opprettet, opprettet_av, sist_endret, sist_endret_av
	FROM vedtak
	WHERE deltaker_id = $1
	ORDER BY id, sist_endret DESC
`

func (s *PostgresStore) ListVedtak(ctx context.Context, deltakerID uuid.UUID) ([]Vedtak, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, vedtakLatest, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("list vedtak for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []Vedtak
	for rows.Next() {
		v, err := scanVedtak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUfattetVedtak(ctx context.Context, deltakerID uuid.UUID) (Vedtak, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, deltaker_id, fattet, gyldig_til, deltaker_ved_vedtak, fattet_av_nav,
			opprettet, opprettet_av, sist_endret, sist_endret_av
		FROM (`+vedtakLatest+`) latest
		WHERE fattet IS NULL AND gyldig_til IS NULL
		ORDER BY opprettet DESC
		LIMIT 1
	`, deltakerID)
	v, err := scanVedtak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Vedtak{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Vedtak{}, fmt.Errorf("get ufattet vedtak for %s: %w", deltakerID, err)
	}
	return v, nil
}

func (s *PostgresStore) InsertEndring(ctx context.Context, e DeltakerEndring) error {
	endring, err := deltaker.MarshalEndring(e.Endring)
	if err != nil {
		return fmt.Errorf("marshal endring: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO deltaker_endring (id, deltaker_id, endring, endret_av, endret_av_enhet, endret, forslag_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.DeltakerID, endring, e.EndretAv, e.EndretAvEnhet, e.Endret, e.ForslagID)
	if err != nil {
		return fmt.Errorf("insert deltaker_endring %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListEndringer(ctx context.Context, deltakerID uuid.UUID) ([]DeltakerEndring, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, deltaker_id, endring, endret_av, endret_av_enhet, endret, forslag_id
		FROM deltaker_endring
		WHERE deltaker_id = $1
		ORDER BY endret DESC
	`, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("list endringer for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []DeltakerEndring
	for rows.Next() {
		var e DeltakerEndring
		var endring []byte
		if err := rows.Scan(&e.ID, &e.DeltakerID, &endring, &e.EndretAv, &e.EndretAvEnhet, &e.Endret, &e.ForslagID); err != nil {
			return nil, fmt.Errorf("scan deltaker_endring: %w", err)
		}
		e.Endring, err = deltaker.UnmarshalEndring(endring)
		if err != nil {
			return nil, fmt.Errorf("unmarshal endring %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendForslag(ctx context.Context, f Forslag) error {
	status, err := json.Marshal(f.Status)
	if err != nil {
		return fmt.Errorf("marshal forslag status: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO forslag (id, deltaker_id, opprettet_av, opprettet, begrunnelse, endring, status, sist_endret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, f.ID, f.DeltakerID, f.OpprettetAv, f.Opprettet, f.Begrunnelse, []byte(f.Endring), status, f.SistEndret)
	if err != nil {
		return fmt.Errorf("append forslag %s: %w", f.ID, err)
	}
	return nil
}

const forslagLatest = `
	SELECT DISTINCT ON (id)
		id, deltaker_id, opprettet_av, opprettet, begrunnelse, endring, status, sist_endret
	FROM forslag
`

func (s *PostgresStore) GetForslag(ctx context.Context, id uuid.UUID) (Forslag, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		forslagLatest+` WHERE id = $1 ORDER BY id, sist_endret DESC`, id)
	f, err := scanForslag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Forslag{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Forslag{}, fmt.Errorf("get forslag %s: %w", id, err)
	}
	return f, nil
}

func (s *PostgresStore) ListForslag(ctx context.Context, deltakerID uuid.UUID) ([]Forslag, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		forslagLatest+` WHERE deltaker_id = $1 ORDER BY id, sist_endret DESC`, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("list forslag for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []Forslag
	for rows.Next() {
		f, err := scanForslag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertEndringFraArrangor(ctx context.Context, e EndringFraArrangor) error {
	endring, err := json.Marshal(e.LeggTilOppstart)
	if err != nil {
		return fmt.Errorf("marshal endring fra arrangor: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO endring_fra_arrangor (id, deltaker_id, opprettet_av, opprettet, endring)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.DeltakerID, e.OpprettetAv, e.Opprettet, endring)
	if err != nil {
		return fmt.Errorf("insert endring_fra_arrangor %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListEndringFraArrangor(ctx context.Context, deltakerID uuid.UUID) ([]EndringFraArrangor, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, deltaker_id, opprettet_av, opprettet, endring
		FROM endring_fra_arrangor
		WHERE deltaker_id = $1
		ORDER BY opprettet DESC
	`, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("list endring_fra_arrangor for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []EndringFraArrangor
	for rows.Next() {
		var e EndringFraArrangor
		var endring []byte
		if err := rows.Scan(&e.ID, &e.DeltakerID, &e.OpprettetAv, &e.Opprettet, &endring); err != nil {
			return nil, fmt.Errorf("scan endring_fra_arrangor: %w", err)
		}
		if err := json.Unmarshal(endring, &e.LeggTilOppstart); err != nil {
			return nil, fmt.Errorf("unmarshal endring fra arrangor %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertEndringFraTiltakskoordinator(ctx context.Context, e EndringFraTiltakskoordinator) error {
	var aarsak []byte
	if e.Aarsak != nil {
		var err error
		aarsak, err = json.Marshal(e.Aarsak)
		if err != nil {
			return fmt.Errorf("marshal koordinator aarsak: %w", err)
		}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO endring_fra_tiltakskoordinator (id, deltaker_id, type, aarsak, begrunnelse, endret_av, endret)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.DeltakerID, e.Type, aarsak, e.Begrunnelse, e.EndretAv, e.Endret)
	if err != nil {
		return fmt.Errorf("insert endring_fra_tiltakskoordinator %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListEndringFraTiltakskoordinator(ctx context.Context, deltakerID uuid.UUID) ([]EndringFraTiltakskoordinator, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, deltaker_id, type, aarsak, begrunnelse, endret_av, endret
		FROM endring_fra_tiltakskoordinator
		WHERE deltaker_id = $1
		ORDER BY endret DESC
	`, deltakerID)
	if err != nil {
		return nil, fmt.Errorf("list endring_fra_tiltakskoordinator for %s: %w", deltakerID, err)
	}
	defer rows.Close()

	var out []EndringFraTiltakskoordinator
	for rows.Next() {
		var e EndringFraTiltakskoordinator
		var aarsak []byte
		if err := rows.Scan(&e.ID, &e.DeltakerID, &e.Type, &aarsak, &e.Begrunnelse, &e.EndretAv, &e.Endret); err != nil {
			return nil, fmt.Errorf("scan endring_fra_tiltakskoordinator: %w", err)
		}
		if len(aarsak) > 0 {
			if err := json.Unmarshal(aarsak, &e.Aarsak); err != nil {
				return nil, fmt.Errorf("unmarshal koordinator aarsak %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertImportertFraArena(ctx context.Context, i ImportertFraArena) error {
	// At most one import per deltaker.
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO importert_fra_arena (deltaker_id, importert, innsokt_dato)
		VALUES ($1, $2, $3)
		ON CONFLICT (deltaker_id) DO UPDATE SET
			importert = EXCLUDED.importert,
			innsokt_dato = EXCLUDED.innsokt_dato
	`, i.DeltakerID, i.Importert, i.InnsoktDato)
	if err != nil {
		return fmt.Errorf("upsert importert_fra_arena %s: %w", i.DeltakerID, err)
	}
	return nil
}

func (s *PostgresStore) GetImportertFraArena(ctx context.Context, deltakerID uuid.UUID) (*ImportertFraArena, error) {
	var i ImportertFraArena
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT deltaker_id, importert, innsokt_dato
		FROM importert_fra_arena
		WHERE deltaker_id = $1
	`, deltakerID).Scan(&i.DeltakerID, &i.Importert, &i.InnsoktDato)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get importert_fra_arena %s: %w", deltakerID, err)
	}
	return &i, nil
}

func (s *PostgresStore) SlettForDeltaker(ctx context.Context, deltakerID uuid.UUID) error {
	exec := s.execer(ctx)
	for _, query := range []string{
		`DELETE FROM vedtak WHERE deltaker_id = $1`,
		`DELETE FROM deltaker_endring WHERE deltaker_id = $1`,
		`DELETE FROM forslag WHERE deltaker_id = $1`,
		`DELETE FROM endring_fra_arrangor WHERE deltaker_id = $1`,
		`DELETE FROM endring_fra_tiltakskoordinator WHERE deltaker_id = $1`,
		`DELETE FROM importert_fra_arena WHERE deltaker_id = $1`,
	} {
		if _, err := exec.ExecContext(ctx, query, deltakerID); err != nil {
			return fmt.Errorf("slett historikk for %s: %w", deltakerID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVedtak(row rowScanner) (Vedtak, error) {
	var v Vedtak
	var snapshot []byte
	err := row.Scan(&v.ID, &v.DeltakerID, &v.Fattet, &v.GyldigTil, &snapshot, &v.FattetAvNav,
		&v.Opprettet, &v.OpprettetAv, &v.SistEndret, &v.SistEndretAv)
	if err != nil {
		return Vedtak{}, err
	}
	if err := json.Unmarshal(snapshot, &v.DeltakerVedVedtak); err != nil {
		return Vedtak{}, fmt.Errorf("unmarshal vedtak snapshot %s: %w", v.ID, err)
	}
	return v, nil
}

func scanForslag(row rowScanner) (Forslag, error) {
	var f Forslag
	var endring, status []byte
	err := row.Scan(&f.ID, &f.DeltakerID, &f.OpprettetAv, &f.Opprettet, &f.Begrunnelse, &endring, &status, &f.SistEndret)
	if err != nil {
		return Forslag{}, err
	}
	f.Endring = endring
	if err := json.Unmarshal(status, &f.Status); err != nil {
		return Forslag{}, fmt.Errorf("unmarshal forslag status %s: %w", f.ID, err)
	}
	return f, nil
}
