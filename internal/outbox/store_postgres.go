package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

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
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, r Record) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, topic, key, value, opprettet)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.Topic, r.Key, r.Value, r.Opprettet)
	if err != nil {
		return fmt.Errorf("insert outbox record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, topic, key, value, opprettet
		FROM outbox
		ORDER BY opprettet, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Topic, &r.Key, &r.Value, &r.Opprettet); err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete outbox record %s: %w", id, err)
	}
	return nil
}
