package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selfmodel/mirror/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS events (
    id          BIGSERIAL PRIMARY KEY,
    ts          TEXT NOT NULL,
    kind        TEXT NOT NULL,
    content     TEXT NOT NULL,
    meta        JSONB NOT NULL DEFAULT '{}',
    prev_hash   TEXT NOT NULL,
    hash        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, id);
`

// PostgresEventStore backs the ledger with an append-only events table.
type PostgresEventStore struct {
	db *pgxpool.Pool
}

// NewPostgresEventStore applies the schema and returns the store.
func NewPostgresEventStore(ctx context.Context, db *pgxpool.Pool) (*PostgresEventStore, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresEventStore{db: db}, nil
}

func (s *PostgresEventStore) Append(ctx context.Context, e *domain.Event) error {
	meta, err := encodeMeta(e.Meta)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO events (ts, kind, content, meta, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.TS, e.Kind, e.Content, meta, e.PrevHash, e.Hash,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) ReadAll(ctx context.Context) ([]domain.Event, error) {
	return s.query(ctx,
		`SELECT id, ts, kind, content, meta::text, prev_hash, hash FROM events ORDER BY id`)
}

func (s *PostgresEventStore) ReadFrom(ctx context.Context, afterID int64) ([]domain.Event, error) {
	return s.query(ctx,
		`SELECT id, ts, kind, content, meta::text, prev_hash, hash FROM events WHERE id > $1 ORDER BY id`,
		afterID)
}

func (s *PostgresEventStore) Last(ctx context.Context) (*domain.Event, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, ts, kind, content, meta::text, prev_hash, hash FROM events ORDER BY id DESC LIMIT 1`)

	e, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *PostgresEventStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresEventStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresEventStore) query(ctx context.Context, q string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
