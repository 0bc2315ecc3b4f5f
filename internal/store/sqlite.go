// Package store provides the persistence backends for the event ledger.
// Stores only persist and order records; hash chaining and kind validation
// happen in the ledger above them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/selfmodel/mirror/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          TEXT NOT NULL,
    kind        TEXT NOT NULL,
    content     TEXT NOT NULL,
    meta        TEXT NOT NULL DEFAULT '{}',
    prev_hash   TEXT NOT NULL,
    hash        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, id);
`

// SQLiteEventStore is the default durable backend: a single local file,
// WAL journal mode, schema applied on open.
type SQLiteEventStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the event database at the given path.
func OpenSQLite(path string) (*SQLiteEventStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteEventStore{db: db}, nil
}

func (s *SQLiteEventStore) Append(ctx context.Context, e *domain.Event) error {
	meta, err := encodeMeta(e.Meta)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, kind, content, meta, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.TS, e.Kind, e.Content, meta, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return nil
}

func (s *SQLiteEventStore) ReadAll(ctx context.Context) ([]domain.Event, error) {
	return s.query(ctx,
		`SELECT id, ts, kind, content, meta, prev_hash, hash FROM events ORDER BY id`)
}

func (s *SQLiteEventStore) ReadFrom(ctx context.Context, afterID int64) ([]domain.Event, error) {
	return s.query(ctx,
		`SELECT id, ts, kind, content, meta, prev_hash, hash FROM events WHERE id > ? ORDER BY id`,
		afterID)
}

func (s *SQLiteEventStore) Last(ctx context.Context) (*domain.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ts, kind, content, meta, prev_hash, hash FROM events ORDER BY id DESC LIMIT 1`)

	e, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *SQLiteEventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteEventStore) query(ctx context.Context, q string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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

func scanEvent(scan func(...any) error) (*domain.Event, error) {
	var e domain.Event
	var meta string
	if err := scan(&e.ID, &e.TS, &e.Kind, &e.Content, &meta, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	if err := decodeMeta(meta, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(b), nil
}

func decodeMeta(raw string, e *domain.Event) error {
	if raw == "" || raw == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &e.Meta); err != nil {
		return fmt.Errorf("decode meta for event %d: %w", e.ID, err)
	}
	return nil
}
