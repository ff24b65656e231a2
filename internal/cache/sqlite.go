package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLite persists runs in a single table keyed by request id.
type SQLite struct {
	DBPath string
	db     *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the run cache at path.
func OpenSQLite(path string) (*SQLite, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cache.OpenSQLite: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("cache.OpenSQLite: ensure dir: %w", err)
	}
	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("cache.OpenSQLite: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_ns INTEGER NOT NULL,
	record_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_ns ON runs(created_ns);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache.OpenSQLite: create schema: %w", err)
	}
	return &SQLite{DBPath: absPath, db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, rec Record) error {
	rec = stamp(rec)
	if rec.ID == "" {
		return fmt.Errorf("cache.Put: record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache.Put: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, created_ns, record_json) VALUES (?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("cache.Put: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record_json FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("cache.Get %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("cache.Get: %w", err)
	}
	return decode(data)
}

func (s *SQLite) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM runs ORDER BY created_ns DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache.List: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("cache.List: %w", err)
		}
		rec, err := decode(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func decode(data string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Record{}, fmt.Errorf("cache: decode record: %w", err)
	}
	return rec, nil
}
