package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jeffawe/LedgerMind/internal/domain"

	_ "modernc.org/sqlite"
)

// DefaultStoreName is the source name of a Store opened without one.
const DefaultStoreName = "sqlite"

// Store is a Source backed by a SQLite database of imported transactions.
type Store struct {
	DBPath string
	name   string
	db     *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path, name string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ledger.Open: ensure dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("ledger.Open: %w", err)
	}
	if name == "" {
		name = DefaultStoreName
	}

	store := &Store{DBPath: absPath, name: name, db: db}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	posted_on TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	amount REAL NOT NULL,
	currency TEXT NOT NULL,
	txn_type TEXT NOT NULL,
	account_id TEXT,
	metadata_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_posted_on ON transactions(posted_on);

CREATE TABLE IF NOT EXISTS imports (
	hash TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	imported_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	row_count INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ledger: create schema: %w", err)
	}
	return nil
}

// Upsert inserts or replaces txns in a single transaction and returns how
// many rows were written.
func (s *Store) Upsert(ctx context.Context, txns []Transaction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger.Upsert: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO transactions (id, posted_on, description, category, amount, currency, txn_type, account_id, metadata_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	posted_on = excluded.posted_on,
	description = excluded.description,
	category = excluded.category,
	amount = excluded.amount,
	currency = excluded.currency,
	txn_type = excluded.txn_type,
	account_id = excluded.account_id,
	metadata_json = excluded.metadata_json`)
	if err != nil {
		return 0, fmt.Errorf("ledger.Upsert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		meta := "{}"
		if len(t.Metadata) > 0 {
			data, err := json.Marshal(t.Metadata)
			if err != nil {
				return 0, fmt.Errorf("ledger.Upsert: marshal metadata for %s: %w", t.ID, err)
			}
			meta = string(data)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.PostedOn.String(), t.Description, t.Category,
			t.Amount, t.Currency, string(t.Type), nullable(t.AccountID), meta); err != nil {
			return 0, fmt.Errorf("ledger.Upsert: insert %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger.Upsert: commit: %w", err)
	}
	return len(txns), nil
}

// Import upserts the transactions of f unless a file with the same hash was
// imported before. It reports whether rows were written.
func (s *Store) Import(ctx context.Context, f *File) (bool, error) {
	var existing string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM imports WHERE hash = ?", f.Hash).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("ledger.Import: check hash: %w", err)
	}

	if _, err := s.Upsert(ctx, f.Transactions); err != nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO imports (hash, path, row_count) VALUES (?, ?, ?)",
		f.Hash, filepath.Base(f.Path), len(f.Transactions)); err != nil {
		return false, fmt.Errorf("ledger.Import: record import: %w", err)
	}
	return true, nil
}

// Count returns the number of stored transactions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger.Count: %w", err)
	}
	return n, nil
}

// Transactions pushes the date range and currency down to SQL and applies
// the remaining filters in memory.
func (s *Store) Transactions(ctx context.Context, q domain.TransactionQuery) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !q.DateRange.Start.IsZero() {
		where = append(where, "posted_on >= ?")
		args = append(args, q.DateRange.Start.String())
	}
	if !q.DateRange.End.IsZero() {
		where = append(where, "posted_on <= ?")
		args = append(args, q.DateRange.End.String())
	}
	if q.Currency != "" {
		where = append(where, "currency = ?")
		args = append(args, q.Currency)
	}

	query := "SELECT id, posted_on, description, category, amount, currency, txn_type, account_id, metadata_json FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY posted_on, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger.Transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t         Transaction
			postedOn  string
			txnType   string
			accountID sql.NullString
			metaJSON  sql.NullString
		)
		if err := rows.Scan(&t.ID, &postedOn, &t.Description, &t.Category, &t.Amount,
			&t.Currency, &txnType, &accountID, &metaJSON); err != nil {
			return nil, fmt.Errorf("ledger.Transactions: scan: %w", err)
		}
		if t.PostedOn, err = domain.ParseDate(postedOn); err != nil {
			return nil, fmt.Errorf("ledger.Transactions: %s: %w", t.ID, err)
		}
		t.Type = domain.TxnType(txnType)
		t.AccountID = accountID.String
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "{}" {
			if err := json.Unmarshal([]byte(metaJSON.String), &t.Metadata); err != nil {
				return nil, fmt.Errorf("ledger.Transactions: metadata for %s: %w", t.ID, err)
			}
		}
		if Matches(t, q) {
			out = append(out, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger.Transactions: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
