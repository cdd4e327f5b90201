/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists wallet transactions, accounts, events, gifts and contributions in a
  single SQLite database. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.Store / generic.TxStore: Wallet transactions
  wallet.AccountStore:             Accounts
  gifting.EventStore:              Events, participants, RSVPs
  gifting.GiftRepository:          Gifts and contribution logs
  gifting.EventDirectory:          Gift -> event lookup

APPEND-ONLY ENFORCEMENT:
  wallet_transactions and contributions are never updated or deleted (Reset
  aside). Order of commit is the seq column, never a timestamp.

IDEMPOTENCY:
  Both append-only tables carry a UNIQUE idempotency_key. A violation is
  reported as generic.ErrDuplicateIdempotencyKey.

CONCURRENCY:
  A sync.RWMutex serializes writers the way SQLite does anyway, so callers
  see a clean error instead of SQLITE_BUSY. WithTx holds the write lock for
  the whole transaction and its inner store only talks to the *sql.Tx.

  ":memory:" databases are limited to one connection: every new connection
  to ":memory:" would otherwise open a fresh, empty database.

USAGE:
  store, err := sqlite.New("./data/giftledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - ledger.go: Wallet transactions
  - gifts.go, events.go, accounts.go: Domain records
  - store/memory: In-process implementation of the same interfaces
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/smartgifter/giftledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Wallet ledger (append-only)
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		delta_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_account
		ON wallet_transactions(account_id, seq);
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_reference
		ON wallet_transactions(reference_id) WHERE reference_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		event_date TEXT,
		event_type TEXT NOT NULL,
		creator TEXT NOT NULL REFERENCES accounts(id),
		privacy TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_participants (
		event_id TEXT NOT NULL REFERENCES events(id),
		user_id TEXT NOT NULL REFERENCES accounts(id),
		position INTEGER NOT NULL,
		rsvp TEXT,
		PRIMARY KEY (event_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS gifts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		event_id TEXT NOT NULL REFERENCES events(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		price_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gifts_event ON gifts(event_id, seq);

	-- Contribution log (append-only)
	CREATE TABLE IF NOT EXISTS contributions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		gift_id TEXT NOT NULL REFERENCES gifts(id),
		user_id TEXT NOT NULL REFERENCES accounts(id),
		amount_value TEXT NOT NULL,
		currency TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contributions_gift ON contributions(gift_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Children first so foreign keys hold at every step.
	tables := []string{"contributions", "gifts", "event_participants", "events", "wallet_transactions", "accounts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseAmount(value, currency string) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("corrupt amount %q: %w", value, err)
	}
	return generic.NewAmount(d, generic.Currency(currency)), nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
