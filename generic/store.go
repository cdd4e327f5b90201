/*
store.go - Persistence interface for wallet transactions

PURPOSE:
  Defines the interface between the ledger logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Core transaction persistence (append, load, exists)
  TxStore: Transactional operations (balance check + append in one unit)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  A write carrying an idempotency key that already exists is rejected with
  ErrDuplicateIdempotencyKey. This prevents duplicate debits from network
  retries or double-clicks.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
*/
package generic

import "context"

// Store handles persistence of transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for an account, in commit order.
	Load(ctx context.Context, accountID AccountID) ([]Transaction, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
// Use it when a read and the write that depends on it must commit together.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
