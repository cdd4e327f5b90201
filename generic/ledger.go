/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for all balance changes.
  Every grant, top-up, contribution and reversal is recorded here.
  Balance is always computed by replaying transactions - there's no
  separate "balance" column that can drift from the history.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A contribution whose gift append fails is not deleted. Instead a
  TxReversal with the opposite sign is appended, referencing the original.

  wallet ledger: [+100 grant, -40 contribution, +40 reversal] = 100

SEE ALSO:
  - store.go: Low-level persistence interface
  - wallet/ledger.go: Wallet-level wrapper with locking and overdraft checks
*/
package generic

import "context"

// Ledger is the source of truth for all balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for an account, in commit order.
	Transactions(ctx context.Context, accountID AccountID) ([]Transaction, error)

	// Balance computes the current balance by replaying transactions.
	Balance(ctx context.Context, accountID AccountID, currency Currency) (Amount, error)

	// WithTx runs fn against a ledger bound to a single store transaction
	// when the store supports it, and against this ledger otherwise.
	WithTx(ctx context.Context, fn func(Ledger) error) error
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, accountID AccountID) ([]Transaction, error) {
	return l.Store.Load(ctx, accountID)
}

func (l *DefaultLedger) Balance(ctx context.Context, accountID AccountID, currency Currency) (Amount, error) {
	txs, err := l.Store.Load(ctx, accountID)
	if err != nil {
		return Amount{}, err
	}
	return Summarize(accountID, txs, currency).Available, nil
}

func (l *DefaultLedger) WithTx(ctx context.Context, fn func(Ledger) error) error {
	txStore, ok := l.Store.(TxStore)
	if !ok {
		return fn(l)
	}
	return txStore.WithTx(ctx, func(s Store) error {
		return fn(&DefaultLedger{Store: s})
	})
}
