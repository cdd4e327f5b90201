package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/smartgifter/giftledger/generic"
)

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a transaction to the wallet ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := appendBatchTx(ctx, sqlTx, txs); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Load returns all transactions for an account in commit order.
func (s *Store) Load(ctx context.Context, accountID generic.AccountID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadTx(ctx, s.db, accountID)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return existsTx(ctx, s.db, idempotencyKey)
}

func appendTx(ctx context.Context, db execer, tx generic.Transaction) error {
	var metadata sql.NullString
	if len(tx.Metadata) > 0 {
		raw, err := json.Marshal(tx.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	query := `
		INSERT INTO wallet_transactions
		(id, account_id, delta_value, currency, tx_type, reference_id, reason,
		 idempotency_key, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Delta.Value.String(),
		tx.Delta.Currency,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		metadata,
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		if isForeignKeyError(err) {
			return generic.ErrAccountNotFound
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func appendBatchTx(ctx context.Context, db execer, txs []generic.Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		if err := appendTx(ctx, db, tx); err != nil {
			return err
		}
	}
	return nil
}

func loadTx(ctx context.Context, db querier, accountID generic.AccountID) ([]generic.Transaction, error) {
	query := `
		SELECT id, account_id, delta_value, currency, tx_type, reference_id, reason,
		       idempotency_key, metadata_json, created_at
		FROM wallet_transactions
		WHERE account_id = ?
		ORDER BY seq ASC
	`

	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []generic.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

func existsTx(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM wallet_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		deltaValue     string
		currency       string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.AccountID, &deltaValue, &currency, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if tx.Delta, err = parseAmount(deltaValue, currency); err != nil {
		return tx, err
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return tx, fmt.Errorf("failed to parse created_at: %w", err)
	}
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store passed to fn
// must not be used after fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every statement on the open *sql.Tx. It never touches the
// parent's mutex, which WithTx already holds.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	return appendBatchTx(ctx, ts.tx, txs)
}

func (ts *txStore) Load(ctx context.Context, accountID generic.AccountID) ([]generic.Transaction, error) {
	return loadTx(ctx, ts.tx, accountID)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return existsTx(ctx, ts.tx, idempotencyKey)
}
