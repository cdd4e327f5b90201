package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/wallet"
)

// =============================================================================
// ACCOUNT STORE (wallet.AccountStore interface)
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account wallet.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, name, email, created_at) VALUES (?, ?, ?, ?)",
		account.ID, account.Name, account.Email, formatTime(account.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return generic.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) Account(ctx context.Context, id generic.AccountID) (*wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		account   wallet.Account
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, created_at FROM accounts WHERE id = ?", id,
	).Scan(&account.ID, &account.Name, &account.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, email, created_at FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []wallet.Account
	for rows.Next() {
		var (
			account   wallet.Account
			createdAt string
		)
		if err := rows.Scan(&account.ID, &account.Name, &account.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if account.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
