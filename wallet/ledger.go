package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smartgifter/giftledger/generic"
)

// Entry describes why a balance changes.
type Entry struct {
	Type           generic.TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// Ledger is the wallet balance store. It is the only writer of wallet
// transactions.
type Ledger struct {
	Accounts AccountStore
	Ledger   generic.Ledger
	Locks    *generic.Locker
	Currency generic.Currency
	Now      func() time.Time
}

func NewLedger(accounts AccountStore, ledger generic.Ledger, locks *generic.Locker, currency generic.Currency) *Ledger {
	return &Ledger{
		Accounts: accounts,
		Ledger:   ledger,
		Locks:    locks,
		Currency: currency,
		Now:      time.Now,
	}
}

// Open creates an account and grants its opening balance.
func (l *Ledger) Open(ctx context.Context, account Account, opening generic.Amount) (generic.Amount, error) {
	if account.ID == "" {
		return generic.Amount{}, fmt.Errorf("%w: id is required", ErrInvalidAccount)
	}
	if opening.Currency == "" {
		opening.Currency = l.Currency
	}
	if opening.IsNegative() {
		return generic.Amount{}, fmt.Errorf("%w: opening balance %s is negative", generic.ErrInvalidAmount, opening)
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = l.Now().UTC()
	}

	if err := l.Accounts.CreateAccount(ctx, account); err != nil {
		return generic.Amount{}, err
	}
	if opening.IsZero() {
		return opening, nil
	}
	return l.Credit(ctx, account.ID, opening, Entry{
		Type:           generic.TxGrant,
		Reason:         "opening balance",
		IdempotencyKey: "open-" + string(account.ID),
	})
}

// Account returns the account record.
func (l *Ledger) Account(ctx context.Context, id generic.AccountID) (*Account, error) {
	return l.Accounts.Account(ctx, id)
}

// Balance returns the current balance. Fails with generic.ErrAccountNotFound
// for unknown users.
func (l *Ledger) Balance(ctx context.Context, id generic.AccountID) (generic.Amount, error) {
	if _, err := l.Accounts.Account(ctx, id); err != nil {
		return generic.Amount{}, err
	}
	return l.Ledger.Balance(ctx, id, l.Currency)
}

// Summary returns the balance with its breakdown.
func (l *Ledger) Summary(ctx context.Context, id generic.AccountID) (generic.Balance, error) {
	txs, err := l.History(ctx, id)
	if err != nil {
		return generic.Balance{}, err
	}
	return generic.Summarize(id, txs, l.Currency), nil
}

// History returns the account's transactions in commit order.
func (l *Ledger) History(ctx context.Context, id generic.AccountID) ([]generic.Transaction, error) {
	if _, err := l.Accounts.Account(ctx, id); err != nil {
		return nil, err
	}
	return l.Ledger.Transactions(ctx, id)
}

// Debit takes amount from the account. Fails with an
// *generic.InsufficientFundsError when amount exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, id generic.AccountID, amount generic.Amount, entry Entry) (generic.Amount, error) {
	var balance generic.Amount
	err := l.WithAccount(ctx, id, func(a *LockedAccount) error {
		var err error
		balance, err = a.Debit(ctx, amount, entry)
		return err
	})
	return balance, err
}

// Credit adds amount to the account.
func (l *Ledger) Credit(ctx context.Context, id generic.AccountID, amount generic.Amount, entry Entry) (generic.Amount, error) {
	var balance generic.Amount
	err := l.WithAccount(ctx, id, func(a *LockedAccount) error {
		var err error
		balance, err = a.Credit(ctx, amount, entry)
		return err
	})
	return balance, err
}

// WithAccount runs fn while holding the user's lock. Everything fn does
// through the LockedAccount is serialized with every other balance mutation
// of that user.
func (l *Ledger) WithAccount(ctx context.Context, id generic.AccountID, fn func(*LockedAccount) error) error {
	release, err := l.Locks.Acquire(ctx, generic.UserKey(id))
	if err != nil {
		return err
	}
	defer release()

	if _, err := l.Accounts.Account(ctx, id); err != nil {
		return err
	}
	return fn(&LockedAccount{ledger: l, id: id})
}

// =============================================================================
// LOCKED ACCOUNT - Balance operations with the user lock held
// =============================================================================

// LockedAccount is only valid inside WithAccount.
type LockedAccount struct {
	ledger *Ledger
	id     generic.AccountID
}

func (a *LockedAccount) ID() generic.AccountID { return a.id }

func (a *LockedAccount) Balance(ctx context.Context) (generic.Amount, error) {
	return a.ledger.Ledger.Balance(ctx, a.id, a.ledger.Currency)
}

func (a *LockedAccount) Debit(ctx context.Context, amount generic.Amount, entry Entry) (generic.Amount, error) {
	if err := a.ledger.checkAmount(amount); err != nil {
		return generic.Amount{}, err
	}

	var balance generic.Amount
	err := a.ledger.Ledger.WithTx(ctx, func(tx generic.Ledger) error {
		current, err := tx.Balance(ctx, a.id, a.ledger.Currency)
		if err != nil {
			return err
		}
		if amount.GreaterThan(current) {
			return &generic.InsufficientFundsError{
				AccountID: a.id,
				Available: current,
				Requested: amount,
				Shortfall: amount.Sub(current),
			}
		}
		if err := tx.Append(ctx, a.ledger.transaction(a.id, amount.Neg(), entry)); err != nil {
			return err
		}
		balance = current.Sub(amount)
		return nil
	})
	return balance, err
}

func (a *LockedAccount) Credit(ctx context.Context, amount generic.Amount, entry Entry) (generic.Amount, error) {
	if err := a.ledger.checkAmount(amount); err != nil {
		return generic.Amount{}, err
	}

	var balance generic.Amount
	err := a.ledger.Ledger.WithTx(ctx, func(tx generic.Ledger) error {
		if err := tx.Append(ctx, a.ledger.transaction(a.id, amount, entry)); err != nil {
			return err
		}
		var err error
		balance, err = tx.Balance(ctx, a.id, a.ledger.Currency)
		return err
	})
	return balance, err
}

func (l *Ledger) checkAmount(amount generic.Amount) error {
	if err := amount.ValidatePositive(); err != nil {
		return err
	}
	if amount.Currency != l.Currency {
		return fmt.Errorf("%w: wallet holds %s, got %s", generic.ErrCurrencyMismatch, l.Currency, amount.Currency)
	}
	return nil
}

func (l *Ledger) transaction(id generic.AccountID, delta generic.Amount, entry Entry) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		AccountID:      id,
		Delta:          delta,
		Type:           entry.Type,
		ReferenceID:    entry.ReferenceID,
		Reason:         entry.Reason,
		IdempotencyKey: entry.IdempotencyKey,
		Metadata:       entry.Metadata,
		CreatedAt:      l.Now().UTC(),
	}
}
