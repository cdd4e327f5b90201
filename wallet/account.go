/*
Package wallet keeps each user's spendable balance.

PURPOSE:
  Wraps the generic ledger with wallet rules: accounts must exist, balances
  never go negative, and every mutation of a user's balance is serialized on
  that user's lock. It also owns the boundary to the external payment rail
  (Provider) used to top wallets up.

WHO MAY MUTATE A BALANCE:
  - gifting.Engine debits through Ledger.WithAccount while contributing
  - TopUpService credits after the provider confirms a payment
  - Ledger.Open grants the opening balance at signup
  Nothing else writes wallet transactions.

SEE ALSO:
  - ledger.go: Balance, Debit, Credit, WithAccount
  - topup.go: AddFunds
  - generic/ledger.go: Underlying append-only log
*/
package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/smartgifter/giftledger/generic"
)

// ErrInvalidAccount is returned when an account record is malformed.
var ErrInvalidAccount = errors.New("invalid account")

// Account is the wallet owner. The balance is never stored on it; it is
// derived from the ledger.
type Account struct {
	ID        generic.AccountID
	Name      string
	Email     string
	CreatedAt time.Time
}

// AccountStore persists account records.
type AccountStore interface {
	// CreateAccount stores a new account. Returns generic.ErrAccountExists on a duplicate id.
	CreateAccount(ctx context.Context, account Account) error

	// Account returns the account or generic.ErrAccountNotFound.
	Account(ctx context.Context, id generic.AccountID) (*Account, error)
}
