/*
Package generic provides the core money ledger engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for keeping
  monetary balances. Whether the account is a guest's gifting wallet or a
  pooled fund, the same engine handles amounts, transaction logging, balance
  derivation and per-resource locking.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a currency (e.g., 40.00 USD)
  - Transaction: An immutable ledger entry recording a balance change
  - AccountID / TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified, only reversed
  2. Precision: Uses decimal.Decimal, never float64, for money
  3. Type Safety: Strong typing for IDs prevents mixing account/transaction IDs
  4. Auditability: Every transaction has type, reason, reference and idempotency key

USAGE:
  amount := generic.MustAmount("40.00", generic.USD)
  tx := generic.Transaction{
      AccountID: "user-1",
      Delta:     amount.Neg(),
      Type:      generic.TxContribution,
  }

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - balance.go: Balance derivation from transactions
  - ledger.go: Transaction persistence interface
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Decimal quantity with currency
// =============================================================================

// Currency is an ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
)

// CurrencyPlaces is the number of fractional digits money is kept at.
const CurrencyPlaces int32 = 2

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewAmount(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

func ZeroAmount(currency Currency) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

// ParseAmount parses a decimal string such as "40.00".
func ParseAmount(s string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, s)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// MustAmount is ParseAmount for literals in tests and seed data.
func MustAmount(s string, currency Currency) Amount {
	a, err := ParseAmount(s, currency)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) && a.Currency == b.Currency }
func (a Amount) Round() Amount                { return Amount{Value: a.Value.Round(CurrencyPlaces), Currency: a.Currency} }
func (a Amount) String() string               { return a.Value.StringFixed(CurrencyPlaces) + " " + string(a.Currency) }

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ValidatePositive rejects zero, negative and sub-cent amounts.
func (a Amount) ValidatePositive() error {
	if !a.Value.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, a.Value.String())
	}
	if !a.Value.Equal(a.Value.Round(CurrencyPlaces)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, a.Value.String(), CurrencyPlaces)
	}
	if a.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidAmount)
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to an account balance
// =============================================================================

type TransactionType string

const (
	TxGrant        TransactionType = "grant"        // Opening balance, welcome bonus
	TxTopUp        TransactionType = "topup"        // Funds added through the payment provider
	TxContribution TransactionType = "contribution" // Funds pledged to a gift
	TxReversal     TransactionType = "reversal"     // Compensates a previous transaction
	TxAdjustment   TransactionType = "adjustment"   // Manual admin correction
)

type Transaction struct {
	ID             TransactionID
	AccountID      AccountID
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// IsCredit reports whether the transaction increases the balance.
func (t Transaction) IsCredit() bool { return t.Delta.IsPositive() }
