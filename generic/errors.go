/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine-level error types in one place for consistency and discoverability.
  Domain packages (wallet, gifting) wrap these with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Validation errors - Amount and balance rule violations
  3. Concurrency errors - Lock or transaction could not be acquired

USAGE:
  if errors.Is(err, generic.ErrInsufficientFunds) {
      var detail *generic.InsufficientFundsError
      errors.As(err, &detail)
  }

SEE ALSO:
  - ledger.go: Uses these errors
  - locks.go: Returns ErrConcurrentModification
  - gifting/errors.go: Maps everything to the user-facing taxonomy
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInsufficientFunds is returned when a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero, negative or sub-cent amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrCurrencyMismatch is returned when two amounts in different currencies meet.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrConcurrentModification is returned when a lock or store transaction
	// could not be acquired in time. The whole operation may be retried.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when opening an account twice.
	ErrAccountExists = errors.New("account already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, shortfall %s",
		e.Available.Value.StringFixed(CurrencyPlaces),
		e.Requested.Value.StringFixed(CurrencyPlaces),
		e.Shortfall.Value.StringFixed(CurrencyPlaces))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}
