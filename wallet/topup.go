/*
topup.go - Adding funds through the payment provider

FLOW:
  1. Validate amount and check the account exists (no lock)
  2. Ask the provider to charge (no lock held; may be slow)
  3. On a receipt, credit the wallet under the user lock

  A provider failure returns before step 3, so the wallet is untouched and
  the provider's error reaches the caller unchanged. Provider calls are
  never retried here.

IDEMPOTENCY:
  The credit carries the key "topup-<receipt id>". With a request id the
  provider is asked with the same key, returns the same receipt, and the
  second credit is rejected as a duplicate. The caller then gets the
  current balance.
*/
package wallet

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smartgifter/giftledger/generic"
)

// TopUpObserver is notified about top-up outcomes.
type TopUpObserver interface {
	TopUpCompleted(amount generic.Amount)
	TopUpFailed(reason string)
}

type TopUpService struct {
	Ledger   *Ledger
	Provider Provider
	Observer TopUpObserver
	Logger   *slog.Logger
}

func NewTopUpService(ledger *Ledger, provider Provider) *TopUpService {
	return &TopUpService{
		Ledger:   ledger,
		Provider: provider,
		Logger:   slog.Default(),
	}
}

// AddFunds charges the provider and credits the wallet. Returns the new balance.
func (s *TopUpService) AddFunds(ctx context.Context, userID generic.AccountID, amount generic.Amount, requestID string) (generic.Amount, error) {
	if amount.Currency == "" {
		amount.Currency = s.Ledger.Currency
	}
	if err := s.Ledger.checkAmount(amount); err != nil {
		return generic.Amount{}, err
	}
	if _, err := s.Ledger.Account(ctx, userID); err != nil {
		return generic.Amount{}, err
	}

	req := TopUpRequest{UserID: userID, Amount: amount}
	if requestID != "" {
		req.IdempotencyKey = "topup-" + string(userID) + "-" + requestID
	}

	receipt, err := s.Provider.RequestTopUp(ctx, req)
	if err != nil {
		s.logger().Warn("top-up failed at provider",
			"user", userID, "amount", amount.String(), "error", err)
		s.failed(err)
		return generic.Amount{}, err
	}

	balance, err := s.Ledger.Credit(ctx, userID, receipt.Amount, Entry{
		Type:           generic.TxTopUp,
		ReferenceID:    receipt.ID,
		Reason:         "wallet top-up",
		IdempotencyKey: "topup-" + receipt.ID,
	})
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		s.logger().Debug("top-up replayed", "user", userID, "receipt", receipt.ID)
		return s.Ledger.Balance(ctx, userID)
	}
	if err != nil {
		// The charge went through but the credit did not. The receipt id is
		// the reconciliation handle.
		s.logger().Error("top-up credit failed after charge",
			"user", userID, "receipt", receipt.ID, "error", err)
		s.failed(err)
		return generic.Amount{}, err
	}

	s.logger().Info("wallet topped up",
		"user", userID, "amount", receipt.Amount.String(), "balance", balance.String())
	if s.Observer != nil {
		s.Observer.TopUpCompleted(receipt.Amount)
	}
	return balance, nil
}

func (s *TopUpService) failed(err error) {
	if s.Observer == nil {
		return
	}
	switch {
	case errors.Is(err, ErrPaymentDeclined):
		s.Observer.TopUpFailed("declined")
	case errors.Is(err, ErrProviderUnavailable):
		s.Observer.TopUpFailed("unavailable")
	default:
		s.Observer.TopUpFailed("error")
	}
}

func (s *TopUpService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
