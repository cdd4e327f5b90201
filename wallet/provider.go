package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/smartgifter/giftledger/generic"
)

//go:generate mockgen -source=provider.go -destination=mock/provider.go -package=mock_wallet

var (
	// ErrPaymentDeclined is returned when the provider refuses the charge.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrProviderUnavailable is returned when the provider cannot be reached
	// or does not answer in time. No funds were moved.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// TopUpRequest asks the payment rail to charge the user.
type TopUpRequest struct {
	UserID         generic.AccountID
	Amount         generic.Amount
	IdempotencyKey string
}

// Receipt confirms a completed charge.
type Receipt struct {
	ID          string
	Amount      generic.Amount
	ProcessedAt time.Time
}

// Provider is the external payment rail. Implementations must not touch the
// ledger; the caller credits the wallet once a Receipt comes back.
type Provider interface {
	RequestTopUp(ctx context.Context, req TopUpRequest) (Receipt, error)
}
