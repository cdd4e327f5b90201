/*
errors.go - Gifting error taxonomy

PURPOSE:
  Every failure a caller can see is classified into a Kind. Each Kind has a
  stable machine code and a non-technical message that can be shown to the
  person who clicked the button.

CLASSIFICATION:
  KindOf walks the error chain with errors.Is, so wrapped errors from the
  wallet, the generic ledger and the stores are classified the same way as
  errors raised here.

RETRIES:
  Only KindTransactionConflict is retried, and only by the engine itself.
  Callers never see a conflict unless every attempt failed.

SEE ALSO:
  - generic/errors.go: Ledger-level sentinels
  - wallet/provider.go: Provider sentinels
  - api/errors.go: Kind -> HTTP status
*/
package gifting

import (
	"errors"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/wallet"
)

var (
	ErrGiftNotFound            = errors.New("gift not found")
	ErrGiftAlreadyFunded       = errors.New("gift is already fully funded")
	ErrCreatorCannotContribute = errors.New("event creator cannot contribute to own gifts")
	ErrInvalidGift             = errors.New("invalid gift")
	ErrExceedsRemaining        = errors.New("contribution exceeds remaining amount")
	ErrEventNotFound           = errors.New("event not found")
	ErrInvalidEvent            = errors.New("invalid event")
	ErrNotParticipant          = errors.New("user is not invited to this event")
	ErrNotEventCreator         = errors.New("only the event creator can do this")
	ErrInvalidRSVP             = errors.New("invalid rsvp status")
	ErrRequestIDReused         = errors.New("request id was already used for a different contribution")

	// ErrContributionNotFound is returned by ContributionByKey for an unseen key.
	ErrContributionNotFound = errors.New("contribution not found")
)

// Kind is the stable, user-facing classification of an error.
type Kind string

const (
	KindInvalidAmount           Kind = "INVALID_AMOUNT"
	KindGiftNotFound            Kind = "GIFT_NOT_FOUND"
	KindGiftAlreadyFunded       Kind = "GIFT_ALREADY_FUNDED"
	KindCreatorCannotContribute Kind = "CREATOR_CANNOT_CONTRIBUTE"
	KindInsufficientFunds       Kind = "INSUFFICIENT_FUNDS"
	KindInvalidGift             Kind = "INVALID_GIFT"
	KindExceedsRemaining        Kind = "EXCEEDS_REMAINING"
	KindPaymentDeclined         Kind = "PAYMENT_DECLINED"
	KindProviderUnavailable     Kind = "PROVIDER_UNAVAILABLE"
	KindTransactionConflict     Kind = "TRANSACTION_CONFLICT"
	KindUserNotFound            Kind = "USER_NOT_FOUND"
	KindEventNotFound           Kind = "EVENT_NOT_FOUND"
	KindAccountExists           Kind = "ACCOUNT_EXISTS"
	KindNotParticipant          Kind = "NOT_PARTICIPANT"
	KindNotEventCreator         Kind = "NOT_EVENT_CREATOR"
	KindInvalidRequest          Kind = "INVALID_REQUEST"
	KindRequestIDReused         Kind = "REQUEST_ID_REUSED"
	KindInternal                Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{generic.ErrInvalidAmount, KindInvalidAmount},
	{generic.ErrCurrencyMismatch, KindInvalidAmount},
	{ErrGiftNotFound, KindGiftNotFound},
	{ErrGiftAlreadyFunded, KindGiftAlreadyFunded},
	{ErrCreatorCannotContribute, KindCreatorCannotContribute},
	{generic.ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInvalidGift, KindInvalidGift},
	{ErrExceedsRemaining, KindExceedsRemaining},
	{ErrRequestIDReused, KindRequestIDReused},
	{wallet.ErrPaymentDeclined, KindPaymentDeclined},
	{wallet.ErrProviderUnavailable, KindProviderUnavailable},
	{generic.ErrConcurrentModification, KindTransactionConflict},
	{generic.ErrAccountNotFound, KindUserNotFound},
	{ErrEventNotFound, KindEventNotFound},
	{generic.ErrAccountExists, KindAccountExists},
	{ErrNotParticipant, KindNotParticipant},
	{ErrNotEventCreator, KindNotEventCreator},
	{ErrInvalidRSVP, KindInvalidRequest},
	{ErrInvalidEvent, KindInvalidRequest},
	{wallet.ErrInvalidAccount, KindInvalidRequest},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

var messages = map[Kind]string{
	KindInvalidAmount:           "Please enter an amount greater than zero with at most two decimal places.",
	KindGiftNotFound:            "We couldn't find that gift. It may have been removed from the wishlist.",
	KindGiftAlreadyFunded:       "Good news: this gift is already fully funded!",
	KindCreatorCannotContribute: "You can't contribute to gifts for your own event.",
	KindInsufficientFunds:       "Your wallet balance is too low. Add funds and try again.",
	KindInvalidGift:             "This gift needs a name and a price greater than zero.",
	KindExceedsRemaining:        "That's more than this gift still needs. Try the remaining amount instead.",
	KindPaymentDeclined:         "Your payment was declined. Please try a different amount or payment method.",
	KindProviderUnavailable:     "We couldn't reach the payment service. No money was moved, please try again shortly.",
	KindTransactionConflict:     "Lots of people are giving right now. Please try again in a moment.",
	KindUserNotFound:            "We couldn't find that account.",
	KindEventNotFound:           "We couldn't find that event.",
	KindAccountExists:           "An account with that id already exists.",
	KindNotParticipant:          "You're not on the guest list for this event.",
	KindNotEventCreator:         "Only the event's creator can do that.",
	KindInvalidRequest:          "Some of the details you entered aren't valid.",
	KindRequestIDReused:         "This request was already used for a different contribution. Refresh and try again.",
	KindInternal:                "Something went wrong on our side. No money was moved.",
}

// UserMessage returns the non-technical message for err.
func UserMessage(err error) string {
	return messages[KindOf(err)]
}

// IsRetryable reports whether err is worth retrying the whole operation.
func IsRetryable(err error) bool {
	return generic.IsRetryable(err)
}
