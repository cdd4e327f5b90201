package api

import (
	"errors"
	"net/http"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind gifting.Kind) int {
	switch kind {
	case gifting.KindInvalidAmount, gifting.KindInvalidGift, gifting.KindInvalidRequest:
		return http.StatusBadRequest
	case gifting.KindPaymentDeclined:
		return http.StatusPaymentRequired
	case gifting.KindCreatorCannotContribute, gifting.KindNotParticipant, gifting.KindNotEventCreator:
		return http.StatusForbidden
	case gifting.KindGiftNotFound, gifting.KindUserNotFound, gifting.KindEventNotFound:
		return http.StatusNotFound
	case gifting.KindGiftAlreadyFunded, gifting.KindExceedsRemaining,
		gifting.KindAccountExists, gifting.KindTransactionConflict:
		return http.StatusConflict
	case gifting.KindInsufficientFunds, gifting.KindRequestIDReused:
		return http.StatusUnprocessableEntity
	case gifting.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError classifies err and writes the user-facing response.
// Internal errors never leak their details.
func writeDomainError(w http.ResponseWriter, err error) {
	kind := gifting.KindOf(err)
	resp := ErrorResponse{
		Error: gifting.UserMessage(err),
		Code:  string(kind),
	}
	if kind != gifting.KindInternal {
		resp.Details = err.Error()
	}

	var short *generic.InsufficientFundsError
	if errors.As(err, &short) {
		resp.Available = money(short.Available)
		resp.Shortfall = money(short.Shortfall)
	}

	writeJSON(w, statusFor(kind), resp)
}

// writeError is used for failures that happen before the domain is reached:
// bad JSON, missing auth, and the like.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeFor(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(gifting.KindInvalidRequest)
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	default:
		return string(gifting.KindInternal)
	}
}
