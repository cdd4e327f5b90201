/*
engine.go - Contributing wallet funds to a gift

PURPOSE:
  Contribute moves money from one user's wallet onto one gift. The debit and
  the contribution append form a single logical transaction: either both are
  visible or neither is.

CHECK ORDER:
  1. Gift exists                       -> ErrGiftNotFound
  2. Amount positive, 2 places, same currency as the gift
                                       -> generic.ErrInvalidAmount
  3. Requester is not the event creator -> ErrCreatorCannotContribute
  4. Gift is not fully funded           -> ErrGiftAlreadyFunded
  5. Amount within remaining (policy)   -> ErrExceedsRemaining
  6. Amount within wallet balance       -> generic.ErrInsufficientFunds

LOCKING:
  gift lock -> user lock -> debit -> append -> release (reverse)

  The gift lock makes "is it funded / how much remains" and the append
  atomic with respect to other contributors. The user lock makes the balance
  check and the debit atomic with respect to the user's other spending.
  A lock wait past the timeout is a conflict and the whole attempt is
  retried from step 1.

COMPENSATION:
  If the append fails after the debit committed, a TxReversal credit for the
  same amount is written while the user lock is still held. The ledger then
  reads [-x contribution, +x reversal] and the balance is unchanged.

IDEMPOTENCY:
  A request with a RequestID is deduplicated per user. A replay returns the
  already-committed contribution and debits nothing. A request id that
  already belongs to a contribution to another gift, or for another amount,
  fails with ErrRequestIDReused.

  The key is looked up twice: under the gift lock, so replays skip the
  business checks, and again under the user lock right before the debit.
  The key is scoped to the user, so the second lookup cannot race with a
  request for the same key on another gift.

SEE ALSO:
  - funding.go: Remaining, Status
  - wallet/ledger.go: WithAccount, LockedAccount.Debit
  - generic/locks.go: Locker
*/
package gifting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/wallet"
)

// Policy tunes business rules that are product decisions rather than
// invariants.
type Policy struct {
	// AllowOverfunding lets a contribution exceed the remaining amount.
	// The gift still stops accepting contributions once funded.
	AllowOverfunding bool

	Retry generic.RetryPolicy
}

func DefaultPolicy() Policy {
	return Policy{Retry: generic.DefaultRetryPolicy()}
}

// Observer receives engine outcomes, typically for metrics.
type Observer interface {
	ContributionCommitted(amount generic.Amount, completedGift bool)
	ContributionRejected(kind Kind)
	ConflictRetried()
	Compensated()
}

type ContributeRequest struct {
	GiftID    GiftID
	UserID    UserID
	Amount    generic.Amount
	Message   string
	RequestID string
}

type ContributionResult struct {
	Gift         GiftItem
	Funding      FundingState
	Contribution Contribution
	Balance      generic.Amount
	Replayed     bool
}

type Engine struct {
	Gifts     GiftRepository
	Directory EventDirectory
	Wallets   *wallet.Ledger
	Locks     *generic.Locker
	Policy    Policy
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewEngine shares the wallet's Locker so gift and user locks come from the
// same table.
func NewEngine(gifts GiftRepository, directory EventDirectory, wallets *wallet.Ledger) *Engine {
	return &Engine{
		Gifts:     gifts,
		Directory: directory,
		Wallets:   wallets,
		Locks:     wallets.Locks,
		Policy:    DefaultPolicy(),
		Logger:    slog.Default(),
		Now:       time.Now,
	}
}

// Contribute pledges req.Amount from the user's wallet to the gift.
func (e *Engine) Contribute(ctx context.Context, req ContributeRequest) (*ContributionResult, error) {
	if req.Amount.Currency == "" {
		req.Amount.Currency = e.Wallets.Currency
	}

	var result *ContributionResult
	err := generic.RetryOnConflict(ctx, e.Policy.Retry, func() error {
		var err error
		result, err = e.contribute(ctx, req)
		return err
	}, func(err error) {
		e.logger().Debug("contribution conflict, retrying",
			"gift", req.GiftID, "user", req.UserID, "error", err)
		if e.Observer != nil {
			e.Observer.ConflictRetried()
		}
	})
	if err != nil {
		kind := KindOf(err)
		if kind == KindInternal {
			e.logger().Error("contribution failed",
				"gift", req.GiftID, "user", req.UserID, "error", err)
		} else {
			e.logger().Debug("contribution rejected",
				"gift", req.GiftID, "user", req.UserID, "kind", kind)
		}
		if e.Observer != nil {
			e.Observer.ContributionRejected(kind)
		}
		return nil, err
	}

	if result.Replayed {
		e.logger().Info("contribution replayed",
			"gift", req.GiftID, "user", req.UserID, "contribution", result.Contribution.ID)
		return result, nil
	}

	e.logger().Info("contribution committed",
		"gift", req.GiftID,
		"user", req.UserID,
		"amount", req.Amount.String(),
		"remaining", result.Funding.Remaining.String(),
		"status", result.Funding.Status)
	if e.Observer != nil {
		e.Observer.ContributionCommitted(req.Amount, result.Funding.IsFullyFunded())
	}
	return result, nil
}

// contribute is one attempt. Every return path releases every lock it took.
func (e *Engine) contribute(ctx context.Context, req ContributeRequest) (*ContributionResult, error) {
	release, err := e.Locks.Acquire(ctx, generic.GiftKey(string(req.GiftID)))
	if err != nil {
		return nil, err
	}
	defer release()

	gift, err := e.Gifts.Gift(ctx, req.GiftID)
	if err != nil {
		return nil, err
	}

	key := requestKey(req)
	if key != "" {
		prior, err := e.Gifts.ContributionByKey(ctx, key)
		switch {
		case err == nil:
			if err := matchesPrior(req, prior); err != nil {
				return nil, err
			}
			return e.replay(ctx, gift, prior)
		case !errors.Is(err, ErrContributionNotFound):
			return nil, err
		}
	}

	if err := req.Amount.ValidatePositive(); err != nil {
		return nil, err
	}
	if req.Amount.Currency != gift.Price.Currency {
		return nil, fmt.Errorf("%w: gift is priced in %s, got %s",
			generic.ErrCurrencyMismatch, gift.Price.Currency, req.Amount.Currency)
	}

	event, err := e.Directory.EventByGiftID(ctx, gift.ID)
	if err != nil {
		return nil, err
	}
	if event.Creator == req.UserID {
		return nil, ErrCreatorCannotContribute
	}

	state, err := Funding(gift)
	if err != nil {
		return nil, err
	}
	if state.IsFullyFunded() {
		return nil, ErrGiftAlreadyFunded
	}
	if !e.Policy.AllowOverfunding && req.Amount.GreaterThan(state.Remaining) {
		return nil, fmt.Errorf("%w: %s requested, %s remaining",
			ErrExceedsRemaining, req.Amount, state.Remaining)
	}

	contribution := Contribution{
		ID:             uuid.NewString(),
		GiftID:         gift.ID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		Message:        req.Message,
		Date:           e.Now().UTC(),
		IdempotencyKey: key,
	}

	var balance generic.Amount
	err = e.Wallets.WithAccount(ctx, req.UserID, func(account *wallet.LockedAccount) error {
		if key != "" {
			prior, err := e.Gifts.ContributionByKey(ctx, key)
			switch {
			case err == nil:
				// Committed by a request for another gift while we waited.
				if err := matchesPrior(req, prior); err != nil {
					return err
				}
				return fmt.Errorf("%w: contribution %s committed concurrently",
					generic.ErrConcurrentModification, prior.ID)
			case !errors.Is(err, ErrContributionNotFound):
				return err
			}
		}

		var err error
		balance, err = account.Debit(ctx, req.Amount, wallet.Entry{
			Type:           generic.TxContribution,
			ReferenceID:    string(gift.ID),
			Reason:         "contribution to " + gift.Title,
			IdempotencyKey: "contrib-" + contribution.ID,
			Metadata:       map[string]string{"contribution_id": contribution.ID},
		})
		if err != nil {
			return err
		}

		if err := e.Gifts.AppendContribution(ctx, contribution); err != nil {
			return e.compensate(ctx, account, contribution, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := e.Gifts.Gift(ctx, gift.ID)
	if err != nil {
		return nil, err
	}
	funding, err := Funding(updated)
	if err != nil {
		return nil, err
	}
	return &ContributionResult{
		Gift:         *updated,
		Funding:      funding,
		Contribution: contribution,
		Balance:      balance,
	}, nil
}

// compensate reverses a committed debit whose gift append failed.
func (e *Engine) compensate(ctx context.Context, account *wallet.LockedAccount, c Contribution, cause error) error {
	_, err := account.Credit(ctx, c.Amount, wallet.Entry{
		Type:           generic.TxReversal,
		ReferenceID:    c.ID,
		Reason:         "reversal: gift update failed",
		IdempotencyKey: "reverse-" + c.ID,
	})
	if err != nil {
		e.logger().Error("compensation failed, wallet needs manual reconciliation",
			"user", c.UserID, "contribution", c.ID, "amount", c.Amount.String(),
			"cause", cause, "error", err)
		return fmt.Errorf("%w: append contribution: %v; reverse debit: %v",
			generic.ErrTransactionFailed, cause, err)
	}

	e.logger().Warn("contribution reversed",
		"user", c.UserID, "gift", c.GiftID, "contribution", c.ID, "cause", cause)
	if e.Observer != nil {
		e.Observer.Compensated()
	}
	return fmt.Errorf("%w: append contribution: %v", generic.ErrTransactionFailed, cause)
}

func (e *Engine) replay(ctx context.Context, gift *GiftItem, prior *Contribution) (*ContributionResult, error) {
	funding, err := Funding(gift)
	if err != nil {
		return nil, err
	}
	balance, err := e.Wallets.Balance(ctx, prior.UserID)
	if err != nil {
		return nil, err
	}
	return &ContributionResult{
		Gift:         *gift,
		Funding:      funding,
		Contribution: *prior,
		Balance:      balance,
		Replayed:     true,
	}, nil
}

// matchesPrior rejects a request id reused for a different contribution.
func matchesPrior(req ContributeRequest, prior *Contribution) error {
	if prior.GiftID != req.GiftID {
		return fmt.Errorf("%w: %q was used for gift %s", ErrRequestIDReused, req.RequestID, prior.GiftID)
	}
	if !prior.Amount.Equal(req.Amount) {
		return fmt.Errorf("%w: %q was used for %s, got %s", ErrRequestIDReused, req.RequestID, prior.Amount, req.Amount)
	}
	return nil
}

// requestKey scopes a client request id to its user.
func requestKey(req ContributeRequest) string {
	if req.RequestID == "" {
		return ""
	}
	return "contribution:" + string(req.UserID) + ":" + req.RequestID
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
