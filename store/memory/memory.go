// Package memory is an in-process store for development and tests. It holds
// accounts, events, gifts and wallet transactions behind one mutex per
// concern and returns copies so callers can't mutate stored state.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/smartgifter/giftledger/generic"
	genericstore "github.com/smartgifter/giftledger/generic/store"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/wallet"
)

type Store struct {
	*genericstore.TxMemory

	mu            sync.RWMutex
	accounts      map[generic.AccountID]wallet.Account
	events        map[gifting.EventID]gifting.Event
	gifts         map[gifting.GiftID]gifting.GiftItem
	giftOrder     []gifting.GiftID
	contributions map[string]gifting.Contribution
}

func New() *Store {
	s := &Store{TxMemory: genericstore.NewTxMemory()}
	s.reset()
	return s
}

// Reset drops everything, including the wallet ledger.
func (s *Store) Reset(_ context.Context) error {
	s.TxMemory.Reset()
	s.reset()
	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[generic.AccountID]wallet.Account)
	s.events = make(map[gifting.EventID]gifting.Event)
	s.gifts = make(map[gifting.GiftID]gifting.GiftItem)
	s.giftOrder = nil
	s.contributions = make(map[string]gifting.Contribution)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(_ context.Context, account wallet.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return generic.ErrAccountExists
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *Store) Account(_ context.Context, id generic.AccountID) (*wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, generic.ErrAccountNotFound
	}
	return &account, nil
}

// ListAccounts returns every account ordered by id.
func (s *Store) ListAccounts(_ context.Context) ([]wallet.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]wallet.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(a, b wallet.Account) int { return cmp.Compare(a.ID, b.ID) })
	return accounts, nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (s *Store) CreateEvent(_ context.Context, event gifting.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return gifting.ErrInvalidEvent
	}
	s.events[event.ID] = copyEvent(event)
	return nil
}

func (s *Store) Event(_ context.Context, id gifting.EventID) (*gifting.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, gifting.ErrEventNotFound
	}
	event = copyEvent(event)
	return &event, nil
}

func (s *Store) UpdateRSVP(_ context.Context, id gifting.EventID, user gifting.UserID, status gifting.RSVPStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return gifting.ErrEventNotFound
	}
	event.RSVP[user] = status
	return nil
}

func (s *Store) EventByGiftID(_ context.Context, id gifting.GiftID) (*gifting.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gift, ok := s.gifts[id]
	if !ok {
		return nil, gifting.ErrGiftNotFound
	}
	event, ok := s.events[gift.EventID]
	if !ok {
		return nil, gifting.ErrEventNotFound
	}
	event = copyEvent(event)
	return &event, nil
}

func copyEvent(e gifting.Event) gifting.Event {
	e.Participants = append([]gifting.UserID(nil), e.Participants...)
	rsvp := make(map[gifting.UserID]gifting.RSVPStatus, len(e.RSVP))
	for k, v := range e.RSVP {
		rsvp[k] = v
	}
	e.RSVP = rsvp
	return e
}

// =============================================================================
// GIFTS
// =============================================================================

func (s *Store) CreateGift(_ context.Context, gift gifting.GiftItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gifts[gift.ID]; ok {
		return gifting.ErrInvalidGift
	}
	if _, ok := s.events[gift.EventID]; !ok {
		return gifting.ErrEventNotFound
	}
	gift.Contributors = append([]gifting.Contribution{}, gift.Contributors...)
	s.gifts[gift.ID] = gift
	s.giftOrder = append(s.giftOrder, gift.ID)
	return nil
}

func (s *Store) Gift(_ context.Context, id gifting.GiftID) (*gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gift, ok := s.gifts[id]
	if !ok {
		return nil, gifting.ErrGiftNotFound
	}
	gift.Contributors = append([]gifting.Contribution{}, gift.Contributors...)
	return &gift, nil
}

func (s *Store) GiftsByEvent(_ context.Context, id gifting.EventID) ([]gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gifts []gifting.GiftItem
	for _, gid := range s.giftOrder {
		gift := s.gifts[gid]
		if gift.EventID != id {
			continue
		}
		gift.Contributors = append([]gifting.Contribution{}, gift.Contributors...)
		gifts = append(gifts, gift)
	}
	return gifts, nil
}

// ListGifts returns every gift in creation order.
func (s *Store) ListGifts(_ context.Context) ([]gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gifts := make([]gifting.GiftItem, 0, len(s.giftOrder))
	for _, gid := range s.giftOrder {
		gift := s.gifts[gid]
		gift.Contributors = append([]gifting.Contribution{}, gift.Contributors...)
		gifts = append(gifts, gift)
	}
	return gifts, nil
}

func (s *Store) AppendContribution(_ context.Context, c gifting.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gift, ok := s.gifts[c.GiftID]
	if !ok {
		return gifting.ErrGiftNotFound
	}
	if c.IdempotencyKey != "" {
		if _, ok := s.contributions[c.IdempotencyKey]; ok {
			return generic.ErrDuplicateIdempotencyKey
		}
		s.contributions[c.IdempotencyKey] = c
	}
	gift.Contributors = append(gift.Contributors, c)
	s.gifts[c.GiftID] = gift
	return nil
}

func (s *Store) ContributionByKey(_ context.Context, key string) (*gifting.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contributions[key]
	if !ok {
		return nil, gifting.ErrContributionNotFound
	}
	return &c, nil
}
