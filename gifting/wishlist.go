package gifting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/wallet"
)

// Wishlist manages events and the gifts attached to them. It never touches
// money; contributions go through Engine.
type Wishlist struct {
	Events   EventStore
	Gifts    GiftRepository
	Accounts wallet.AccountStore
	Currency generic.Currency
	Now      func() time.Time
}

func NewWishlist(events EventStore, gifts GiftRepository, accounts wallet.AccountStore, currency generic.Currency) *Wishlist {
	return &Wishlist{
		Events:   events,
		Gifts:    gifts,
		Accounts: accounts,
		Currency: currency,
		Now:      time.Now,
	}
}

type NewEvent struct {
	ID           EventID
	Title        string
	Description  string
	Location     string
	Date         time.Time
	Type         EventType
	Creator      UserID
	Privacy      Privacy
	Participants []UserID
}

// CreateEvent validates and stores an event. The creator is dropped from the
// participant list if present, and duplicates are removed.
func (w *Wishlist) CreateEvent(ctx context.Context, in NewEvent) (*Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if in.Type == "" {
		in.Type = EventOther
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, in.Type)
	}
	switch in.Privacy {
	case "":
		in.Privacy = PrivacyPublic
	case PrivacyPublic, PrivacyPrivate:
	default:
		return nil, fmt.Errorf("%w: unknown privacy %q", ErrInvalidEvent, in.Privacy)
	}
	if _, err := w.Accounts.Account(ctx, in.Creator); err != nil {
		return nil, err
	}

	seen := map[UserID]bool{in.Creator: true}
	participants := make([]UserID, 0, len(in.Participants))
	for _, p := range in.Participants {
		if seen[p] {
			continue
		}
		if _, err := w.Accounts.Account(ctx, p); err != nil {
			return nil, fmt.Errorf("participant %s: %w", p, err)
		}
		seen[p] = true
		participants = append(participants, p)
	}

	if in.ID == "" {
		in.ID = EventID("evt_" + uuid.NewString())
	}
	event := Event{
		ID:           in.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		Location:     in.Location,
		Date:         in.Date,
		Type:         in.Type,
		Creator:      in.Creator,
		Privacy:      in.Privacy,
		Participants: participants,
		RSVP:         make(map[UserID]RSVPStatus),
		CreatedAt:    w.Now().UTC(),
	}
	if err := w.Events.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (w *Wishlist) Event(ctx context.Context, id EventID) (*Event, error) {
	return w.Events.Event(ctx, id)
}

// UpdateRSVP records an invited user's answer.
func (w *Wishlist) UpdateRSVP(ctx context.Context, id EventID, user UserID, status RSVPStatus) (*Event, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRSVP, status)
	}
	event, err := w.Events.Event(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.IsParticipant(user) {
		return nil, ErrNotParticipant
	}
	if err := w.Events.UpdateRSVP(ctx, id, user, status); err != nil {
		return nil, err
	}
	return w.Events.Event(ctx, id)
}

type NewGift struct {
	ID          GiftID
	Title       string
	Description string
	URL         string
	Category    Category
	Priority    Priority
	Price       generic.Amount
}

// AddGift attaches a gift to an event. Only the event creator may add gifts.
func (w *Wishlist) AddGift(ctx context.Context, requester UserID, eventID EventID, in NewGift) (*GiftItem, error) {
	event, err := w.Events.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Creator != requester {
		return nil, ErrNotEventCreator
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidGift)
	}
	if in.Price.Currency == "" {
		in.Price.Currency = w.Currency
	}
	if in.Price.Currency != w.Currency {
		return nil, fmt.Errorf("%w: priced in %s, wallets hold %s", ErrInvalidGift, in.Price.Currency, w.Currency)
	}
	if err := in.Price.ValidatePositive(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGift, err)
	}
	if in.Category == "" {
		in.Category = CategoryFor(in.Price)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.ID == "" {
		in.ID = GiftID("gift_" + uuid.NewString())
	}

	gift := GiftItem{
		ID:           in.ID,
		EventID:      event.ID,
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		URL:          in.URL,
		Category:     in.Category,
		Priority:     in.Priority,
		Price:        in.Price,
		Contributors: []Contribution{},
		CreatedAt:    w.Now().UTC(),
	}
	if err := w.Gifts.CreateGift(ctx, gift); err != nil {
		return nil, err
	}
	return &gift, nil
}

// GiftView is a gift with its derived funding state.
type GiftView struct {
	Gift    GiftItem
	Funding FundingState
}

func (w *Wishlist) Gift(ctx context.Context, id GiftID) (*GiftView, error) {
	gift, err := w.Gifts.Gift(ctx, id)
	if err != nil {
		return nil, err
	}
	funding, err := Funding(gift)
	if err != nil {
		return nil, err
	}
	return &GiftView{Gift: *gift, Funding: funding}, nil
}

func (w *Wishlist) EventGifts(ctx context.Context, id EventID) ([]GiftView, error) {
	if _, err := w.Events.Event(ctx, id); err != nil {
		return nil, err
	}
	gifts, err := w.Gifts.GiftsByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	views := make([]GiftView, 0, len(gifts))
	for i := range gifts {
		funding, err := Funding(&gifts[i])
		if err != nil {
			return nil, err
		}
		views = append(views, GiftView{Gift: gifts[i], Funding: funding})
	}
	return views, nil
}
