/*
Package gifting implements group funding of wishlist gifts.

PURPOSE:
  Users create celebration events, attach gifts to them, and pool money from
  their wallets toward each gift. This package owns the gift funding state,
  the contribution engine that moves money from a wallet onto a gift, and the
  small amount of event bookkeeping the engine depends on.

KEY CONCEPTS:
  GiftItem:      A wishlist entry with a fixed price and an append-only
                 contribution log
  Contribution:  One user's pledge toward one gift, immutable once written
  Event:         A celebration; its creator may not fund its gifts
  FundingState:  Totals derived from the contribution log on every read

STATE MACHINE:
  Unfunded -> PartiallyFunded -> FullyFunded

  FullyFunded is terminal. There are no refunds, so a gift never moves back.

SEE ALSO:
  - funding.go: Derived totals
  - engine.go: Contribute
  - wishlist.go: Event and gift CRUD
  - errors.go: Error taxonomy and user messages
*/
package gifting

import (
	"time"

	"github.com/smartgifter/giftledger/generic"
)

// UserID identifies a wallet owner.
type UserID = generic.AccountID

type GiftID string

type EventID string

// =============================================================================
// EVENTS
// =============================================================================

type EventType string

const (
	EventBirthday     EventType = "birthday"
	EventWedding      EventType = "wedding"
	EventHousewarming EventType = "housewarming"
	EventBabyShower   EventType = "baby_shower"
	EventOther        EventType = "other"
)

func (t EventType) Valid() bool {
	switch t {
	case EventBirthday, EventWedding, EventHousewarming, EventBabyShower, EventOther:
		return true
	}
	return false
}

type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

type RSVPStatus string

const (
	RSVPYes   RSVPStatus = "yes"
	RSVPNo    RSVPStatus = "no"
	RSVPMaybe RSVPStatus = "maybe"
)

func (s RSVPStatus) Valid() bool {
	return s == RSVPYes || s == RSVPNo || s == RSVPMaybe
}

// Event is a celebration that gifts are attached to.
type Event struct {
	ID           EventID
	Title        string
	Description  string
	Location     string
	Date         time.Time
	Type         EventType
	Creator      UserID
	Privacy      Privacy
	Participants []UserID
	RSVP         map[UserID]RSVPStatus
	CreatedAt    time.Time
}

// IsParticipant reports whether user was invited. The creator is not a
// participant.
func (e *Event) IsParticipant(user UserID) bool {
	for _, p := range e.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// =============================================================================
// GIFTS
// =============================================================================

type Category string

const (
	CategorySmall  Category = "small"
	CategoryMedium Category = "medium"
	CategoryLarge  Category = "large"
)

// CategoryFor buckets a price: small under 50, medium up to 200, large above.
func CategoryFor(price generic.Amount) Category {
	switch {
	case price.LessThan(generic.NewAmountFromInt(50, price.Currency)):
		return CategorySmall
	case price.GreaterThan(generic.NewAmountFromInt(200, price.Currency)):
		return CategoryLarge
	default:
		return CategoryMedium
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// GiftItem is a wishlist entry. Price and EventID never change after
// creation; Contributors only grows.
type GiftItem struct {
	ID           GiftID
	EventID      EventID
	Title        string
	Description  string
	URL          string
	Category     Category
	Priority     Priority
	Price        generic.Amount
	Contributors []Contribution
	CreatedAt    time.Time
}

// Contribution is one pledge toward a gift. Contributors are kept in commit
// order.
type Contribution struct {
	ID             string
	GiftID         GiftID
	UserID         UserID
	Amount         generic.Amount
	Message        string
	Date           time.Time
	IdempotencyKey string
}
