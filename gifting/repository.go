package gifting

import "context"

// GiftRepository persists gifts and their contribution logs.
// Contributions are append-only.
type GiftRepository interface {
	CreateGift(ctx context.Context, gift GiftItem) error

	// Gift returns the gift with its contributors in commit order, or ErrGiftNotFound.
	Gift(ctx context.Context, id GiftID) (*GiftItem, error)

	GiftsByEvent(ctx context.Context, eventID EventID) ([]GiftItem, error)

	// AppendContribution adds c to the end of its gift's log.
	// Returns ErrGiftNotFound for an unknown gift and
	// generic.ErrDuplicateIdempotencyKey for a reused key.
	AppendContribution(ctx context.Context, c Contribution) error

	// ContributionByKey finds a committed contribution by its idempotency
	// key, or returns ErrContributionNotFound.
	ContributionByKey(ctx context.Context, key string) (*Contribution, error)
}

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, event Event) error

	// Event returns the event or ErrEventNotFound.
	Event(ctx context.Context, id EventID) (*Event, error)

	UpdateRSVP(ctx context.Context, id EventID, user UserID, status RSVPStatus) error
}

// EventDirectory resolves the event a gift belongs to.
type EventDirectory interface {
	EventByGiftID(ctx context.Context, id GiftID) (*Event, error)
}
