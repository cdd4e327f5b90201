/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the store with realistic data
  for demos. Every scenario goes through the same services the API uses, so
  balances and funding totals are real ledger results.

AVAILABLE SCENARIOS:
  celebrations:      Five friends, three events, a wishlist with partial funding
  last-contribution: A gift one contribution away from fully funded

HOW SCENARIOS WORK:
  1. Reset the store (clear all data)
  2. Open accounts with their opening balances
  3. Create events and gifts
  4. Replay contributions through the engine

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "celebrations"}

NOTE:
  Scenarios reset the store. Only routed in development.

SEE ALSO:
  - handlers.go: ResetDatabase
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/wallet"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "celebrations",
		Name:        "Celebrations",
		Description: "Five friends, a birthday, a wedding and a housewarming with partially funded gifts",
	},
	{
		ID:          "last-contribution",
		Name:        "Last Contribution",
		Description: "A 100.00 gift with 60.00 pledged; the next 40.00 completes it",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "celebrations":
		load = h.loadCelebrationsScenario
	case "last-contribution":
		load = h.loadLastContributionScenario
	default:
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario_id": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seedUser struct {
	id, name, email string
	balance         string
}

type seedContribution struct {
	gift    gifting.GiftID
	user    gifting.UserID
	amount  string
	message string
}

func (h *Handler) loadCelebrationsScenario(ctx context.Context) error {
	users := []seedUser{
		{"user1", "Alex Johnson", "alex@example.com", "500.00"},
		{"user2", "Emma Wilson", "emma@example.com", "350.00"},
		{"user3", "Michael Brown", "michael@example.com", "200.00"},
		{"user4", "Sophia Davis", "sophia@example.com", "450.00"},
		{"user5", "James Miller", "james@example.com", "300.00"},
	}
	if err := h.seedUsers(ctx, users); err != nil {
		return err
	}

	events := []struct {
		event gifting.NewEvent
		rsvp  map[gifting.UserID]gifting.RSVPStatus
	}{
		{
			event: gifting.NewEvent{
				ID: "event1", Title: "Alex's Birthday", Type: gifting.EventBirthday,
				Date: day(2024, time.May, 15), Creator: "user1", Privacy: gifting.PrivacyPublic,
				Participants: []gifting.UserID{"user2", "user3", "user4", "user5"},
			},
			rsvp: map[gifting.UserID]gifting.RSVPStatus{
				"user2": gifting.RSVPYes, "user3": gifting.RSVPYes,
				"user4": gifting.RSVPMaybe, "user5": gifting.RSVPNo,
			},
		},
		{
			event: gifting.NewEvent{
				ID: "event2", Title: "Emma's Wedding", Type: gifting.EventWedding,
				Date: day(2024, time.September, 10), Creator: "user2", Privacy: gifting.PrivacyPrivate,
				Participants: []gifting.UserID{"user1", "user3", "user5"},
			},
			rsvp: map[gifting.UserID]gifting.RSVPStatus{
				"user1": gifting.RSVPYes, "user3": gifting.RSVPYes, "user5": gifting.RSVPMaybe,
			},
		},
		{
			event: gifting.NewEvent{
				ID: "event3", Title: "Michael's Housewarming", Type: gifting.EventHousewarming,
				Date: day(2024, time.June, 20), Creator: "user3", Privacy: gifting.PrivacyPublic,
				Participants: []gifting.UserID{"user1", "user2"},
			},
			rsvp: map[gifting.UserID]gifting.RSVPStatus{
				"user1": gifting.RSVPYes, "user2": gifting.RSVPMaybe,
			},
		},
	}
	for _, e := range events {
		if _, err := h.Wishlist.CreateEvent(ctx, e.event); err != nil {
			return fmt.Errorf("event %s: %w", e.event.ID, err)
		}
		for user, status := range e.rsvp {
			if _, err := h.Wishlist.UpdateRSVP(ctx, e.event.ID, user, status); err != nil {
				return fmt.Errorf("rsvp %s/%s: %w", e.event.ID, user, err)
			}
		}
	}

	gifts := []struct {
		event   gifting.EventID
		creator gifting.UserID
		gift    gifting.NewGift
	}{
		{"event1", "user1", gifting.NewGift{
			ID: "item1", Title: "Sony WH-1000XM5 Headphones",
			Description: "Noise-cancelling headphones with amazing sound quality",
			URL:         "https://example.com/sony-headphones",
			Priority:    gifting.PriorityHigh, Price: h.amount("349.99"),
		}},
		{"event1", "user1", gifting.NewGift{
			ID: "item2", Title: "Coffee Subscription - 6 Months",
			Description: "Premium coffee beans delivered monthly",
			URL:         "https://example.com/coffee-subscription",
			Priority:    gifting.PriorityMedium, Price: h.amount("120.00"),
		}},
		{"event2", "user2", gifting.NewGift{
			ID: "item3", Title: "KitchenAid Stand Mixer",
			Description: "Professional-grade kitchen mixer in sunset gold",
			URL:         "https://example.com/kitchenaid-mixer",
			Priority:    gifting.PriorityHigh, Price: h.amount("399.99"),
		}},
		{"event3", "user3", gifting.NewGift{
			ID: "item4", Title: "Indoor Plant",
			Priority: gifting.PriorityLow, Price: h.amount("45.00"),
		}},
	}
	for _, g := range gifts {
		if _, err := h.Wishlist.AddGift(ctx, g.creator, g.event, g.gift); err != nil {
			return fmt.Errorf("gift %s: %w", g.gift.ID, err)
		}
	}

	return h.seedContributions(ctx, []seedContribution{
		{"item2", "user2", "50.00", ""},
		{"item3", "user1", "150.00", "Can't wait to celebrate with you!"},
		{"item3", "user3", "100.00", ""},
	})
}

func (h *Handler) loadLastContributionScenario(ctx context.Context) error {
	users := []seedUser{
		{"host", "Riley Host", "riley@example.com", "0.00"},
		{"guest1", "Sam Guest", "sam@example.com", "100.00"},
		{"guest2", "Jo Guest", "jo@example.com", "100.00"},
		{"guest3", "Lee Guest", "lee@example.com", "25.00"},
	}
	if err := h.seedUsers(ctx, users); err != nil {
		return err
	}

	if _, err := h.Wishlist.CreateEvent(ctx, gifting.NewEvent{
		ID: "party", Title: "Riley's Birthday", Type: gifting.EventBirthday,
		Creator: "host", Participants: []gifting.UserID{"guest1", "guest2", "guest3"},
	}); err != nil {
		return err
	}
	if _, err := h.Wishlist.AddGift(ctx, "host", "party", gifting.NewGift{
		ID: "camera", Title: "Instant Camera", Priority: gifting.PriorityHigh, Price: h.amount("100.00"),
	}); err != nil {
		return err
	}

	return h.seedContributions(ctx, []seedContribution{
		{"camera", "guest1", "60.00", "Say cheese!"},
	})
}

func (h *Handler) seedUsers(ctx context.Context, users []seedUser) error {
	for _, u := range users {
		account := wallet.Account{ID: generic.AccountID(u.id), Name: u.name, Email: u.email}
		if _, err := h.Wallets.Open(ctx, account, h.amount(u.balance)); err != nil {
			return fmt.Errorf("user %s: %w", u.id, err)
		}
	}
	return nil
}

func (h *Handler) seedContributions(ctx context.Context, contributions []seedContribution) error {
	for i, c := range contributions {
		_, err := h.Engine.Contribute(ctx, gifting.ContributeRequest{
			GiftID:    c.gift,
			UserID:    c.user,
			Amount:    h.amount(c.amount),
			Message:   c.message,
			RequestID: fmt.Sprintf("seed-%d", i),
		})
		if err != nil {
			return fmt.Errorf("contribution %s -> %s: %w", c.user, c.gift, err)
		}
	}
	return nil
}

func (h *Handler) amount(s string) generic.Amount {
	return generic.MustAmount(s, h.Wallets.Currency)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
