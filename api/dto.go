/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are written as fixed two-place decimal strings ("40.00") next to
  a currency code. Requests accept either a JSON string or a JSON number;
  both are parsed as decimals, never as floats.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/wallet"
)

// =============================================================================
// USERS AND WALLETS
// =============================================================================

type CreateUserRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

type SignupResponse struct {
	User     UserDTO `json:"user"`
	Balance  string  `json:"balance"`
	Currency string  `json:"currency"`
	Token    string  `json:"token"`
}

type TokenRequest struct {
	UserID string `json:"user_id"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type WalletDTO struct {
	UserID       string           `json:"user_id"`
	Currency     string           `json:"currency"`
	Balance      string           `json:"balance"`
	Granted      string           `json:"granted"`
	ToppedUp     string           `json:"topped_up"`
	Contributed  string           `json:"contributed"`
	Reversed     string           `json:"reversed"`
	Transactions []TransactionDTO `json:"transactions"`
}

// TransactionDTO represents a wallet transaction with the running balance
// after it.
type TransactionDTO struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type TopUpRequest struct {
	Amount    json.Number `json:"amount"`
	RequestID string      `json:"request_id,omitempty"`
}

type TopUpResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// =============================================================================
// EVENTS
// =============================================================================

type CreateEventRequest struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Location     string   `json:"location,omitempty"`
	Date         string   `json:"date,omitempty"` // YYYY-MM-DD
	Type         string   `json:"type,omitempty"`
	Privacy      string   `json:"privacy,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

type EventDTO struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Location     string            `json:"location,omitempty"`
	Date         string            `json:"date,omitempty"`
	Type         string            `json:"type"`
	Creator      string            `json:"creator"`
	Privacy      string            `json:"privacy"`
	Participants []string          `json:"participants"`
	RSVP         map[string]string `json:"rsvp"`
}

type RSVPRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// GIFTS AND CONTRIBUTIONS
// =============================================================================

type CreateGiftRequest struct {
	ID          string      `json:"id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	URL         string      `json:"url,omitempty"`
	Category    string      `json:"category,omitempty"`
	Priority    string      `json:"priority,omitempty"`
	Price       json.Number `json:"price"`
}

type GiftDTO struct {
	ID           string            `json:"id"`
	EventID      string            `json:"event_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url,omitempty"`
	Category     string            `json:"category"`
	Priority     string            `json:"priority"`
	Price        string            `json:"price"`
	Currency     string            `json:"currency"`
	Contributors []ContributionDTO `json:"contributors"`
	Funding      FundingDTO        `json:"funding"`
}

type FundingDTO struct {
	TotalContributed string  `json:"total_contributed"`
	Remaining        string  `json:"remaining"`
	PercentComplete  float64 `json:"percent_complete"`
	Status           string  `json:"status"`
	IsFullyFunded    bool    `json:"is_fully_funded"`
	NearlyComplete   bool    `json:"nearly_complete"`
	Contributors     int     `json:"contributors"`
}

type ContributionDTO struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Amount  string `json:"amount"`
	Message string `json:"message,omitempty"`
	Date    string `json:"date"`
}

type ContributeRequest struct {
	Amount    json.Number `json:"amount"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type ContributeResponse struct {
	Gift         GiftDTO         `json:"gift"`
	Contribution ContributionDTO `json:"contribution"`
	Balance      string          `json:"balance"`
	Replayed     bool            `json:"replayed"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for every failed request. Error is safe to show
// to end users; Code is stable for clients.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	Available string `json:"available,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(a generic.Amount) string {
	return a.Value.StringFixed(generic.CurrencyPlaces)
}

func toUserDTO(a *wallet.Account) UserDTO {
	return UserDTO{
		ID:        string(a.ID),
		Name:      a.Name,
		Email:     a.Email,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// toTransactionDTOs walks the history in commit order to attach running balances.
func toTransactionDTOs(txs []generic.Transaction, currency generic.Currency) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	running := generic.ZeroAmount(currency)
	for _, tx := range txs {
		if tx.Delta.Currency != currency {
			continue
		}
		running = running.Add(tx.Delta)
		dtos = append(dtos, TransactionDTO{
			ID:           string(tx.ID),
			Type:         string(tx.Type),
			Amount:       money(tx.Delta),
			BalanceAfter: money(running),
			ReferenceID:  tx.ReferenceID,
			Reason:       tx.Reason,
			CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
		})
	}
	return dtos
}

func toEventDTO(e *gifting.Event) EventDTO {
	dto := EventDTO{
		ID:           string(e.ID),
		Title:        e.Title,
		Description:  e.Description,
		Location:     e.Location,
		Type:         string(e.Type),
		Creator:      string(e.Creator),
		Privacy:      string(e.Privacy),
		Participants: make([]string, len(e.Participants)),
		RSVP:         make(map[string]string, len(e.RSVP)),
	}
	if !e.Date.IsZero() {
		dto.Date = e.Date.Format("2006-01-02")
	}
	for i, p := range e.Participants {
		dto.Participants[i] = string(p)
	}
	for user, status := range e.RSVP {
		dto.RSVP[string(user)] = string(status)
	}
	return dto
}

func toContributionDTO(c gifting.Contribution) ContributionDTO {
	return ContributionDTO{
		ID:      c.ID,
		UserID:  string(c.UserID),
		Amount:  money(c.Amount),
		Message: c.Message,
		Date:    c.Date.Format(time.RFC3339),
	}
}

func toFundingDTO(f gifting.FundingState) FundingDTO {
	return FundingDTO{
		TotalContributed: money(f.TotalContributed),
		Remaining:        money(f.Remaining),
		PercentComplete:  f.PercentComplete.InexactFloat64(),
		Status:           string(f.Status),
		IsFullyFunded:    f.IsFullyFunded(),
		NearlyComplete:   f.NearlyComplete,
		Contributors:     f.Contributors,
	}
}

func toGiftDTO(g gifting.GiftItem, f gifting.FundingState) GiftDTO {
	dto := GiftDTO{
		ID:           string(g.ID),
		EventID:      string(g.EventID),
		Title:        g.Title,
		Description:  g.Description,
		URL:          g.URL,
		Category:     string(g.Category),
		Priority:     string(g.Priority),
		Price:        money(g.Price),
		Currency:     string(g.Price.Currency),
		Contributors: make([]ContributionDTO, len(g.Contributors)),
		Funding:      toFundingDTO(f),
	}
	for i, c := range g.Contributors {
		dto.Contributors[i] = toContributionDTO(c)
	}
	return dto
}

// =============================================================================
// AUDIT
// =============================================================================

type FindingDTO struct {
	Kind           string `json:"kind"`
	AccountID      string `json:"account_id,omitempty"`
	GiftID         string `json:"gift_id,omitempty"`
	ContributionID string `json:"contribution_id,omitempty"`
	Detail         string `json:"detail"`
}

type AuditDTO struct {
	OK            bool         `json:"ok"`
	StartedAt     string       `json:"started_at"`
	FinishedAt    string       `json:"finished_at"`
	Accounts      int          `json:"accounts"`
	Gifts         int          `json:"gifts"`
	Contributions int          `json:"contributions"`
	Findings      []FindingDTO `json:"findings"`
}

func toAuditDTO(r *gifting.AuditReport) AuditDTO {
	dto := AuditDTO{
		OK:            r.OK(),
		StartedAt:     r.StartedAt.Format(time.RFC3339),
		FinishedAt:    r.FinishedAt.Format(time.RFC3339),
		Accounts:      r.Accounts,
		Gifts:         r.Gifts,
		Contributions: r.Contributions,
		Findings:      make([]FindingDTO, len(r.Findings)),
	}
	for i, f := range r.Findings {
		dto.Findings[i] = FindingDTO{
			Kind:           string(f.Kind),
			AccountID:      string(f.AccountID),
			GiftID:         string(f.GiftID),
			ContributionID: f.ContributionID,
			Detail:         f.Detail,
		}
	}
	return dto
}
