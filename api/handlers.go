/*
handlers.go - HTTP API handlers for the gift ledger

PURPOSE:
  Exposes wallets, events, gifts and contributions via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the wallet
  and gifting packages.

ENDPOINTS:
  Users and wallets:
    POST   /api/users                      Sign up (opens a wallet, returns a token)
    GET    /api/users/{id}                 Public profile
    GET    /api/users/{id}/wallet          Balance and history (self only)
    POST   /api/wallet/topups              Add funds through the provider
    POST   /api/auth/token                 Mint a token (development only)

  Events:
    POST   /api/events                     Create event (caller is creator)
    GET    /api/events/{id}                Event details
    PUT    /api/events/{id}/rsvp           Answer an invitation
    GET    /api/events/{id}/gifts          Wishlist with funding state
    POST   /api/events/{id}/gifts          Add a gift (creator only)

  Gifts:
    GET    /api/gifts/{id}                 Gift with funding state
    POST   /api/gifts/{id}/contributions   Contribute from the caller's wallet

  Audit (development only):
    GET    /api/admin/audit                Latest ledger audit report
    POST   /api/admin/audit/run            Audit now

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (JSON, decimals, dates)
  3. Call the domain service
  4. Serialize response
  5. Map domain errors through gifting.KindOf (see errors.go)

IDEMPOTENCY:
  Contributions and top-ups take an optional request_id in the body, or an
  Idempotency-Key header. Repeating a request with the same id does not
  move money twice.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error kind -> HTTP status
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
	"github.com/smartgifter/giftledger/wallet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter wipes the backing store. Used by demo scenarios.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Services are the domain dependencies of the API.
type Services struct {
	Store        Resetter
	Wallets      *wallet.Ledger
	TopUps       *wallet.TopUpService
	Engine       *gifting.Engine
	Wishlist     *gifting.Wishlist
	Tokens       *JWTManager
	Audit        *AuditScheduler
	WelcomeBonus generic.Amount

	// DevMode enables token minting and demo scenarios.
	DevMode bool
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Services

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given services.
func NewHandler(s Services) *Handler {
	return &Handler{Services: s}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser opens an account with the welcome bonus and signs the user in.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}

	account := wallet.Account{
		ID:    generic.AccountID(strings.TrimSpace(req.ID)),
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
	}
	balance, err := h.Wallets.Open(r.Context(), account, h.WelcomeBonus)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.Wallets.Account(r.Context(), account.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := h.Tokens.Generate(created.ID, created.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign in", err)
		return
	}

	writeJSON(w, http.StatusCreated, SignupResponse{
		User:     toUserDTO(created),
		Balance:  money(balance),
		Currency: string(h.Wallets.Currency),
		Token:    token,
	})
}

// GetUser returns a public profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	account, err := h.Wallets.Account(r.Context(), generic.AccountID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(account))
}

// GetWallet returns the caller's balance breakdown and history.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id := generic.AccountID(chi.URLParam(r, "id"))
	if id != UserIDFrom(r.Context()) {
		writeError(w, http.StatusForbidden, "You can only view your own wallet.", nil)
		return
	}

	txs, err := h.Wallets.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	currency := h.Wallets.Currency
	b := generic.Summarize(id, txs, currency)

	writeJSON(w, http.StatusOK, WalletDTO{
		UserID:       string(id),
		Currency:     string(currency),
		Balance:      money(b.Available),
		Granted:      money(b.Granted),
		ToppedUp:     money(b.ToppedUp),
		Contributed:  money(b.Contributed),
		Reversed:     money(b.Reversed),
		Transactions: toTransactionDTOs(txs, currency),
	})
}

// IssueToken mints a token for an existing user. Development only; there is
// no password store.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decode(w, r, &req) {
		return
	}
	account, err := h.Wallets.Account(r.Context(), generic.AccountID(req.UserID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := h.Tokens.Generate(account.ID, account.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sign in", err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// TopUp adds funds to the caller's wallet through the payment provider.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if !decode(w, r, &req) {
		return
	}
	amount, ok := h.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	balance, err := h.TopUps.AddFunds(r.Context(), UserIDFrom(r.Context()), amount, requestID(r, req.RequestID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TopUpResponse{
		Balance:  money(balance),
		Currency: string(balance.Currency),
	})
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// CreateEvent creates an event owned by the caller.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !decode(w, r, &req) {
		return
	}

	in := gifting.NewEvent{
		ID:          gifting.EventID(req.ID),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Type:        gifting.EventType(req.Type),
		Creator:     UserIDFrom(r.Context()),
		Privacy:     gifting.Privacy(req.Privacy),
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		in.Date = date
	}
	for _, p := range req.Participants {
		in.Participants = append(in.Participants, gifting.UserID(p))
	}

	event, err := h.Wishlist.CreateEvent(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// GetEvent returns an event with its RSVPs.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Wishlist.Event(r.Context(), gifting.EventID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// UpdateRSVP records the caller's answer to an invitation.
func (h *Handler) UpdateRSVP(w http.ResponseWriter, r *http.Request) {
	var req RSVPRequest
	if !decode(w, r, &req) {
		return
	}

	event, err := h.Wishlist.UpdateRSVP(r.Context(),
		gifting.EventID(chi.URLParam(r, "id")),
		UserIDFrom(r.Context()),
		gifting.RSVPStatus(strings.ToLower(req.Status)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(event))
}

// ListEventGifts returns the event's wishlist in creation order.
func (h *Handler) ListEventGifts(w http.ResponseWriter, r *http.Request) {
	views, err := h.Wishlist.EventGifts(r.Context(), gifting.EventID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]GiftDTO, len(views))
	for i, v := range views {
		dtos[i] = toGiftDTO(v.Gift, v.Funding)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGift adds a gift to the caller's event.
func (h *Handler) CreateGift(w http.ResponseWriter, r *http.Request) {
	var req CreateGiftRequest
	if !decode(w, r, &req) {
		return
	}
	price, ok := h.parseAmount(w, req.Price)
	if !ok {
		return
	}

	gift, err := h.Wishlist.AddGift(r.Context(),
		UserIDFrom(r.Context()),
		gifting.EventID(chi.URLParam(r, "id")),
		gifting.NewGift{
			ID:          gifting.GiftID(req.ID),
			Title:       req.Title,
			Description: req.Description,
			URL:         req.URL,
			Category:    gifting.Category(req.Category),
			Priority:    gifting.Priority(req.Priority),
			Price:       price,
		})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	funding, err := gifting.Funding(gift)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGiftDTO(*gift, funding))
}

// =============================================================================
// GIFT HANDLERS
// =============================================================================

// GetGift returns a gift with its funding state. Totals are recomputed on
// every read.
func (h *Handler) GetGift(w http.ResponseWriter, r *http.Request) {
	view, err := h.Wishlist.Gift(r.Context(), gifting.GiftID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGiftDTO(view.Gift, view.Funding))
}

// Contribute pledges funds from the caller's wallet to a gift.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	var req ContributeRequest
	if !decode(w, r, &req) {
		return
	}
	amount, ok := h.parseAmount(w, req.Amount)
	if !ok {
		return
	}

	result, err := h.Engine.Contribute(r.Context(), gifting.ContributeRequest{
		GiftID:    gifting.GiftID(chi.URLParam(r, "id")),
		UserID:    UserIDFrom(r.Context()),
		Amount:    amount,
		Message:   strings.TrimSpace(req.Message),
		RequestID: requestID(r, req.RequestID),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, ContributeResponse{
		Gift:         toGiftDTO(result.Gift, result.Funding),
		Contribution: toContributionDTO(result.Contribution),
		Balance:      money(result.Balance),
		Replayed:     result.Replayed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body. On failure it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseAmount reads a decimal amount in the wallet currency. Zero, negative
// and sub-cent values are rejected later by the domain with a precise kind.
func (h *Handler) parseAmount(w http.ResponseWriter, n json.Number) (generic.Amount, bool) {
	if n == "" {
		writeDomainError(w, fmt.Errorf("%w: amount is required", generic.ErrInvalidAmount))
		return generic.Amount{}, false
	}
	amount, err := generic.ParseAmount(string(n), h.Wallets.Currency)
	if err != nil {
		writeDomainError(w, err)
		return generic.Amount{}, false
	}
	return amount, true
}

// requestID prefers the body field, then the Idempotency-Key header.
func requestID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// GetAuditReport returns the latest audit, running one if none exists yet.
func (h *Handler) GetAuditReport(w http.ResponseWriter, r *http.Request) {
	report := h.Audit.LastReport()
	if report == nil {
		h.RunAudit(w, r)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTO(report))
}

// RunAudit audits the ledger now.
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.Audit.RunNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audit failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTO(report))
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
