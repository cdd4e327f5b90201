package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartgifter/giftledger/generic"
	"github.com/smartgifter/giftledger/gifting"
)

// =============================================================================
// GIFT REPOSITORY (gifting.GiftRepository interface)
// =============================================================================

func (s *Store) CreateGift(ctx context.Context, gift gifting.GiftItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gifts
		(id, event_id, title, description, url, category, priority, price_value, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		gift.ID, gift.EventID, gift.Title, gift.Description, gift.URL,
		gift.Category, gift.Priority, gift.Price.Value.String(), gift.Price.Currency,
		formatTime(gift.CreatedAt),
	)
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("%w: gift %s already exists", gifting.ErrInvalidGift, gift.ID)
	case isForeignKeyError(err):
		return gifting.ErrEventNotFound
	case err != nil:
		return fmt.Errorf("failed to save gift: %w", err)
	}
	return nil
}

func (s *Store) Gift(ctx context.Context, id gifting.GiftID) (*gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gifts, err := s.queryGifts(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(gifts) == 0 {
		return nil, gifting.ErrGiftNotFound
	}
	return &gifts[0], nil
}

func (s *Store) GiftsByEvent(ctx context.Context, id gifting.EventID) ([]gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryGifts(ctx, "WHERE event_id = ?", id)
}

func (s *Store) ListGifts(ctx context.Context) ([]gifting.GiftItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryGifts(ctx, "")
}

func (s *Store) AppendContribution(ctx context.Context, c gifting.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contributions
		(id, gift_id, user_id, amount_value, currency, message, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.GiftID, c.UserID, c.Amount.Value.String(), c.Amount.Currency,
		c.Message, nullString(c.IdempotencyKey), formatTime(c.Date),
	)
	switch {
	case isUniqueConstraintError(err):
		return generic.ErrDuplicateIdempotencyKey
	case isForeignKeyError(err):
		return gifting.ErrGiftNotFound
	case err != nil:
		return fmt.Errorf("failed to append contribution: %w", err)
	}
	return nil
}

func (s *Store) ContributionByKey(ctx context.Context, key string) (*gifting.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, contributionColumns+" WHERE idempotency_key = ?", key)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, gifting.ErrContributionNotFound
	}
	c, err := scanContribution(rows)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const contributionColumns = `
	SELECT id, gift_id, user_id, amount_value, currency, message, idempotency_key, created_at
	FROM contributions`

func (s *Store) queryGifts(ctx context.Context, where string, args ...any) ([]gifting.GiftItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, title, description, url, category, priority, price_value, currency, created_at
		FROM gifts `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gifts: %w", err)
	}

	var gifts []gifting.GiftItem
	for rows.Next() {
		var (
			g         gifting.GiftItem
			price     string
			currency  string
			createdAt string
		)
		if err := rows.Scan(&g.ID, &g.EventID, &g.Title, &g.Description, &g.URL,
			&g.Category, &g.Priority, &price, &currency, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan gift: %w", err)
		}
		if g.Price, err = parseAmount(price, currency); err != nil {
			rows.Close()
			return nil, err
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		gifts = append(gifts, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Contributors are loaded after the gift cursor is closed; a ":memory:"
	// store has a single connection.
	for i := range gifts {
		if gifts[i].Contributors, err = s.contributions(ctx, gifts[i].ID); err != nil {
			return nil, err
		}
	}
	return gifts, nil
}

func (s *Store) contributions(ctx context.Context, id gifting.GiftID) ([]gifting.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, contributionColumns+" WHERE gift_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	contributions := []gifting.Contribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

func scanContribution(rows *sql.Rows) (gifting.Contribution, error) {
	var (
		c         gifting.Contribution
		amount    string
		currency  string
		key       sql.NullString
		createdAt string
	)
	if err := rows.Scan(&c.ID, &c.GiftID, &c.UserID, &amount, &currency,
		&c.Message, &key, &createdAt); err != nil {
		return c, fmt.Errorf("failed to scan contribution: %w", err)
	}

	var err error
	if c.Amount, err = parseAmount(amount, currency); err != nil {
		return c, err
	}
	if c.Date, err = parseTime(createdAt); err != nil {
		return c, fmt.Errorf("failed to parse created_at: %w", err)
	}
	c.IdempotencyKey = key.String
	return c, nil
}
