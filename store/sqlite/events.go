package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smartgifter/giftledger/gifting"
)

// =============================================================================
// EVENT STORE (gifting.EventStore, gifting.EventDirectory)
// =============================================================================

func (s *Store) CreateEvent(ctx context.Context, event gifting.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var date sql.NullString
	if !event.Date.IsZero() {
		date = sql.NullString{String: formatTime(event.Date), Valid: true}
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO events
		(id, title, description, location, event_date, event_type, creator, privacy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID, event.Title, event.Description, event.Location, date,
		event.Type, event.Creator, event.Privacy, formatTime(event.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: event %s already exists", gifting.ErrInvalidEvent, event.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	for i, p := range event.Participants {
		_, err := sqlTx.ExecContext(ctx,
			"INSERT INTO event_participants (event_id, user_id, position, rsvp) VALUES (?, ?, ?, ?)",
			event.ID, p, i, nullString(string(event.RSVP[p])),
		)
		if err != nil {
			return fmt.Errorf("failed to save participant %s: %w", p, err)
		}
	}

	return sqlTx.Commit()
}

func (s *Store) Event(ctx context.Context, id gifting.EventID) (*gifting.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.event(ctx, id)
}

func (s *Store) EventByGiftID(ctx context.Context, id gifting.GiftID) (*gifting.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var eventID gifting.EventID
	err := s.db.QueryRowContext(ctx, "SELECT event_id FROM gifts WHERE id = ?", id).Scan(&eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gifting.ErrGiftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve gift event: %w", err)
	}
	return s.event(ctx, eventID)
}

func (s *Store) UpdateRSVP(ctx context.Context, id gifting.EventID, user gifting.UserID, status gifting.RSVPStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE event_participants SET rsvp = ? WHERE event_id = ? AND user_id = ?",
		status, id, user,
	)
	if err != nil {
		return fmt.Errorf("failed to update rsvp: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if exists == 0 {
		return gifting.ErrEventNotFound
	}
	return gifting.ErrNotParticipant
}

func (s *Store) event(ctx context.Context, id gifting.EventID) (*gifting.Event, error) {
	var (
		event     gifting.Event
		date      sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, location, event_date, event_type, creator, privacy, created_at
		FROM events WHERE id = ?
	`, id).Scan(
		&event.ID, &event.Title, &event.Description, &event.Location, &date,
		&event.Type, &event.Creator, &event.Privacy, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gifting.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event.Date, err = parseTime(date.String); err != nil {
		return nil, fmt.Errorf("failed to parse event date: %w", err)
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, rsvp FROM event_participants WHERE event_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	event.Participants = []gifting.UserID{}
	event.RSVP = make(map[gifting.UserID]gifting.RSVPStatus)
	for rows.Next() {
		var (
			user gifting.UserID
			rsvp sql.NullString
		)
		if err := rows.Scan(&user, &rsvp); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		event.Participants = append(event.Participants, user)
		if rsvp.Valid {
			event.RSVP[user] = gifting.RSVPStatus(rsvp.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &event, nil
}
