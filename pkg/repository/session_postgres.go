package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatgpt-whatsapp-bot/pkg/domain"
)

type pgSessionRepository struct {
	db *sql.DB
}

// NewPgSessionRepository creates a postgres-backed session store. Each
// session is stored as one JSONB document keyed by phone number; Save
// overwrites whatever was persisted before (last-writer-wins).
func NewPgSessionRepository(db *sql.DB) *pgSessionRepository {
	return &pgSessionRepository{db: db}
}

func (r *pgSessionRepository) GetOrCreate(ctx context.Context, sender domain.Sender, defaults domain.SessionDefaults) (*domain.ChatSession, error) {
	const query = `
		SELECT data
		FROM sessions
		WHERE phone_number = $1
	`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, sender.PhoneNumber).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewChatSession(sender, defaults), nil
		}
		return nil, fmt.Errorf("fetching session by phone number: %w", err)
	}

	var session domain.ChatSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	// Profile name may change between messages; the webhook value wins.
	session.Sender = sender
	return &session, nil
}

func (r *pgSessionRepository) Save(ctx context.Context, session *domain.ChatSession) error {
	const query = `
		INSERT INTO sessions (phone_number, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (phone_number)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = now()
	`

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, session.Sender.PhoneNumber, data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}
