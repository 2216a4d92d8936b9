package repository

import (
	"context"
	"sync"
	"time"

	"chatgpt-whatsapp-bot/pkg/domain"
)

type sessionEntry struct {
	session    domain.ChatSession
	lastUpdate time.Time
}

type sessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
}

// NewSessionRepository creates an in-memory session store keyed by phone
// number. A ttl of zero keeps sessions forever; otherwise expired sessions
// are pruned lazily on access.
func NewSessionRepository(ttl time.Duration) *sessionRepository {
	return &sessionRepository{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
	}
}

func (r *sessionRepository) GetOrCreate(ctx context.Context, sender domain.Sender, defaults domain.SessionDefaults) (*domain.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sessions[sender.PhoneNumber]; ok {
		if r.ttl <= 0 || time.Since(entry.lastUpdate) <= r.ttl {
			session := entry.session
			session.Messages = append([]domain.ChatMessage(nil), entry.session.Messages...)
			session.Sender = sender
			return &session, nil
		}
		delete(r.sessions, sender.PhoneNumber)
	}

	session := domain.NewChatSession(sender, defaults)
	r.sessions[sender.PhoneNumber] = sessionEntry{
		session:    *session,
		lastUpdate: time.Now(),
	}
	return session, nil
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	stored.Messages = append([]domain.ChatMessage(nil), session.Messages...)
	r.sessions[session.Sender.PhoneNumber] = sessionEntry{
		session:    stored,
		lastUpdate: time.Now(),
	}
	return nil
}
