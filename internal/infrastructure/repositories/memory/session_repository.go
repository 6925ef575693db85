package memory

import (
	"context"
	"sync"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
)

// SessionRepository keeps session lifecycle fields in process memory.
// Updates upsert, so it works without a separate CRUD store in development.
type SessionRepository struct {
	sessions map[domain.SessionID]*domain.Session
	mu       sync.RWMutex
}

func NewSessionRepository() ports.SessionRepository {
	return &SessionRepository{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (r *SessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *SessionRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.getOrCreateLocked(id)
	session.IsStarted = true
	session.StartedAt = &startedAt

	copied := *session
	return &copied, nil
}

func (r *SessionRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	session := r.getOrCreateLocked(id)
	session.EndedAt = &endedAt

	copied := *session
	return &copied, nil
}

func (r *SessionRepository) getOrCreateLocked(id domain.SessionID) *domain.Session {
	session, exists := r.sessions[id]
	if !exists {
		session = &domain.Session{ID: id}
		r.sessions[id] = session
	}
	return session
}
