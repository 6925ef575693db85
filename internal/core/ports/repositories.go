package ports

import (
	"context"
	"time"

	"studyhub/internal/core/domain"
)

// PresenceRegistry tracks which connections are in which rooms of one kind.
// A connection is in at most one room per registry.
// It is purely in-memory and never blocks on I/O.
type PresenceRegistry interface {
	Join(room domain.RoomID, participant domain.Participant) []domain.Departure
	Leave(room domain.RoomID, connID domain.ConnectionID) (domain.Participant, bool)
	ListParticipants(room domain.RoomID) []domain.Participant
	Has(room domain.RoomID, connID domain.ConnectionID) bool
	RemoveConnectionEverywhere(connID domain.ConnectionID) []domain.Departure
	DeleteRoom(room domain.RoomID) int
	RoomCount() int
}

// SessionRepository is the persistence collaborator for session lifecycle
// timestamps. Updates are last-write-wins field writes.
type SessionRepository interface {
	GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error)
	UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error)
}

type SessionEventPublisher interface {
	PublishSessionStarted(ctx context.Context, id domain.SessionID, startedAt time.Time) error
	PublishSessionEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) error
}

// MessageRepository writes chat messages through to the message store. The
// returned message carries what the store filled in, such as the author's
// display name.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
}
