package domain

import "time"

type SessionID string

// Session holds the lifecycle fields of a persisted study session.
// Everything else about a session belongs to the CRUD layer.
type Session struct {
	ID        SessionID  `json:"id"`
	IsStarted bool       `json:"is_started"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (id SessionID) Room() RoomID {
	return RoomID(id)
}
