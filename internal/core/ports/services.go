package ports

import (
	"context"
	"encoding/json"

	"studyhub/internal/core/domain"
)

type JoinRequest struct {
	Room     domain.RoomID
	UserID   domain.UserID
	UserName string
}

type SignalRequest struct {
	Room         domain.RoomID
	Payload      json.RawMessage
	ReceiverID   domain.ConnectionID
	SenderName   string
	ReceiverName string
}

type TypingRequest struct {
	Room     domain.RoomID
	UserID   domain.UserID
	UserName string
}

type CallService interface {
	JoinCall(ctx context.Context, connID domain.ConnectionID, req JoinRequest) error
	LeaveCall(ctx context.Context, connID domain.ConnectionID, room domain.RoomID) error
	RelayOffer(ctx context.Context, connID domain.ConnectionID, req SignalRequest) error
	RelayAnswer(ctx context.Context, connID domain.ConnectionID, req SignalRequest) error
	RelayICECandidate(ctx context.Context, connID domain.ConnectionID, req SignalRequest) error
	Participants(room domain.RoomID) []domain.Participant
}

type SessionService interface {
	JoinSession(ctx context.Context, connID domain.ConnectionID, req JoinRequest) error
	LeaveSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error
	StartSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error
	EndSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error
	Participants(id domain.SessionID) []domain.Participant
}

// ConnectionService runs disconnect cleanup across every registry.
type ConnectionService interface {
	Disconnect(ctx context.Context, connID domain.ConnectionID)
}

type MessageRequest struct {
	Room     domain.RoomID
	UserID   domain.UserID
	UserName string
	Content  string
}

type ChatService interface {
	JoinGroup(ctx context.Context, connID domain.ConnectionID, room domain.RoomID) error
	LeaveGroup(ctx context.Context, connID domain.ConnectionID, room domain.RoomID) error
	Typing(ctx context.Context, connID domain.ConnectionID, req TypingRequest, stopped bool) error
	SendMessage(ctx context.Context, connID domain.ConnectionID, req MessageRequest) (*domain.Message, error)
}
