package domain

import (
	"encoding/json"
	"time"
)

// Inbound event types (client -> server).
const (
	EventJoinGroupCall  = "joinGroupCall"
	EventLeaveGroupCall = "leaveGroupCall"
	EventOffer          = "offer"
	EventAnswer         = "answer"
	EventICECandidate   = "iceCandidate"
	EventJoinSession    = "joinSession"
	EventLeaveSession   = "leaveSession"
	EventStartSession   = "startSession"
	EventEndSession     = "endSession"
	EventJoinGroup      = "joinGroup"
	EventLeaveGroup     = "leaveGroup"
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventSendMessage    = "sendMessage"
)

// Outbound event types (server -> client).
const (
	EventConnected            = "connected"
	EventError                = "error"
	EventExistingParticipants = "existingParticipants"
	EventUserJoinedCall       = "userJoinedCall"
	EventUserLeftCall         = "userLeftCall"
	EventSessionParticipants  = "sessionParticipants"
	EventUserJoinedSession    = "userJoinedSession"
	EventUserLeftSession      = "userLeftSession"
	EventSessionStarted       = "sessionStarted"
	EventSessionEnded         = "sessionEnded"
	EventMessage              = "message"
)

type ConnectedEvent struct {
	SocketID ConnectionID `json:"socketId"`
}

type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

type ParticipantView struct {
	SocketID ConnectionID `json:"socketId"`
	UserID   UserID       `json:"userId"`
	UserName string       `json:"userName,omitempty"`
	JoinedAt int64        `json:"joinedAt"`
}

func NewParticipantView(p Participant) ParticipantView {
	return ParticipantView{
		SocketID: p.ConnectionID,
		UserID:   p.UserID,
		UserName: p.UserName,
		JoinedAt: p.JoinedAt.UnixMilli(),
	}
}

func NewParticipantViews(ps []Participant) []ParticipantView {
	views := make([]ParticipantView, 0, len(ps))
	for _, p := range ps {
		views = append(views, NewParticipantView(p))
	}
	return views
}

// UserLeftEvent carries userId/userName only when the registry knew them.
type UserLeftEvent struct {
	SocketID ConnectionID `json:"socketId"`
	UserID   UserID       `json:"userId,omitempty"`
	UserName string       `json:"userName,omitempty"`
}

// SignalEvent is the relayed offer/answer/ICE frame. Exactly one of the
// payload fields is set; its content is forwarded untouched.
type SignalEvent struct {
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	GroupID    RoomID          `json:"groupId"`
	SenderID   ConnectionID    `json:"senderId"`
	SenderName string          `json:"senderName,omitempty"`
}

type SessionStartedEvent struct {
	SessionID SessionID `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

type SessionEndedEvent struct {
	SessionID SessionID `json:"sessionId"`
	EndedAt   time.Time `json:"endedAt"`
}

type TypingEvent struct {
	GroupID  RoomID `json:"groupId"`
	UserID   UserID `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

type MessageAuthor struct {
	ID   UserID `json:"id"`
	Name string `json:"name,omitempty"`
}

// MessageEvent is the chat message as the browser client renders it.
type MessageEvent struct {
	ID        MessageID     `json:"id"`
	Content   string        `json:"content"`
	GroupID   RoomID        `json:"groupId"`
	UserID    UserID        `json:"userId"`
	CreatedAt time.Time     `json:"createdAt"`
	User      MessageAuthor `json:"user"`
}

func NewMessageEvent(m *Message) MessageEvent {
	return MessageEvent{
		ID:        m.ID,
		Content:   m.Content,
		GroupID:   m.GroupID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		User:      MessageAuthor{ID: m.UserID, Name: m.UserName},
	}
}
