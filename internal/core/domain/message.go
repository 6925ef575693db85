package domain

import "time"

type MessageID string

// Message is a chat message posted to a group. The core only writes it
// through to the message store and relays it; reading history is left to
// the CRUD layer.
type Message struct {
	ID        MessageID `json:"id"`
	GroupID   RoomID    `json:"group_id"`
	UserID    UserID    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
