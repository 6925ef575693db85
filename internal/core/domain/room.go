package domain

import "time"

type RoomID string
type ConnectionID string
type UserID string

type RoomKind string

const (
	RoomKindCall    RoomKind = "call"
	RoomKindSession RoomKind = "session"
	RoomKindChat    RoomKind = "chat"
)

// RoomKey names a broadcast group. Call, session and chat rooms live in separate
// namespaces so a group id and a session id never collide.
type RoomKey struct {
	Kind RoomKind
	ID   RoomID
}

func CallRoom(id RoomID) RoomKey    { return RoomKey{Kind: RoomKindCall, ID: id} }
func SessionRoom(id RoomID) RoomKey { return RoomKey{Kind: RoomKindSession, ID: id} }
func ChatRoom(id RoomID) RoomKey    { return RoomKey{Kind: RoomKindChat, ID: id} }

func (k RoomKey) String() string {
	return string(k.Kind) + ":" + string(k.ID)
}

// Participant is the per-connection record held by a presence registry.
type Participant struct {
	ConnectionID ConnectionID
	UserID       UserID
	UserName     string
	JoinedAt     time.Time
}

// Departure is a participant record removed from one room, either by
// disconnect cleanup or by joining another room of the same kind.
type Departure struct {
	Room        RoomID
	Participant Participant
}
