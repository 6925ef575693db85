package ports

import (
	"time"

	"studyhub/internal/core/domain"
)

// Notifier delivers events to connections. Sends are fire-and-forget: they
// enqueue and return without waiting for the peer.
type Notifier interface {
	SendTo(connID domain.ConnectionID, event string, payload interface{}) error
	Broadcast(room domain.RoomKey, event string, payload interface{}, except domain.ConnectionID)
	JoinGroup(room domain.RoomKey, connID domain.ConnectionID)
	LeaveGroup(room domain.RoomKey, connID domain.ConnectionID)
}

type SignalingMetrics interface {
	RecordParticipantJoined(kind domain.RoomKind)
	RecordParticipantLeft(kind domain.RoomKind)
	RecordSignalRelayed(signal string)
	RecordSignalRejected(signal string)
	RecordSessionTransition(transition string, duration time.Duration, err error)
	RecordMessageSent(duration time.Duration, err error)
}

// TransportMetrics covers the connection layer underneath the services.
type TransportMetrics interface {
	ConnectionOpened()
	ConnectionClosed(duration time.Duration)
	FrameDropped(event string)
	EventHandled(event string, duration time.Duration, err error)
}
