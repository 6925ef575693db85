package signal

import (
	"encoding/json"
	"fmt"
	"sync"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"

	"go.uber.org/zap"
)

// Frame is the wire envelope used in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Type: event, Payload: raw})
}

// Hub tracks live connections and the broadcast groups they belong to.
// It implements ports.Notifier; every send is a non-blocking enqueue.
type Hub struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*Connection
	groups      map[domain.RoomKey]map[domain.ConnectionID]struct{}
	memberships map[domain.ConnectionID]map[domain.RoomKey]struct{}

	metrics ports.TransportMetrics
	logger  *zap.SugaredLogger
}

var _ ports.Notifier = (*Hub)(nil)

func NewHub(metrics ports.TransportMetrics, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		connections: make(map[domain.ConnectionID]*Connection),
		groups:      make(map[domain.RoomKey]map[domain.ConnectionID]struct{}),
		memberships: make(map[domain.ConnectionID]map[domain.RoomKey]struct{}),
		metrics:     metrics,
		logger:      logger,
	}
}

func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[c.ID()] = c
}

// Unregister forgets the connection and drops it from every group.
func (h *Hub) Unregister(connID domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.connections, connID)
	for room := range h.memberships[connID] {
		h.leaveLocked(room, connID)
	}
	delete(h.memberships, connID)
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

// Connections returns a snapshot of every live connection.
func (h *Hub) Connections() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) JoinGroup(room domain.RoomKey, connID domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[room]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		h.groups[room] = members
	}
	members[connID] = struct{}{}

	rooms, ok := h.memberships[connID]
	if !ok {
		rooms = make(map[domain.RoomKey]struct{})
		h.memberships[connID] = rooms
	}
	rooms[room] = struct{}{}
}

func (h *Hub) LeaveGroup(room domain.RoomKey, connID domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(room, connID)
	if rooms, ok := h.memberships[connID]; ok && len(rooms) == 0 {
		delete(h.memberships, connID)
	}
}

func (h *Hub) leaveLocked(room domain.RoomKey, connID domain.ConnectionID) {
	if members, ok := h.groups[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, room)
		}
	}
	if rooms, ok := h.memberships[connID]; ok {
		delete(rooms, room)
	}
}

// GroupMembers returns the connections currently in room's broadcast group.
func (h *Hub) GroupMembers(room domain.RoomKey) []domain.ConnectionID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]domain.ConnectionID, 0, len(h.groups[room]))
	for id := range h.groups[room] {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) SendTo(connID domain.ConnectionID, event string, payload interface{}) error {
	h.mu.RLock()
	c, ok := h.connections[connID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrConnectionNotFound
	}

	frame, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	if err := c.TrySend(frame); err != nil {
		h.dropped(connID, event, err)
		return err
	}
	return nil
}

// Broadcast enqueues one encoded frame on every member of room except
// the given connection. All enqueues happen before it returns.
func (h *Hub) Broadcast(room domain.RoomKey, event string, payload interface{}, except domain.ConnectionID) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Errorw("failed to encode broadcast", "room", room.String(), "event", event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.groups[room]))
	for id := range h.groups[room] {
		if id == except {
			continue
		}
		if c, ok := h.connections[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.TrySend(frame); err != nil {
			h.dropped(c.ID(), event, err)
		}
	}
}

func (h *Hub) dropped(connID domain.ConnectionID, event string, err error) {
	if h.metrics != nil {
		h.metrics.FrameDropped(event)
	}
	h.logger.Warnw("frame dropped",
		"connection_id", connID,
		"event", event,
		"error", err,
	)
}
