package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"studyhub/internal/core/domain"
	"studyhub/internal/infrastructure/repositories/memory"
)

type sentFrame struct {
	To      domain.ConnectionID
	Event   string
	Payload interface{}
}

// recordingNotifier is an in-memory Notifier that tracks group membership
// and records every frame delivered to each connection.
type recordingNotifier struct {
	mu      sync.Mutex
	online  map[domain.ConnectionID]bool
	groups  map[domain.RoomKey]map[domain.ConnectionID]bool
	frames  []sentFrame
	sendErr error
}

func newRecordingNotifier(online ...domain.ConnectionID) *recordingNotifier {
	n := &recordingNotifier{
		online: make(map[domain.ConnectionID]bool),
		groups: make(map[domain.RoomKey]map[domain.ConnectionID]bool),
	}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (n *recordingNotifier) SendTo(connID domain.ConnectionID, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sendErr != nil {
		return n.sendErr
	}
	if !n.online[connID] {
		return domain.ErrConnectionNotFound
	}
	n.frames = append(n.frames, sentFrame{To: connID, Event: event, Payload: payload})
	return nil
}

func (n *recordingNotifier) Broadcast(room domain.RoomKey, event string, payload interface{}, except domain.ConnectionID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id := range n.groups[room] {
		if id == except {
			continue
		}
		n.frames = append(n.frames, sentFrame{To: id, Event: event, Payload: payload})
	}
}

func (n *recordingNotifier) JoinGroup(room domain.RoomKey, connID domain.ConnectionID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.groups[room] == nil {
		n.groups[room] = make(map[domain.ConnectionID]bool)
	}
	n.groups[room][connID] = true
}

func (n *recordingNotifier) LeaveGroup(room domain.RoomKey, connID domain.ConnectionID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.groups[room], connID)
}

func (n *recordingNotifier) inGroup(room domain.RoomKey, connID domain.ConnectionID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.groups[room][connID]
}

func (n *recordingNotifier) framesFor(connID domain.ConnectionID, event string) []sentFrame {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []sentFrame
	for _, f := range n.frames {
		if f.To == connID && (event == "" || f.Event == event) {
			out = append(out, f)
		}
	}
	return out
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	c := 0
	for _, f := range n.frames {
		if f.Event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.frames = nil
}

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error) {
	args := m.Called(ctx, id, startedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	args := m.Called(ctx, id, endedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	args := m.Called(ctx, message)
	if stored := args.Get(0); stored != nil {
		return stored.(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSessionEventPublisher struct {
	mock.Mock
}

func (m *MockSessionEventPublisher) PublishSessionStarted(ctx context.Context, id domain.SessionID, startedAt time.Time) error {
	return m.Called(ctx, id, startedAt).Error(0)
}

func (m *MockSessionEventPublisher) PublishSessionEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) error {
	return m.Called(ctx, id, endedAt).Error(0)
}

// panickingRegistry wraps a registry and panics on RemoveConnectionEverywhere.
type panickingRegistry struct {
	*memory.PresenceRegistry
}

func (panickingRegistry) RemoveConnectionEverywhere(domain.ConnectionID) []domain.Departure {
	panic("registry corrupted")
}
