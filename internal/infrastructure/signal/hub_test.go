package signal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/core/domain"
	"studyhub/pkg/logger"
)

type dropCounter struct {
	dropped []string
}

func (d *dropCounter) ConnectionOpened()                         {}
func (d *dropCounter) ConnectionClosed(time.Duration)            {}
func (d *dropCounter) FrameDropped(event string)                 { d.dropped = append(d.dropped, event) }
func (d *dropCounter) EventHandled(string, time.Duration, error) {}

func registerTestConnection(h *Hub, id string, buffer int) *Connection {
	c := newConnection(domain.ConnectionID(id), nil, buffer, nil)
	h.Register(c)
	return c
}

func drain(t *testing.T, c *Connection) []Frame {
	t.Helper()
	var frames []Frame
	for {
		select {
		case raw := <-c.send:
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestHub_BroadcastSkipsExcept(t *testing.T) {
	h := NewHub(nil, logger.Nop())
	a := registerTestConnection(h, "a", 4)
	b := registerTestConnection(h, "b", 4)
	c := registerTestConnection(h, "c", 4)

	room := domain.CallRoom("g1")
	h.JoinGroup(room, a.ID())
	h.JoinGroup(room, b.ID())

	h.Broadcast(room, domain.EventUserJoinedCall, domain.ParticipantView{SocketID: "b"}, b.ID())

	framesA := drain(t, a)
	require.Len(t, framesA, 1)
	assert.Equal(t, domain.EventUserJoinedCall, framesA[0].Type)
	assert.Empty(t, drain(t, b))
	assert.Empty(t, drain(t, c))
}

func TestHub_GroupsAreNamespacedByKind(t *testing.T) {
	h := NewHub(nil, logger.Nop())
	a := registerTestConnection(h, "a", 4)

	h.JoinGroup(domain.CallRoom("x"), a.ID())
	h.Broadcast(domain.SessionRoom("x"), domain.EventSessionStarted, struct{}{}, "")

	assert.Empty(t, drain(t, a))
	assert.Equal(t, []domain.ConnectionID{"a"}, h.GroupMembers(domain.CallRoom("x")))
	assert.Empty(t, h.GroupMembers(domain.SessionRoom("x")))
}

func TestHub_UnregisterLeavesAllGroups(t *testing.T) {
	h := NewHub(nil, logger.Nop())
	a := registerTestConnection(h, "a", 4)
	registerTestConnection(h, "b", 4)

	h.JoinGroup(domain.CallRoom("g1"), a.ID())
	h.JoinGroup(domain.SessionRoom("s1"), a.ID())
	h.JoinGroup(domain.ChatRoom("g1"), a.ID())

	h.Unregister(a.ID())

	assert.Equal(t, 1, h.Count())
	assert.Empty(t, h.GroupMembers(domain.CallRoom("g1")))
	assert.Empty(t, h.GroupMembers(domain.SessionRoom("s1")))
	assert.Empty(t, h.GroupMembers(domain.ChatRoom("g1")))
	assert.ErrorIs(t, h.SendTo(a.ID(), domain.EventError, struct{}{}), domain.ErrConnectionNotFound)
}

func TestHub_LeaveGroupIsIdempotent(t *testing.T) {
	h := NewHub(nil, logger.Nop())
	a := registerTestConnection(h, "a", 4)
	room := domain.ChatRoom("g1")

	h.LeaveGroup(room, a.ID())
	h.JoinGroup(room, a.ID())
	h.JoinGroup(room, a.ID())
	h.LeaveGroup(room, a.ID())
	h.LeaveGroup(room, a.ID())

	assert.Empty(t, h.GroupMembers(room))
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	metrics := &dropCounter{}
	h := NewHub(metrics, logger.Nop())
	slow := registerTestConnection(h, "slow", 1)
	fast := registerTestConnection(h, "fast", 4)

	room := domain.CallRoom("g1")
	h.JoinGroup(room, slow.ID())
	h.JoinGroup(room, fast.ID())

	h.Broadcast(room, domain.EventUserJoinedCall, struct{}{}, "")
	h.Broadcast(room, domain.EventUserLeftCall, struct{}{}, "")

	assert.Len(t, drain(t, slow), 1)
	assert.Len(t, drain(t, fast), 2)
	assert.Equal(t, []string{domain.EventUserLeftCall}, metrics.dropped)

	require.NoError(t, h.SendTo(slow.ID(), domain.EventError, struct{}{}))
	assert.ErrorIs(t, h.SendTo(slow.ID(), domain.EventError, struct{}{}), domain.ErrSendBufferFull)
}
