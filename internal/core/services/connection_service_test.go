package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/internal/infrastructure/repositories/memory"
	"studyhub/pkg/logger"
)

func TestConnectionService_DisconnectCleansAllRooms(t *testing.T) {
	calls := memory.NewPresenceRegistry(domain.RoomKindCall)
	sessions := memory.NewPresenceRegistry(domain.RoomKindSession)
	notifier := newRecordingNotifier("A", "B", "C")
	ctx := context.Background()

	callSvc := NewCallService(calls, notifier, nil, logger.Nop())
	sessionSvc := NewSessionService(sessions, new(MockSessionRepository), notifier, nil, nil, logger.Nop())
	connSvc := NewConnectionService(calls, sessions, notifier, nil, logger.Nop())

	require.NoError(t, callSvc.JoinCall(ctx, "A", ports.JoinRequest{Room: "g1", UserID: "u1", UserName: "Ann"}))
	require.NoError(t, callSvc.JoinCall(ctx, "B", ports.JoinRequest{Room: "g1", UserID: "u2"}))
	require.NoError(t, sessionSvc.JoinSession(ctx, "A", ports.JoinRequest{Room: "s1", UserID: "u1", UserName: "Ann"}))
	require.NoError(t, sessionSvc.JoinSession(ctx, "C", ports.JoinRequest{Room: "s1", UserID: "u3"}))
	notifier.reset()

	connSvc.Disconnect(ctx, "A")

	callLeft := notifier.framesFor("B", domain.EventUserLeftCall)
	require.Len(t, callLeft, 1)
	assert.Equal(t, domain.UserLeftEvent{SocketID: "A", UserID: "u1", UserName: "Ann"}, callLeft[0].Payload)

	sessionLeft := notifier.framesFor("C", domain.EventUserLeftSession)
	require.Len(t, sessionLeft, 1)
	assert.Equal(t, domain.UserLeftEvent{SocketID: "A", UserID: "u1", UserName: "Ann"}, sessionLeft[0].Payload)

	assert.Equal(t, 1, notifier.count(domain.EventUserLeftCall))
	assert.Equal(t, 1, notifier.count(domain.EventUserLeftSession))
	assert.False(t, calls.Has("g1", "A"))
	assert.False(t, sessions.Has("s1", "A"))
	assert.False(t, notifier.inGroup(domain.CallRoom("g1"), "A"))

	// a second run finds nothing left to do
	notifier.reset()
	connSvc.Disconnect(ctx, "A")
	assert.Empty(t, notifier.frames)
}

func TestConnectionService_NeverJoinedIsSilent(t *testing.T) {
	calls := memory.NewPresenceRegistry(domain.RoomKindCall)
	sessions := memory.NewPresenceRegistry(domain.RoomKindSession)
	notifier := newRecordingNotifier("A")

	NewConnectionService(calls, sessions, notifier, nil, logger.Nop()).Disconnect(context.Background(), "A")

	assert.Empty(t, notifier.frames)
}

func TestConnectionService_FailingRegistryDoesNotBlockOthers(t *testing.T) {
	calls := panickingRegistry{memory.NewPresenceRegistry(domain.RoomKindCall)}
	sessions := memory.NewPresenceRegistry(domain.RoomKindSession)
	notifier := newRecordingNotifier("A", "B")
	ctx := context.Background()

	sessionSvc := NewSessionService(sessions, new(MockSessionRepository), notifier, nil, nil, logger.Nop())
	require.NoError(t, sessionSvc.JoinSession(ctx, "A", ports.JoinRequest{Room: "s1", UserID: "u1"}))
	require.NoError(t, sessionSvc.JoinSession(ctx, "B", ports.JoinRequest{Room: "s1", UserID: "u2"}))
	notifier.reset()

	connSvc := NewConnectionService(calls, sessions, notifier, nil, logger.Nop())
	assert.NotPanics(t, func() { connSvc.Disconnect(ctx, "A") })

	assert.Len(t, notifier.framesFor("B", domain.EventUserLeftSession), 1)
	assert.False(t, sessions.Has("s1", "A"))
}
