package services

import (
	"context"
	"fmt"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/logger"

	"go.uber.org/zap"
)

// presenceScope pairs a registry with the event its members receive when
// someone drops out of it.
type presenceScope struct {
	kind      domain.RoomKind
	registry  ports.PresenceRegistry
	leftEvent string
}

func callScope(registry ports.PresenceRegistry) presenceScope {
	return presenceScope{kind: domain.RoomKindCall, registry: registry, leftEvent: domain.EventUserLeftCall}
}

func sessionScope(registry ports.PresenceRegistry) presenceScope {
	return presenceScope{kind: domain.RoomKindSession, registry: registry, leftEvent: domain.EventUserLeftSession}
}

// announceDeparture tells the rest of the room that connID left and takes
// it out of the room's broadcast group.
func (scope presenceScope) announceDeparture(notifier ports.Notifier, metrics ports.SignalingMetrics, connID domain.ConnectionID, departure domain.Departure) {
	room := domain.RoomKey{Kind: scope.kind, ID: departure.Room}
	notifier.Broadcast(room, scope.leftEvent, domain.UserLeftEvent{
		SocketID: connID,
		UserID:   departure.Participant.UserID,
		UserName: departure.Participant.UserName,
	}, connID)
	notifier.LeaveGroup(room, connID)
	metrics.RecordParticipantLeft(scope.kind)
}

// connectionService removes a closed connection from every call and session
// room it was in and tells the remaining members.
type connectionService struct {
	scopes   []presenceScope
	notifier ports.Notifier
	metrics  ports.SignalingMetrics
	logger   *zap.SugaredLogger
}

func NewConnectionService(
	calls ports.PresenceRegistry,
	sessions ports.PresenceRegistry,
	notifier ports.Notifier,
	metrics ports.SignalingMetrics,
	logger *zap.SugaredLogger,
) ports.ConnectionService {
	return &connectionService{
		scopes:   []presenceScope{callScope(calls), sessionScope(sessions)},
		notifier: notifier,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
	}
}

// Disconnect never panics. A failure in one room is logged and cleanup
// carries on with the rest.
func (s *connectionService) Disconnect(ctx context.Context, connID domain.ConnectionID) {
	log := logger.FromContext(ctx, s.logger)

	removed := 0
	for _, scope := range s.scopes {
		departures, err := s.removeEverywhere(scope, connID)
		if err != nil {
			log.Errorw("presence cleanup failed", "kind", scope.kind, "error", err)
			continue
		}
		for _, departure := range departures {
			if err := s.notifyDeparture(scope, connID, departure); err != nil {
				log.Errorw("departure notification failed",
					"kind", scope.kind,
					"room_id", departure.Room,
					"error", err,
				)
				continue
			}
			removed++
		}
	}

	log.Infow("connection cleaned up", "rooms_left", removed)
}

func (s *connectionService) removeEverywhere(scope presenceScope, connID domain.ConnectionID) (departures []domain.Departure, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return scope.registry.RemoveConnectionEverywhere(connID), nil
}

func (s *connectionService) notifyDeparture(scope presenceScope, connID domain.ConnectionID, departure domain.Departure) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	scope.announceDeparture(s.notifier, s.metrics, connID, departure)
	return nil
}
