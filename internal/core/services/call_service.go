package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	apperrors "studyhub/pkg/errors"
	"studyhub/pkg/logger"

	"go.uber.org/zap"
)

// callService relays WebRTC negotiation between members of a call room.
// Payloads are forwarded as opaque JSON and never inspected.
type callService struct {
	registry ports.PresenceRegistry
	notifier ports.Notifier
	metrics  ports.SignalingMetrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewCallService(
	registry ports.PresenceRegistry,
	notifier ports.Notifier,
	metrics ports.SignalingMetrics,
	logger *zap.SugaredLogger,
) ports.CallService {
	return &callService{
		registry: registry,
		notifier: notifier,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
		now:      time.Now,
	}
}

func (s *callService) JoinCall(ctx context.Context, connID domain.ConnectionID, req ports.JoinRequest) error {
	log := logger.FromContext(ctx, s.logger)
	room := domain.CallRoom(req.Room)

	participant := domain.Participant{
		ConnectionID: connID,
		UserID:       req.UserID,
		UserName:     req.UserName,
		JoinedAt:     s.now(),
	}
	for _, departure := range s.registry.Join(req.Room, participant) {
		callScope(s.registry).announceDeparture(s.notifier, s.metrics, connID, departure)
		log.Infow("left call for another call", "previous_room_id", departure.Room, "room_id", req.Room)
	}
	s.notifier.JoinGroup(room, connID)
	s.metrics.RecordParticipantJoined(domain.RoomKindCall)

	existing := withoutConnection(s.registry.ListParticipants(req.Room), connID)
	if err := s.notifier.SendTo(connID, domain.EventExistingParticipants, domain.NewParticipantViews(existing)); err != nil {
		log.Warnw("failed to send existing participants", "room_id", req.Room, "error", err)
	}
	s.notifier.Broadcast(room, domain.EventUserJoinedCall, domain.NewParticipantView(participant), connID)

	log.Infow("joined call",
		"room_id", req.Room,
		"user_id", req.UserID,
		"participants", len(existing)+1,
	)
	return nil
}

func (s *callService) LeaveCall(ctx context.Context, connID domain.ConnectionID, roomID domain.RoomID) error {
	room := domain.CallRoom(roomID)

	participant, ok := s.registry.Leave(roomID, connID)
	s.notifier.LeaveGroup(room, connID)
	if !ok {
		return nil
	}

	s.metrics.RecordParticipantLeft(domain.RoomKindCall)
	s.notifier.Broadcast(room, domain.EventUserLeftCall, domain.UserLeftEvent{
		SocketID: connID,
		UserID:   participant.UserID,
		UserName: participant.UserName,
	}, connID)

	logger.FromContext(ctx, s.logger).Infow("left call", "room_id", roomID, "user_id", participant.UserID)
	return nil
}

// RelayOffer forwards an offer only when the receiver is registered in the
// call room; otherwise the sender gets a not-found error.
func (s *callService) RelayOffer(ctx context.Context, connID domain.ConnectionID, req ports.SignalRequest) error {
	if !s.registry.Has(req.Room, req.ReceiverID) {
		s.metrics.RecordSignalRejected(domain.EventOffer)
		logger.FromContext(ctx, s.logger).Debugw("offer target not in call",
			"room_id", req.Room,
			"receiver_id", req.ReceiverID,
		)
		return apperrors.WrapError(domain.ErrRecipientNotInCall, apperrors.ErrCodeNotFound, "recipient not found in call", http.StatusNotFound).
			WithContext("receiver_id", req.ReceiverID)
	}

	err := s.forward(ctx, connID, domain.EventOffer, req, domain.SignalEvent{Offer: req.Payload})
	if errors.Is(err, domain.ErrConnectionNotFound) {
		return apperrors.WrapError(domain.ErrRecipientNotInCall, apperrors.ErrCodeNotFound, "recipient not found in call", http.StatusNotFound)
	}
	return err
}

// RelayAnswer and RelayICECandidate skip the registry check: the handshake
// is already underway, so an absent receiver only means the frame is dropped.
func (s *callService) RelayAnswer(ctx context.Context, connID domain.ConnectionID, req ports.SignalRequest) error {
	return s.forwardBestEffort(ctx, connID, domain.EventAnswer, req, domain.SignalEvent{Answer: req.Payload})
}

func (s *callService) RelayICECandidate(ctx context.Context, connID domain.ConnectionID, req ports.SignalRequest) error {
	return s.forwardBestEffort(ctx, connID, domain.EventICECandidate, req, domain.SignalEvent{Candidate: req.Payload})
}

func (s *callService) Participants(roomID domain.RoomID) []domain.Participant {
	return s.registry.ListParticipants(roomID)
}

func (s *callService) forwardBestEffort(ctx context.Context, connID domain.ConnectionID, event string, req ports.SignalRequest, frame domain.SignalEvent) error {
	err := s.forward(ctx, connID, event, req, frame)
	if errors.Is(err, domain.ErrConnectionNotFound) {
		return nil
	}
	return err
}

func (s *callService) forward(ctx context.Context, connID domain.ConnectionID, event string, req ports.SignalRequest, frame domain.SignalEvent) error {
	log := logger.FromContext(ctx, s.logger)

	frame.GroupID = req.Room
	frame.SenderID = connID
	frame.SenderName = req.SenderName

	if err := s.notifier.SendTo(req.ReceiverID, event, frame); err != nil {
		s.metrics.RecordSignalRejected(event)
		log.Debugw("signal not delivered",
			"event", event,
			"room_id", req.Room,
			"receiver_id", req.ReceiverID,
			"error", err,
		)
		if errors.Is(err, domain.ErrConnectionNotFound) {
			return err
		}
		// full or closing queue: drop silently
		return nil
	}

	s.metrics.RecordSignalRelayed(event)
	log.Debugw("signal relayed",
		"event", event,
		"room_id", req.Room,
		"receiver_id", req.ReceiverID,
	)
	return nil
}
