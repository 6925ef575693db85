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
	"studyhub/pkg/tracing"

	"go.uber.org/zap"
)

const (
	transitionStart = "start"
	transitionEnd   = "end"
)

// sessionService coordinates session presence with the persisted
// start/end timestamps. Registry locks are never held across repository
// calls, so joins and leaves may interleave with an in-flight start or end.
type sessionService struct {
	registry  ports.PresenceRegistry
	repo      ports.SessionRepository
	notifier  ports.Notifier
	publisher ports.SessionEventPublisher
	metrics   ports.SignalingMetrics
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewSessionService(
	registry ports.PresenceRegistry,
	repo ports.SessionRepository,
	notifier ports.Notifier,
	publisher ports.SessionEventPublisher,
	metrics ports.SignalingMetrics,
	logger *zap.SugaredLogger,
) ports.SessionService {
	return &sessionService{
		registry:  registry,
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		metrics:   metricsOrNop(metrics),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *sessionService) JoinSession(ctx context.Context, connID domain.ConnectionID, req ports.JoinRequest) error {
	log := logger.FromContext(ctx, s.logger)
	room := domain.SessionRoom(req.Room)

	s.notifier.JoinGroup(room, connID)

	participant := domain.Participant{
		ConnectionID: connID,
		UserID:       req.UserID,
		UserName:     req.UserName,
		JoinedAt:     s.now(),
	}
	for _, departure := range s.registry.Join(req.Room, participant) {
		sessionScope(s.registry).announceDeparture(s.notifier, s.metrics, connID, departure)
		log.Infow("left session for another session", "previous_session_id", departure.Room, "session_id", req.Room)
	}
	s.metrics.RecordParticipantJoined(domain.RoomKindSession)

	existing := withoutConnection(s.registry.ListParticipants(req.Room), connID)
	if err := s.notifier.SendTo(connID, domain.EventSessionParticipants, domain.NewParticipantViews(existing)); err != nil {
		log.Warnw("failed to send session participants", "session_id", req.Room, "error", err)
	}
	s.notifier.Broadcast(room, domain.EventUserJoinedSession, domain.NewParticipantView(participant), connID)

	log.Infow("joined session",
		"session_id", req.Room,
		"user_id", req.UserID,
		"participants", len(existing)+1,
	)
	return nil
}

// LeaveSession only ever removes the calling connection.
func (s *sessionService) LeaveSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error {
	room := domain.SessionRoom(id.Room())

	participant, ok := s.registry.Leave(id.Room(), connID)
	if ok {
		s.metrics.RecordParticipantLeft(domain.RoomKindSession)
		s.notifier.Broadcast(room, domain.EventUserLeftSession, domain.UserLeftEvent{
			SocketID: connID,
			UserID:   participant.UserID,
			UserName: participant.UserName,
		}, connID)
		logger.FromContext(ctx, s.logger).Infow("left session", "session_id", id, "user_id", participant.UserID)
	}
	s.notifier.LeaveGroup(room, connID)
	return nil
}

func (s *sessionService) StartSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error {
	ctx, span := tracing.TraceSessionOperation(ctx, transitionStart, string(id))
	defer span.End()

	requestedAt := s.now()
	session, err := s.persist(ctx, transitionStart, id, func(ctx context.Context) (*domain.Session, error) {
		return s.repo.UpdateSessionStart(ctx, id, requestedAt)
	})
	if err != nil {
		return err
	}

	startedAt := requestedAt
	if session.StartedAt != nil {
		startedAt = *session.StartedAt
	}

	s.notifier.Broadcast(domain.SessionRoom(id.Room()), domain.EventSessionStarted, domain.SessionStartedEvent{
		SessionID: id,
		StartedAt: startedAt,
	}, "")

	if s.publisher != nil {
		if err := s.publisher.PublishSessionStarted(ctx, id, startedAt); err != nil {
			logger.FromContext(ctx, s.logger).Warnw("failed to publish session started", "session_id", id, "error", err)
		}
	}

	logger.FromContext(ctx, s.logger).Infow("session started", "session_id", id, "started_at", startedAt)
	return nil
}

// EndSession persists endedAt, notifies the group and then discards the
// whole presence entry for the session.
func (s *sessionService) EndSession(ctx context.Context, connID domain.ConnectionID, id domain.SessionID) error {
	ctx, span := tracing.TraceSessionOperation(ctx, transitionEnd, string(id))
	defer span.End()

	requestedAt := s.now()
	session, err := s.persist(ctx, transitionEnd, id, func(ctx context.Context) (*domain.Session, error) {
		return s.repo.UpdateSessionEnd(ctx, id, requestedAt)
	})
	if err != nil {
		return err
	}

	endedAt := requestedAt
	if session.EndedAt != nil {
		endedAt = *session.EndedAt
	}

	s.notifier.Broadcast(domain.SessionRoom(id.Room()), domain.EventSessionEnded, domain.SessionEndedEvent{
		SessionID: id,
		EndedAt:   endedAt,
	}, "")

	dropped := s.registry.DeleteRoom(id.Room())

	if s.publisher != nil {
		if err := s.publisher.PublishSessionEnded(ctx, id, endedAt); err != nil {
			logger.FromContext(ctx, s.logger).Warnw("failed to publish session ended", "session_id", id, "error", err)
		}
	}

	logger.FromContext(ctx, s.logger).Infow("session ended",
		"session_id", id,
		"ended_at", endedAt,
		"participants_dropped", dropped,
	)
	return nil
}

func (s *sessionService) Participants(id domain.SessionID) []domain.Participant {
	return s.registry.ListParticipants(id.Room())
}

func (s *sessionService) persist(
	ctx context.Context,
	transition string,
	id domain.SessionID,
	write func(ctx context.Context) (*domain.Session, error),
) (*domain.Session, error) {
	start := time.Now()
	session, err := write(ctx)
	if err == nil && session == nil {
		err = domain.ErrSessionNotFound
	}
	s.metrics.RecordSessionTransition(transition, time.Since(start), err)
	if err == nil {
		return session, nil
	}

	tracing.RecordError(ctx, err)
	logger.FromContext(ctx, s.logger).Errorw("session transition failed",
		"transition", transition,
		"session_id", id,
		"error", err,
	)

	message := "failed to " + transition + " session"
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeNotFound, message, http.StatusNotFound)
	}
	return nil, apperrors.WrapInternalError(err, message)
}
