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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// chatService handles chat group membership, typing indicators and
// messages. A message is written to the store before it is relayed.
type chatService struct {
	messages ports.MessageRepository
	notifier ports.Notifier
	metrics  ports.SignalingMetrics
	logger   *zap.SugaredLogger
	now      func() time.Time
	newID    func() string
}

func NewChatService(
	messages ports.MessageRepository,
	notifier ports.Notifier,
	metrics ports.SignalingMetrics,
	logger *zap.SugaredLogger,
) ports.ChatService {
	return &chatService{
		messages: messages,
		notifier: notifier,
		metrics:  metricsOrNop(metrics),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *chatService) JoinGroup(ctx context.Context, connID domain.ConnectionID, room domain.RoomID) error {
	s.notifier.JoinGroup(domain.ChatRoom(room), connID)
	logger.FromContext(ctx, s.logger).Debugw("joined chat group", "room_id", room)
	return nil
}

func (s *chatService) LeaveGroup(ctx context.Context, connID domain.ConnectionID, room domain.RoomID) error {
	s.notifier.LeaveGroup(domain.ChatRoom(room), connID)
	logger.FromContext(ctx, s.logger).Debugw("left chat group", "room_id", room)
	return nil
}

func (s *chatService) Typing(ctx context.Context, connID domain.ConnectionID, req ports.TypingRequest, stopped bool) error {
	event := domain.EventTyping
	if stopped {
		event = domain.EventStopTyping
	}

	s.notifier.Broadcast(domain.ChatRoom(req.Room), event, domain.TypingEvent{
		GroupID:  req.Room,
		UserID:   req.UserID,
		UserName: req.UserName,
	}, connID)
	return nil
}

// SendMessage stores the message and then delivers it to every member of
// the chat group, the sender included. Nothing is relayed if the store
// rejects it.
func (s *chatService) SendMessage(ctx context.Context, connID domain.ConnectionID, req ports.MessageRequest) (*domain.Message, error) {
	log := logger.FromContext(ctx, s.logger)

	start := time.Now()
	stored, err := s.messages.Create(ctx, &domain.Message{
		ID:        domain.MessageID(s.newID()),
		GroupID:   req.Room,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Content:   req.Content,
		CreatedAt: s.now(),
	})
	s.metrics.RecordMessageSent(time.Since(start), err)
	if err != nil {
		log.Errorw("failed to store chat message", "room_id", req.Room, "user_id", req.UserID, "error", err)
		if errors.Is(err, domain.ErrMessageRejected) {
			return nil, apperrors.WrapError(err, apperrors.ErrCodeNotFound, "chat group or user not found", http.StatusNotFound)
		}
		return nil, apperrors.WrapInternalError(err, "message sending failed")
	}

	s.notifier.Broadcast(domain.ChatRoom(req.Room), domain.EventMessage, domain.NewMessageEvent(stored), "")
	log.Debugw("chat message sent", "room_id", req.Room, "message_id", stored.ID)
	return stored, nil
}
