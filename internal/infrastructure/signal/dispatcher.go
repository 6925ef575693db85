package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	apperrors "studyhub/pkg/errors"
	"studyhub/pkg/logger"
	"studyhub/pkg/tracing"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type handlerFunc func(ctx context.Context, c *Connection, payload json.RawMessage) error

// Dispatcher routes decoded frames to the services. It is the error
// boundary for event handling: failures and panics become an error frame
// for the sender and never close the connection.
type Dispatcher struct {
	calls    ports.CallService
	sessions ports.SessionService
	chat     ports.ChatService

	notifier ports.Notifier
	validate *validator.Validate
	handlers map[string]handlerFunc
	metrics  ports.TransportMetrics
	logger   *zap.SugaredLogger
}

func NewDispatcher(
	calls ports.CallService,
	sessions ports.SessionService,
	chat ports.ChatService,
	notifier ports.Notifier,
	metrics ports.TransportMetrics,
	logger *zap.SugaredLogger,
) *Dispatcher {
	d := &Dispatcher{
		calls:    calls,
		sessions: sessions,
		chat:     chat,
		notifier: notifier,
		validate: newValidator(),
		metrics:  metrics,
		logger:   logger,
	}

	d.handlers = map[string]handlerFunc{
		domain.EventJoinGroupCall:  d.handleJoinGroupCall,
		domain.EventLeaveGroupCall: d.handleLeaveGroupCall,
		domain.EventOffer:          d.handleOffer,
		domain.EventAnswer:         d.handleAnswer,
		domain.EventICECandidate:   d.handleICECandidate,
		domain.EventJoinSession:    d.handleJoinSession,
		domain.EventLeaveSession:   d.handleLeaveSession,
		domain.EventStartSession:   d.handleStartSession,
		domain.EventEndSession:     d.handleEndSession,
		domain.EventJoinGroup:      d.handleJoinGroup,
		domain.EventLeaveGroup:     d.handleLeaveGroup,
		domain.EventTyping:         d.handleTyping(false),
		domain.EventStopTyping:     d.handleTyping(true),
		domain.EventSendMessage:    d.handleSendMessage,
	}
	return d
}

// Dispatch handles one raw frame from c.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Connection, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
		d.replyError(ctx, c, "", apperrors.NewInvalidInputError("malformed frame"))
		return
	}

	ctx, span := tracing.TraceWebSocketMessage(ctx, frame.Type, string(c.ID()))
	defer span.End()

	start := time.Now()
	err := d.handle(ctx, c, frame)
	if d.metrics != nil {
		d.metrics.EventHandled(frame.Type, time.Since(start), err)
	}
	if err != nil {
		tracing.RecordError(ctx, err)
		d.replyError(ctx, c, frame.Type, err)
	}
}

func (d *Dispatcher) handle(ctx context.Context, c *Connection, frame Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx, d.logger).Errorw("panic in event handler",
				"event", frame.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = apperrors.NewInternalError(apperrors.GenericMessage)
		}
	}()

	handler, ok := d.handlers[frame.Type]
	if !ok {
		return apperrors.NewInvalidInputError(fmt.Sprintf("unknown event: %s", frame.Type))
	}
	return handler(ctx, c, frame.Payload)
}

func (d *Dispatcher) replyError(ctx context.Context, c *Connection, event string, err error) {
	code, message := apperrors.ClientFacing(err)

	log := logger.FromContext(ctx, d.logger)
	if code == apperrors.ErrCodeInternal {
		log.Errorw("event failed", "event", event, "error", err)
	} else {
		log.Warnw("event rejected", "event", event, "code", code, "error", err)
	}

	_ = d.notifier.SendTo(c.ID(), domain.EventError, domain.ErrorEvent{
		Code:    string(code),
		Message: message,
		Event:   event,
	})
}

func (d *Dispatcher) decode(raw json.RawMessage, dst interface{}) error {
	if err := decodePayload(d.validate, raw, dst); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	}
	return nil
}

// identity resolves the user for a join-style event. An authenticated
// connection may omit userId but may not claim someone else's.
func (d *Dispatcher) identity(c *Connection, userID domain.UserID, userName string) (domain.UserID, string, error) {
	if c.userID == "" {
		if userID == "" {
			return "", "", apperrors.NewInvalidInputError("userId is required")
		}
		return userID, userName, nil
	}

	if userID != "" && userID != c.userID {
		return "", "", apperrors.WrapError(domain.ErrIdentityMismatch, apperrors.ErrCodeForbidden, "userId does not match authenticated user", http.StatusForbidden)
	}
	if userName == "" {
		userName = c.userName
	}
	return c.userID, userName, nil
}

func (d *Dispatcher) handleJoinGroupCall(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p joinPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	userID, userName, err := d.identity(c, p.UserID, p.UserName)
	if err != nil {
		return err
	}
	return d.calls.JoinCall(ctx, c.ID(), ports.JoinRequest{Room: p.GroupID, UserID: userID, UserName: userName})
}

func (d *Dispatcher) handleLeaveGroupCall(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p leaveCallPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.calls.LeaveCall(ctx, c.ID(), p.GroupID)
}

func (d *Dispatcher) handleOffer(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p offerPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.calls.RelayOffer(ctx, c.ID(), p.request(p.Offer))
}

func (d *Dispatcher) handleAnswer(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p answerPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.calls.RelayAnswer(ctx, c.ID(), p.request(p.Answer))
}

func (d *Dispatcher) handleICECandidate(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p icePayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.calls.RelayICECandidate(ctx, c.ID(), p.request(p.Candidate))
}

func (t signalTarget) request(payload json.RawMessage) ports.SignalRequest {
	return ports.SignalRequest{
		Room:         t.GroupID,
		Payload:      payload,
		ReceiverID:   t.ReceiverID,
		SenderName:   t.SenderName,
		ReceiverName: t.ReceiverName,
	}
}

func (d *Dispatcher) handleJoinSession(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p joinSessionPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	userID, userName, err := d.identity(c, p.UserID, p.UserName)
	if err != nil {
		return err
	}
	return d.sessions.JoinSession(ctx, c.ID(), ports.JoinRequest{Room: p.SessionID.Room(), UserID: userID, UserName: userName})
}

func (d *Dispatcher) handleLeaveSession(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p sessionPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.sessions.LeaveSession(ctx, c.ID(), p.SessionID)
}

func (d *Dispatcher) handleStartSession(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p sessionPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.sessions.StartSession(ctx, c.ID(), p.SessionID)
}

func (d *Dispatcher) handleEndSession(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p sessionPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.sessions.EndSession(ctx, c.ID(), p.SessionID)
}

func (d *Dispatcher) handleJoinGroup(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p chatGroupPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.chat.JoinGroup(ctx, c.ID(), p.GroupID)
}

func (d *Dispatcher) handleLeaveGroup(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p chatGroupPayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	return d.chat.LeaveGroup(ctx, c.ID(), p.GroupID)
}

func (d *Dispatcher) handleTyping(stopped bool) handlerFunc {
	return func(ctx context.Context, c *Connection, raw json.RawMessage) error {
		var p typingPayload
		if err := d.decode(raw, &p); err != nil {
			return err
		}
		userID, userName, err := d.identity(c, p.UserID, p.UserName)
		if err != nil {
			return err
		}
		return d.chat.Typing(ctx, c.ID(), ports.TypingRequest{Room: p.GroupID, UserID: userID, UserName: userName}, stopped)
	}
}

func (d *Dispatcher) handleSendMessage(ctx context.Context, c *Connection, raw json.RawMessage) error {
	var p messagePayload
	if err := d.decode(raw, &p); err != nil {
		return err
	}
	userID, userName, err := d.identity(c, p.UserID, p.UserName)
	if err != nil {
		return err
	}
	_, err = d.chat.SendMessage(ctx, c.ID(), ports.MessageRequest{
		Room:     p.GroupID,
		UserID:   userID,
		UserName: userName,
		Content:  p.Content,
	})
	return err
}
