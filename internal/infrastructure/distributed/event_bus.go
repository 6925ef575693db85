package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventSessionStarted EventType = "session.started"
	EventSessionEnded   EventType = "session.ended"
)

const defaultChannel = "studyhub:events"

var (
	ErrAlreadySubscribed = errors.New("event bus already subscribed")
	ErrBusClosed         = errors.New("event bus closed")
)

// Event is a session lifecycle change shared between instances.
type Event struct {
	Type       EventType        `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  time.Time        `json:"timestamp"`
	SessionID  domain.SessionID `json:"session_id"`
	At         time.Time        `json:"at"`
}

// EventBus publishes session events over Redis pub/sub and lets other
// instances replay them to their local participants.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

var _ ports.SessionEventPublisher = (*EventBus)(nil)

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    defaultChannel,
		logger:     logger,
	}
}

func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

func (eb *EventBus) PublishSessionStarted(ctx context.Context, id domain.SessionID, startedAt time.Time) error {
	return eb.Publish(ctx, &Event{Type: EventSessionStarted, SessionID: id, At: startedAt})
}

func (eb *EventBus) PublishSessionEnded(ctx context.Context, id domain.SessionID, endedAt time.Time) error {
	return eb.Publish(ctx, &Event{Type: EventSessionEnded, SessionID: id, At: endedAt})
}

// Subscribe blocks until ctx is done or the bus is closed, calling handler
// for every event published by another instance.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	pubsub, err := eb.openSubscription(ctx)
	if err != nil {
		return err
	}
	defer eb.closeSubscription(pubsub)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			eb.dispatch([]byte(msg.Payload), handler)
		}
	}
}

func (eb *EventBus) openSubscription(ctx context.Context) (*redis.PubSub, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return nil, ErrBusClosed
	}
	if eb.pubsub != nil {
		return nil, ErrAlreadySubscribed
	}
	eb.pubsub = eb.client.Subscribe(ctx, eb.channel)
	return eb.pubsub, nil
}

// closeSubscription closes pubsub unless Close already did.
func (eb *EventBus) closeSubscription(pubsub *redis.PubSub) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.pubsub != pubsub {
		return nil
	}
	eb.pubsub = nil
	return pubsub.Close()
}

func (eb *EventBus) dispatch(payload []byte, handler func(*Event) error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		eb.logger.Warnw("failed to unmarshal event", "error", err, "payload", string(payload))
		return
	}
	if event.InstanceID == eb.instanceID {
		return
	}
	if err := handler(&event); err != nil {
		eb.logger.Warnw("error handling event", "type", event.Type, "error", err)
	}
}

// Close ends an active subscription and rejects later ones. It is safe to
// call more than once and concurrently with Subscribe.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	eb.closed = true
	pubsub := eb.pubsub
	eb.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	return eb.closeSubscription(pubsub)
}

// LocalReplay returns a handler that delivers remote session events to the
// participants connected to this instance. An ended session also clears
// the local roster.
func LocalReplay(notifier ports.Notifier, sessions ports.PresenceRegistry) func(*Event) error {
	return func(event *Event) error {
		room := domain.SessionRoom(event.SessionID.Room())
		switch event.Type {
		case EventSessionStarted:
			notifier.Broadcast(room, domain.EventSessionStarted, domain.SessionStartedEvent{
				SessionID: event.SessionID,
				StartedAt: event.At,
			}, "")
		case EventSessionEnded:
			notifier.Broadcast(room, domain.EventSessionEnded, domain.SessionEndedEvent{
				SessionID: event.SessionID,
				EndedAt:   event.At,
			}, "")
			sessions.DeleteRoom(event.SessionID.Room())
		default:
			return fmt.Errorf("unknown event type %q", event.Type)
		}
		return nil
	}
}
