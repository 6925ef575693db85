package memory

import (
	"context"
	"sync"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
)

// DefaultMessageHistory bounds how many messages are kept per group.
const DefaultMessageHistory = 500

// MessageRepository keeps the most recent messages of each group in
// process memory. It stands in for the message store in development.
type MessageRepository struct {
	groups  map[domain.RoomID][]domain.Message
	history int
	mu      sync.RWMutex
}

func NewMessageRepository(history int) *MessageRepository {
	if history <= 0 {
		history = DefaultMessageHistory
	}
	return &MessageRepository{
		groups:  make(map[domain.RoomID][]domain.Message),
		history: history,
	}
}

var _ ports.MessageRepository = (*MessageRepository)(nil)

func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	messages := append(r.groups[message.GroupID], *message)
	if len(messages) > r.history {
		messages = messages[len(messages)-r.history:]
	}
	r.groups[message.GroupID] = messages

	copied := *message
	return &copied, nil
}
