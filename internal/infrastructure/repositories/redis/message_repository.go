package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	messageKeyPrefix = keyPrefix + "chat:"

	// DefaultMessageHistory bounds the list kept per group.
	DefaultMessageHistory = 500
)

// RedisMessageRepository appends messages as JSON to a capped list per
// group.
type RedisMessageRepository struct {
	client  *redis.Client
	history int64
}

func NewRedisMessageRepository(client *redis.Client, history int) ports.MessageRepository {
	if history <= 0 {
		history = DefaultMessageHistory
	}
	return &RedisMessageRepository{client: client, history: int64(history)}
}

func (r *RedisMessageRepository) messagesKey(group domain.RoomID) string {
	return messageKeyPrefix + string(group) + ":messages"
}

func (r *RedisMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "rpush", "chat")
	defer span.End()

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	key := r.messagesKey(message.GroupID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -r.history, -1)
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to store message in Redis: %w", err)
	}

	copied := *message
	return &copied, nil
}
