package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"studyhub/internal/core/domain"
	"studyhub/internal/core/ports"
	"studyhub/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = keyPrefix + "session:"

	fieldIsStarted = "isStarted"
	fieldStartedAt = "startedAt"
	fieldEndedAt   = "endedAt"
)

// RedisSessionRepository stores session lifecycle fields in a hash per
// session. Each update is a plain HSET, so concurrent writers race with
// last-write-wins semantics.
type RedisSessionRepository struct {
	client *redis.Client
}

func NewRedisSessionRepository(client *redis.Client) ports.SessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) sessionKey(id domain.SessionID) string {
	return sessionKeyPrefix + string(id)
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "hgetall", "session")
	defer span.End()

	fields, err := r.client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return decodeSession(id, fields)
}

func (r *RedisSessionRepository) UpdateSessionStart(ctx context.Context, id domain.SessionID, startedAt time.Time) (*domain.Session, error) {
	return r.update(ctx, id, "start", map[string]interface{}{
		fieldIsStarted: "1",
		fieldStartedAt: startedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (r *RedisSessionRepository) UpdateSessionEnd(ctx context.Context, id domain.SessionID, endedAt time.Time) (*domain.Session, error) {
	return r.update(ctx, id, "end", map[string]interface{}{
		fieldEndedAt: endedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (r *RedisSessionRepository) update(ctx context.Context, id domain.SessionID, op string, values map[string]interface{}) (*domain.Session, error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "hset", "session")
	defer span.End()

	key := r.sessionKey(id)
	var read *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		read = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to %s session in Redis: %w", op, err)
	}

	return decodeSession(id, read.Val())
}

func decodeSession(id domain.SessionID, fields map[string]string) (*domain.Session, error) {
	session := &domain.Session{ID: id}

	if v, ok := fields[fieldIsStarted]; ok {
		started, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for session %s: %w", fieldIsStarted, id, err)
		}
		session.IsStarted = started
	}
	for field, dst := range map[string]**time.Time{
		fieldStartedAt: &session.StartedAt,
		fieldEndedAt:   &session.EndedAt,
	} {
		v, ok := fields[field]
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s for session %s: %w", field, id, err)
		}
		*dst = &ts
	}

	return session, nil
}
