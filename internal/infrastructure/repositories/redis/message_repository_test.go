package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/core/domain"
)

// Runs against a real server when STUDYHUB_TEST_REDIS_ADDRESS is set.
func TestRedisMessageRepository_Integration(t *testing.T) {
	addr := os.Getenv("STUDYHUB_TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("STUDYHUB_TEST_REDIS_ADDRESS not set")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 15, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseRedisClient(client) })

	repo := NewRedisMessageRepository(client, 2).(*RedisMessageRepository)
	group := domain.RoomID("it-" + time.Now().Format("150405000000000"))
	t.Cleanup(func() { client.Del(ctx, repo.messagesKey(group)) })

	for i := 1; i <= 3; i++ {
		stored, err := repo.Create(ctx, &domain.Message{
			ID:        domain.MessageID(fmt.Sprintf("m%d", i)),
			GroupID:   group,
			UserID:    "u1",
			UserName:  "Ann",
			Content:   "hello",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.Equal(t, "Ann", stored.UserName)
	}

	raw, err := client.LRange(ctx, repo.messagesKey(group), 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var oldest domain.Message
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &oldest))
	assert.Equal(t, domain.MessageID("m2"), oldest.ID)
}
