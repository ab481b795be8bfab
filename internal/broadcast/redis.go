package broadcast

import (
	"context"
	"fmt"

	commonredis "github.com/burnspe2144/env-reporting-backend/common/redis"
	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisStreamBroadcaster 发布事件到 Redis Streams，供其他实例/服务消费
type RedisStreamBroadcaster struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamBroadcaster creates a broadcaster writing to stream, capped
// at roughly maxLen entries (0 = uncapped).
func NewRedisStreamBroadcaster(client *redis.Client, stream string, maxLen int64) *RedisStreamBroadcaster {
	return &RedisStreamBroadcaster{client: client, stream: stream, maxLen: maxLen}
}

var _ Broadcaster = (*RedisStreamBroadcaster)(nil)

func (b *RedisStreamBroadcaster) Publish(ctx context.Context, event domain.LayerEvent) error {
	if _, err := commonredis.PublishJSONToStream(ctx, b.client, b.stream, event.Name, event, b.maxLen); err != nil {
		return fmt.Errorf("failed to publish %s to stream %s: %w", event.Name, b.stream, err)
	}
	return nil
}
