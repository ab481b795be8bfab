package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
)

// PublishJSONToStream 发布 JSON 消息到 Redis Streams.
// The entry carries "event", "data" (JSON) and "timestamp" (unix seconds).
// maxLen > 0 caps the stream approximately (XADD MAXLEN ~).
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream, event string, data any, maxLen int64) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event":     event,
			"data":      string(payload),
			"timestamp": time.Now().Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	return client.XAdd(ctx, args).Result()
}
