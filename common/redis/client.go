package redis

import (
	"context"
	"fmt"

	"github.com/burnspe2144/env-reporting-backend/common/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端（不会立即连接，需要时调用 Ping 检查）
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return redis.NewClient(opts)
}

// Ping checks that the server answers.
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭Redis连接
func Close(client *redis.Client) error {
	return client.Close()
}
