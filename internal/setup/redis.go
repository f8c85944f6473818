package setup

import (
	"context"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/config"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// InitRedis 连接 Redis，redis.addr 为空时返回 nil 表示不启用
func InitRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		logger.Info("redis.addr is empty, rate limiting disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("Connected to Redis successfully!", zap.String("addr", cfg.Addr))
	return client, nil
}

func CloseRedis(client *redis.Client) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.Error("Error closing Redis connection", zap.Error(err))
	} else {
		logger.Info("Redis connection closed.")
	}
}
