package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/3Eeeecho/go-fileshare/internal/pkg/logger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter 判断某个 key 是否还在配额内
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// FixedWindowLimiter 基于 Redis 的固定窗口限流器，多个实例共享计数
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	prefix string
	client *redis.Client
	now    func() time.Time
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "fileshare:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		prefix: prefix,
		client: client,
		now:    time.Now,
	}, nil
}

// WithClock 替换时钟，窗口按 now 对齐
func (l *FixedWindowLimiter) WithClock(now func() time.Time) *FixedWindowLimiter {
	l.now = now
	return l
}

// Allow 在配额内返回 true
// Redis 出错时拒绝请求
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		logger.Warn("rate limiter redis error, rejecting request", zap.String("key", redisKey), zap.Error(err))
		return false
	}
	return count <= int64(l.limit)
}
