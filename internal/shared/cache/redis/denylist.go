// Package redis 基于 Redis 的令牌吊销名单
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"sheet-insights/internal/shared/cache"

	"github.com/redis/go-redis/v9"
)

// keyRevokedToken 吊销名单键前缀
const keyRevokedToken = "auth:revoked:"

// Denylist Redis 实现的 TokenDenylist
type Denylist struct {
	client *redis.Client
}

// NewDenylist 创建 Redis 吊销名单
//
// redisURL 示例: "redis://localhost:6379/0"
func NewDenylist(redisURL string) (*Denylist, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url failed: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return &Denylist{client: client}, nil
}

func (d *Denylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // 令牌已过期，无需记录
	}
	return d.client.Set(ctx, keyRevokedToken+jti, "1", ttl).Err()
}

// IsRevoked 查询失败时放行并记录：吊销名单是尽力而为的加固，
// Redis 故障不应使全部已登录会话不可用
func (d *Denylist) IsRevoked(ctx context.Context, jti string) bool {
	n, err := d.client.Exists(ctx, keyRevokedToken+jti).Result()
	if err != nil {
		log.Printf("[cache.redis] denylist lookup error: %v", err)
		return false
	}
	return n > 0
}

func (d *Denylist) Close() error {
	return d.client.Close()
}

var _ cache.TokenDenylist = (*Denylist)(nil)
