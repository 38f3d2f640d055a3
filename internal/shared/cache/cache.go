// Package cache 定义会话缓存抽象接口
//
// 目前唯一的消费方是运营账号登出：令牌的 jti 进入吊销名单后，
// 认证中间件在令牌自然过期前一律拒绝。
// 具体实现在子包中：redis/。未配置 Redis 时使用 NoOpDenylist，
// 登出退化为仅客户端丢弃令牌。
package cache

import (
	"context"
	"time"
)

// TokenDenylist 令牌吊销名单
type TokenDenylist interface {
	// Revoke 吊销指定 jti，ttl 应不小于令牌剩余有效期
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked 查询 jti 是否已吊销；查询失败时实现方应返回 false 并自行记录
	IsRevoked(ctx context.Context, jti string) bool
	Close() error
}

// ============================================================================
// NoOpDenylist - 空操作实现（无 Redis 部署 / 测试）
// ============================================================================

// NoOpDenylist 不记录任何吊销
type NoOpDenylist struct{}

// NewNoOpDenylist 创建 NoOpDenylist 实例
func NewNoOpDenylist() *NoOpDenylist {
	return &NoOpDenylist{}
}

func (d *NoOpDenylist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return nil
}

func (d *NoOpDenylist) IsRevoked(ctx context.Context, jti string) bool {
	return false
}

func (d *NoOpDenylist) Close() error {
	return nil
}

var _ TokenDenylist = (*NoOpDenylist)(nil)
