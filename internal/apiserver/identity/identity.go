// Package identity 外部身份联合
//
// 终端用户不在本系统注册：外部身份提供方（OIDC 等）验证会话后给出
// 断言，本包将断言确定性地映射到本地用户账号，首次出现时惰性创建。
// 提供方本身是外部协作者，这里只定义窄接口。
package identity

import (
	"context"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"

	"github.com/google/uuid"
)

// Assertion 外部身份断言
// 核心契约只包含这四个字段，提供方的其他属性不进入本系统
type Assertion struct {
	SubjectKey  string
	DisplayName string
	Email       string
	AvatarURL   string
}

// Verifier 会话验证能力：credential → 断言
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Assertion, error)
}

// Revoker 远端会话吊销能力
// 可能独立于本地状态失败；调用方必须将失败视为尽力而为
type Revoker interface {
	Revoke(ctx context.Context, subjectKey string) error
}

// NoOpRevoker 无远端会话可吊销时的空实现
type NoOpRevoker struct{}

func (NoOpRevoker) Revoke(ctx context.Context, subjectKey string) error {
	return nil
}

// ============================================================================
// Resolver
// ============================================================================

// Resolver 将身份断言解析为本地用户账号
type Resolver struct {
	store storage.UserStore
}

// NewResolver 创建 Resolver
func NewResolver(store storage.UserStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveOrCreate 返回断言对应的用户，首次出现时原子创建
//
// 并发调用同一主体标识时有且仅有一个账号被创建（由存储层的
// 唯一索引 + upsert 保证），所有调用方拿到同一账号。
func (r *Resolver) ResolveOrCreate(ctx context.Context, a *Assertion) (*model.User, error) {
	now := time.Now().UTC()
	seed := &model.User{
		ID:         uuid.NewString(),
		SubjectKey: a.SubjectKey,
		Name:       a.DisplayName,
		Email:      a.Email,
		Picture:    a.AvatarURL,
		Status:     model.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.store.ResolveUser(ctx, a.SubjectKey, seed)
}
