// Package auth 运营账号认证：JWT 令牌管理、密码哈希、访问门禁中间件
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sheet-insights/internal/shared/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials 登录失败
// 用户名不存在与密码错误返回同一错误，避免账号枚举
var ErrInvalidCredentials = errors.New("invalid username or password")

// contextKey context 键类型
type contextKey string

const (
	ctxKeyAuthAdmin contextKey = "auth_admin"
	ctxKeyAuthUser  contextKey = "auth_user"
)

// AuthAdmin 从 JWT 解析出的运营账号信息
type AuthAdmin struct {
	ID       string
	Username string
	Role     model.AdminRole
}

// Config 认证配置
type Config struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DefaultConfig 返回默认认证配置
func DefaultConfig() Config {
	return Config{
		JWTSecret: "",
		TokenTTL:  24 * time.Hour,
	}
}

// ============================================================================
// 密码哈希
// ============================================================================

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// GenerateToken 为运营账号签发令牌
// jti（RegisteredClaims.ID）用于登出时写入吊销名单
func GenerateToken(cfg Config, admin *model.Admin) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.TokenTTL)),
		},
		Username: admin.Username,
		Role:     string(admin.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证 JWT
func ParseToken(cfg Config, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthAdmin 将运营账号信息注入 context
func WithAuthAdmin(ctx context.Context, admin *AuthAdmin) context.Context {
	return context.WithValue(ctx, ctxKeyAuthAdmin, admin)
}

// GetAuthAdmin 从 context 获取运营账号
func GetAuthAdmin(ctx context.Context) *AuthAdmin {
	admin, _ := ctx.Value(ctxKeyAuthAdmin).(*AuthAdmin)
	return admin
}

// WithAuthUser 将终端用户注入 context
func WithAuthUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取终端用户
func GetAuthUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(ctxKeyAuthUser).(*model.User)
	return user
}
