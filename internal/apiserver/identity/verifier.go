package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims 身份提供方签发的会话令牌声明
type sessionClaims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// JWTVerifier 默认 Verifier 实现：验证身份提供方用共享密钥签发的
// HS256 会话令牌。生产环境可替换为真正的 OIDC 客户端。
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier 创建 JWTVerifier
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*Assertion, error) {
	// 空密钥会让任何用空串签名的令牌通过校验，必须拒绝
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("identity secret not configured")
	}
	token, err := jwt.ParseWithClaims(credential, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid session token")
	}
	return &Assertion{
		SubjectKey:  claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		AvatarURL:   claims.Picture,
	}, nil
}

var _ Verifier = (*JWTVerifier)(nil)
