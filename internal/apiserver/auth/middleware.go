package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"sheet-insights/internal/apiserver/identity"
	"sheet-insights/internal/shared/cache"
	"sheet-insights/internal/shared/model"
)

// AdminStore Gate 所需的最小运营账号读取接口
type AdminStore interface {
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
}

// UserResolver Gate 所需的最小用户解析接口
type UserResolver interface {
	ResolveOrCreate(ctx context.Context, a *identity.Assertion) (*model.User, error)
}

// Gate 访问门禁
//
// 每个到达账号生命周期、文件集合或摄取管道的请求都必须先经过这里。
// 状态机：无凭证 → 401；凭证无效/已吊销 → 401；账号停用 → 403；
// 权限不足（superadmin 专属路由）→ 403；否则放行并注入账号。
type Gate struct {
	cfg      Config
	admins   AdminStore
	denylist cache.TokenDenylist
	verifier identity.Verifier
	resolver UserResolver
}

// NewGate 创建访问门禁
func NewGate(cfg Config, admins AdminStore, denylist cache.TokenDenylist, verifier identity.Verifier, resolver UserResolver) *Gate {
	if denylist == nil {
		denylist = cache.NewNoOpDenylist()
	}
	return &Gate{cfg: cfg, admins: admins, denylist: denylist, verifier: verifier, resolver: resolver}
}

// bearerToken 提取 Authorization: Bearer 凭证，缺失时返回空串
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Admin 运营账号路由门禁
func (g *Gate) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := ParseToken(g.cfg, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if g.denylist.IsRevoked(r.Context(), claims.ID) {
			writeError(w, http.StatusUnauthorized, "token revoked")
			return
		}

		// 状态按当前持久化状态评估，而不是签发令牌时的状态
		admin, err := g.admins.GetAdmin(r.Context(), claims.Subject)
		if err != nil {
			log.Printf("[auth] admin lookup error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if admin == nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if admin.Status != model.StatusActive {
			writeError(w, http.StatusForbidden, "Account is not active.")
			return
		}

		ctx := WithAuthAdmin(r.Context(), &AuthAdmin{
			ID:       admin.ID,
			Username: admin.Username,
			Role:     admin.Role,
		})
		next(w, r.WithContext(ctx))
	}
}

// Superadmin superadmin 专属路由门禁
func (g *Gate) Superadmin(next http.HandlerFunc) http.HandlerFunc {
	return g.Admin(func(w http.ResponseWriter, r *http.Request) {
		admin := GetAuthAdmin(r.Context())
		if admin == nil || admin.Role != model.AdminRoleSuperadmin {
			writeError(w, http.StatusForbidden, "superadmin access required")
			return
		}
		next(w, r)
	})
}

// User 终端用户路由门禁
//
// 验证外部身份断言并解析（必要时创建）本地账号，
// 等价于原有的"首次登录即建档 + 活跃状态检查"。
func (g *Gate) User(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		assertion, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		user, err := g.resolver.ResolveOrCreate(r.Context(), assertion)
		if err != nil {
			log.Printf("[auth] resolve user error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !user.IsActive() {
			writeError(w, http.StatusForbidden, "Account is not active.")
			return
		}

		next(w, r.WithContext(WithAuthUser(r.Context(), user)))
	}
}
