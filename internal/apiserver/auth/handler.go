package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"sheet-insights/internal/shared/cache"
	"sheet-insights/internal/shared/model"
)

// AdminAuthenticator 登录所需的账号服务能力
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.Admin, error)
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
}

// Handler 运营账号认证 HTTP 处理器
type Handler struct {
	svc      AdminAuthenticator
	cfg      Config
	denylist cache.TokenDenylist
	gate     *Gate
}

// NewHandler 创建认证处理器
func NewHandler(svc AdminAuthenticator, cfg Config, denylist cache.TokenDenylist, gate *Gate) *Handler {
	if denylist == nil {
		denylist = cache.NewNoOpDenylist()
	}
	return &Handler{svc: svc, cfg: cfg, denylist: denylist, gate: gate}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/admin/login", h.Login)
	mux.HandleFunc("POST /api/v1/admin/logout", h.gate.Admin(h.Logout))
	mux.HandleFunc("GET /api/v1/admin/me", h.gate.Admin(h.Me))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	Admin *model.Admin `json:"admin"`
}

// ============================================================================
// Handlers
// ============================================================================

// Login 运营账号登录
//
// 路由: POST /api/v1/admin/login
//
// 用户名不存在与密码错误统一返回 400 与同一提示，不泄露账号是否存在。
// 停用账号允许登录，但后续请求会被门禁以 403 拒绝。
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required.")
		return
	}

	admin, err := h.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "Invalid username or password.")
			return
		}
		log.Printf("[auth.login] Authenticate error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := GenerateToken(h.cfg, admin)
	if err != nil {
		log.Printf("[auth.login] GenerateToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] Admin logged in: %s", admin.Username)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Admin: admin})
}

// Logout 运营账号登出
//
// 路由: POST /api/v1/admin/logout
//
// 将当前令牌的 jti 写入吊销名单，TTL 取令牌剩余有效期。
// 未部署 Redis 时退化为客户端丢弃令牌。
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := ParseToken(h.cfg, bearerToken(r))
	if err != nil {
		// 门禁已验证过，到这里失败只可能是并发过期
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := h.denylist.Revoke(r.Context(), claims.ID, ttl); err != nil {
		log.Printf("[auth.logout] revoke token error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me 获取当前运营账号信息
//
// 路由: GET /api/v1/admin/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authAdmin := GetAuthAdmin(r.Context())
	if authAdmin == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	admin, err := h.svc.GetAdmin(r.Context(), authAdmin.ID)
	if err != nil || admin == nil {
		writeError(w, http.StatusNotFound, "admin not found")
		return
	}

	writeJSON(w, http.StatusOK, admin)
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
