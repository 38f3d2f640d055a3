// Package server HTTP API 组装层
//
// 文件组织：
//   - common.go: Handler 定义、路由组装、通用中间件
//   - metrics.go: Prometheus 指标
package server

import (
	"encoding/json"
	"net/http"

	"sheet-insights/internal/apiserver/account"
	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/apiserver/identity"
	"sheet-insights/internal/apiserver/sheet"
	"sheet-insights/internal/shared/cache"
	"sheet-insights/internal/shared/storage"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的入口，负责把各业务包的子处理器
// 组装到同一个 ServeMux 上，并套上指标与 CORS 中间件。
type Handler struct {
	store storage.Store

	accountSvc *account.Service
	sheetSvc   *sheet.Service
	gate       *auth.Gate

	authHandler    *auth.Handler
	accountHandler *account.Handler
	sheetHandler   *sheet.Handler

	metrics    *Metrics
	corsOrigin string
}

// Options Handler 组装参数
type Options struct {
	Store      storage.Store
	AuthConfig auth.Config
	Denylist   cache.TokenDenylist
	Verifier   identity.Verifier
	Revoker    identity.Revoker
	Summarizer sheet.Summarizer
	// CORSOrigin 为空时不输出 CORS 头
	CORSOrigin string
}

// NewHandler 创建 Handler 实例
func NewHandler(opts Options) *Handler {
	if opts.Denylist == nil {
		opts.Denylist = cache.NewNoOpDenylist()
	}

	h := &Handler{
		store:      opts.Store,
		metrics:    NewMetrics("sheet_insights"),
		corsOrigin: opts.CORSOrigin,
	}

	h.accountSvc = account.NewService(opts.Store, opts.Revoker, nil)
	h.sheetSvc = sheet.NewService(opts.Store, opts.Summarizer, nil)
	h.sheetSvc.SetMetrics(h.metrics)

	resolver := identity.NewResolver(opts.Store)
	h.gate = auth.NewGate(opts.AuthConfig, opts.Store, opts.Denylist, opts.Verifier, resolver)

	h.authHandler = auth.NewHandler(h.accountSvc, opts.AuthConfig, opts.Denylist, h.gate)
	h.accountHandler = account.NewHandler(h.accountSvc, h.gate)
	h.sheetHandler = sheet.NewHandler(h.sheetSvc, h.gate)
	return h
}

// AccountService 返回账号服务（启动引导用）
func (h *Handler) AccountService() *account.Service {
	return h.accountSvc
}

// Router 组装完整路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", MetricsHandler())

	h.authHandler.RegisterRoutes(mux)
	h.accountHandler.RegisterRoutes(mux)
	h.sheetHandler.RegisterRoutes(mux)

	return h.metrics.MetricsMiddleware(h.corsMiddleware(mux))
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// corsMiddleware 按配置输出 CORS 头并处理预检请求
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", h.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
