package account

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
)

// Handler 运营后台 HTTP 处理器
type Handler struct {
	svc  *Service
	gate *auth.Gate
}

// NewHandler 创建运营后台处理器
func NewHandler(svc *Service, gate *auth.Gate) *Handler {
	return &Handler{svc: svc, gate: gate}
}

// RegisterRoutes 注册运营后台路由
//
// 运营账号管理中，列表/变更/删除是 superadmin 专属；
// 创建对 admin 开放（非 superadmin 请求的 superadmin 角色会被降级）。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/admin/admins", h.gate.Admin(h.CreateAdmin))
	mux.HandleFunc("GET /api/v1/admin/admins", h.gate.Superadmin(h.ListAdmins))
	mux.HandleFunc("PUT /api/v1/admin/admins/{id}/suspend", h.gate.Superadmin(h.SuspendAdmin))
	mux.HandleFunc("PUT /api/v1/admin/admins/{id}/activate", h.gate.Superadmin(h.ActivateAdmin))
	mux.HandleFunc("DELETE /api/v1/admin/admins/{id}", h.gate.Superadmin(h.DeleteAdmin))

	mux.HandleFunc("GET /api/v1/admin/users", h.gate.Admin(h.ListUsers))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/suspend", h.gate.Admin(h.SuspendUser))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/activate", h.gate.Admin(h.ActivateUser))
	mux.HandleFunc("DELETE /api/v1/admin/users/{id}", h.gate.Admin(h.DeleteUser))
	mux.HandleFunc("GET /api/v1/admin/users/{id}/files", h.gate.Admin(h.UserFiles))
	mux.HandleFunc("DELETE /api/v1/admin/users/{id}/files/{fileId}", h.gate.Admin(h.RemoveUserFile))

	mux.HandleFunc("GET /api/v1/admin/analytics", h.gate.Admin(h.Analytics))
}

// ============================================================================
// 运营账号
// ============================================================================

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateAdmin 创建运营账号
//
// 路由: POST /api/v1/admin/admins
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := auth.GetAuthAdmin(r.Context())
	if actor == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	requested := model.AdminRole(req.Role)
	if requested == "" {
		requested = model.AdminRoleAdmin
	}

	admin, err := h.svc.CreateOperator(r.Context(), actor.Role, req.Username, req.Password, requested)
	if err != nil {
		writeServiceError(w, "account.create_admin", err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

// ListAdmins 列出全部运营账号
//
// 路由: GET /api/v1/admin/admins
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.svc.ListAdmins(r.Context())
	if err != nil {
		writeServiceError(w, "account.list_admins", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"admins": admins})
}

// SuspendAdmin 停用运营账号
//
// 路由: PUT /api/v1/admin/admins/{id}/suspend
func (h *Handler) SuspendAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdminStatus(w, r, model.StatusInactive)
}

// ActivateAdmin 恢复运营账号
//
// 路由: PUT /api/v1/admin/admins/{id}/activate
func (h *Handler) ActivateAdmin(w http.ResponseWriter, r *http.Request) {
	h.setAdminStatus(w, r, model.StatusActive)
}

func (h *Handler) setAdminStatus(w http.ResponseWriter, r *http.Request, status model.AccountStatus) {
	id := r.PathValue("id")
	if err := h.svc.SetAdminStatus(r.Context(), id, status); err != nil {
		writeServiceError(w, "account.set_admin_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// DeleteAdmin 删除运营账号
//
// 路由: DELETE /api/v1/admin/admins/{id}
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	actor := auth.GetAuthAdmin(r.Context())
	if actor != nil && actor.ID == id {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := h.svc.DeleteAdmin(r.Context(), id); err != nil {
		writeServiceError(w, "account.delete_admin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "admin deleted"})
}

// ============================================================================
// 终端用户
// ============================================================================

// ListUsers 列出全部终端用户
//
// 路由: GET /api/v1/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, "account.list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// SuspendUser 停用终端用户
//
// 路由: PUT /api/v1/admin/users/{id}/suspend
func (h *Handler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	h.setUserStatus(w, r, model.StatusInactive)
}

// ActivateUser 恢复终端用户
//
// 路由: PUT /api/v1/admin/users/{id}/activate
func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setUserStatus(w, r, model.StatusActive)
}

func (h *Handler) setUserStatus(w http.ResponseWriter, r *http.Request, status model.AccountStatus) {
	id := r.PathValue("id")
	if err := h.svc.SetUserStatus(r.Context(), id, status); err != nil {
		writeServiceError(w, "account.set_user_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// DeleteUser 删除终端用户及其全部文件
//
// 路由: DELETE /api/v1/admin/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, "account.delete_user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// UserFiles 查看指定用户的文件集合
//
// 路由: GET /api/v1/admin/users/{id}/files
func (h *Handler) UserFiles(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	files, err := h.svc.UserFiles(r.Context(), id)
	if err != nil {
		writeServiceError(w, "account.user_files", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
}

// RemoveUserFile 从指定用户的集合中删除文件
//
// 路由: DELETE /api/v1/admin/users/{id}/files/{fileId}
func (h *Handler) RemoveUserFile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	fileID := r.PathValue("fileId")
	if err := h.svc.RemoveUserFile(r.Context(), userID, fileID); err != nil {
		writeServiceError(w, "account.remove_user_file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file removed"})
}

// Analytics 当月每日新增用户统计
//
// 路由: GET /api/v1/admin/analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Analytics(r.Context())
	if err != nil {
		writeServiceError(w, "account.analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signups": stats})
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

// writeServiceError 将服务层错误映射为 HTTP 状态码
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, storage.ErrSuperadminExists):
		writeError(w, http.StatusConflict, "an active superadmin already exists")
	case errors.Is(err, storage.ErrSoleSuperadmin):
		writeError(w, http.StatusConflict, "cannot remove the only active superadmin")
	default:
		log.Printf("[%s] error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
