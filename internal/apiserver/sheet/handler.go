package sheet

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/shared/storage"
)

// maxUploadBytes 单次上传大小上限（32 MiB）
const maxUploadBytes = 32 << 20

// Handler 终端用户 HTTP 处理器
type Handler struct {
	svc  *Service
	gate *auth.Gate
}

// NewHandler 创建终端用户处理器
func NewHandler(svc *Service, gate *auth.Gate) *Handler {
	return &Handler{svc: svc, gate: gate}
}

// RegisterRoutes 注册终端用户路由，全部经过用户门禁
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sheets", h.gate.User(h.Upload))
	mux.HandleFunc("GET /api/v1/sheets", h.gate.User(h.History))
	mux.HandleFunc("GET /api/v1/sheets/history", h.gate.User(h.History))
	mux.HandleFunc("GET /api/v1/sheets/{id}", h.gate.User(h.View))
	mux.HandleFunc("DELETE /api/v1/sheets/{id}", h.gate.User(h.Remove))

	mux.HandleFunc("GET /api/v1/profile", h.gate.User(h.Profile))
	mux.HandleFunc("PATCH /api/v1/profile", h.gate.User(h.UpdateProfile))
}

// ============================================================================
// 文件摄取
// ============================================================================

// Upload 上传并解析表格文件
//
// 路由: POST /api/v1/sheets （multipart/form-data）
//
// 表单字段：file 为文件本体；saveToDb 为 "true" 时持久化到文件集合，
// 否则解析结果只随响应返回一次。
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	format := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	persist := strings.EqualFold(r.FormValue("saveToDb"), "true")

	result, err := h.svc.Ingest(r.Context(), user, header.Filename, format, data, persist)
	if err != nil {
		writeServiceError(w, "sheet.upload", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// History 文件集合摘要列表
//
// 路由: GET /api/v1/sheets 或 GET /api/v1/sheets/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	summaries, err := h.svc.History(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "sheet.history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": summaries})
}

// View 查看已保存的文件（含重新生成的摘要）
//
// 路由: GET /api/v1/sheets/{id}
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	result, err := h.svc.View(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "sheet.view", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Remove 从集合中删除文件
//
// 路由: DELETE /api/v1/sheets/{id}
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.svc.Remove(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeServiceError(w, "sheet.remove", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "file removed"})
}

// ============================================================================
// 个人资料
// ============================================================================

type updateProfileRequest struct {
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

// Profile 返回当前用户资料
//
// 路由: GET /api/v1/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile 更新展示名与头像
//
// 路由: PATCH /api/v1/profile
//
// 缺省字段保持原值。
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := user.Name
	if req.Name != nil {
		name = *req.Name
	}
	picture := user.Picture
	if req.Picture != nil {
		picture = *req.Picture
	}

	if err := h.svc.UpdateProfile(r.Context(), user.ID, name, picture); err != nil {
		writeServiceError(w, "sheet.update_profile", err)
		return
	}

	user.Name = name
	user.Picture = picture
	writeJSON(w, http.StatusOK, user)
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

func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "unsupported file format")
	case errors.Is(err, ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "file content could not be parsed")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.Printf("[%s] error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
