// Package account 账号生命周期管理
//
// 覆盖两类账号：运营账号（admin / superadmin）与终端用户。
// 运营账号在这里显式创建；终端用户由身份联合惰性建档（见 identity 包），
// 本包只负责对其进行后台管理（停用、恢复、删除、文件巡查）。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/apiserver/identity"
	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
	"sheet-insights/pkg/logging"

	"github.com/google/uuid"
)

// 运营账号凭证格式，与前端约定保持一致
var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{5,16}$`)
	passwordRe = regexp.MustCompile(`^[a-zA-Z0-9_@#$%&*]{6,16}$`)
)

// ErrValidation 请求参数不合法
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }

// Service 账号服务
//
// mu 串行化所有可能改变"活跃 superadmin 数量"的写操作。
// SQL 后端本身用单条带守卫的语句保证原子性，Mongo 后端的
// 检查-执行两步则依赖这把锁避免交错。
type Service struct {
	store   storage.Store
	revoker identity.Revoker
	log     *slog.Logger

	mu sync.Mutex
}

// NewService 创建账号服务
func NewService(store storage.Store, revoker identity.Revoker, logger *slog.Logger) *Service {
	if revoker == nil {
		revoker = identity.NoOpRevoker{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, revoker: revoker, log: logger}
}

// ============================================================================
// 运营账号
// ============================================================================

// CreateOperator 创建运营账号
//
// 角色规则：只有 superadmin 操作者可以授予 superadmin 角色；
// 其他操作者请求 superadmin 时静默降级为 admin，而不是报错。
// 系统同一时刻最多存在一个活跃 superadmin，冲突返回 ErrSuperadminExists。
func (s *Service) CreateOperator(ctx context.Context, actorRole model.AdminRole, username, password string, requested model.AdminRole) (*model.Admin, error) {
	if !usernameRe.MatchString(username) {
		return nil, &ErrValidation{Msg: "username must be 5-16 characters (letters, digits, underscore)"}
	}
	if !passwordRe.MatchString(password) {
		return nil, &ErrValidation{Msg: "password must be 6-16 characters (letters, digits, _@#$%&*)"}
	}

	role := model.AdminRoleAdmin
	if requested == model.AdminRoleSuperadmin && actorRole == model.AdminRoleSuperadmin {
		role = model.AdminRoleSuperadmin
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	admin := &model.Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if role == model.AdminRoleSuperadmin {
		// 唯一性检查与插入之间不允许交错
		s.mu.Lock()
		defer s.mu.Unlock()
		n, err := s.store.CountActiveSuperadmins(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("count superadmins: %w", err)
		}
		if n > 0 {
			return nil, storage.ErrSuperadminExists
		}
	}

	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	s.log.Info("operator created", logging.WithAdminID(admin.ID), slog.String("role", string(role)))
	return admin, nil
}

// EnsureSuperadmin 启动引导：不存在任何活跃 superadmin 时创建一个
//
// 已存在同名账号或活跃 superadmin 时什么都不做。
func (s *Service) EnsureSuperadmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	// 引导凭证必须满足与登录相同的格式，否则创建出的账号无法登录
	if !usernameRe.MatchString(username) || !passwordRe.MatchString(password) {
		return &ErrValidation{Msg: "bootstrap credentials do not match the allowed format"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.CountActiveSuperadmins(ctx, "")
	if err != nil {
		return fmt.Errorf("count superadmins: %w", err)
	}
	if n > 0 {
		return nil
	}
	existing, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check bootstrap username: %w", err)
	}
	if existing != nil {
		s.log.Warn("bootstrap username taken by non-superadmin account", slog.String("username", username))
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	admin := &model.Admin{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         model.AdminRoleSuperadmin,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap superadmin: %w", err)
	}
	s.log.Info("bootstrap superadmin created", logging.WithAdminID(admin.ID), slog.String("username", username))
	return nil
}

// Authenticate 校验用户名密码
//
// 任何失败路径都返回 ErrInvalidCredentials，不区分用户名不存在与密码
// 错误。账号状态不在这里检查：停用账号可以拿到令牌，但门禁会拒绝。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.Admin, error) {
	// 格式不合法的凭证不可能存在，直接短路，不触达存储
	if !usernameRe.MatchString(username) || !passwordRe.MatchString(password) {
		return nil, auth.ErrInvalidCredentials
	}

	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}
	if admin == nil {
		// 用耗时相近的假比较抹平时间差
		auth.CheckPassword(password, dummyHash)
		return nil, auth.ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, admin.PasswordHash) {
		return nil, auth.ErrInvalidCredentials
	}
	return admin, nil
}

// dummyHash "placeholder" 的 bcrypt 哈希，仅用于恒定时间比较
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// GetAdmin 按 ID 获取运营账号，不存在时返回 (nil, nil)
func (s *Service) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	return s.store.GetAdmin(ctx, id)
}

// ListAdmins 列出全部运营账号
func (s *Service) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	return s.store.ListAdmins(ctx)
}

// SetAdminStatus 停用/恢复运营账号
//
// 目标是系统中唯一活跃 superadmin 且请求停用时返回 ErrSoleSuperadmin。
func (s *Service) SetAdminStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if status != model.StatusActive && status != model.StatusInactive {
		return &ErrValidation{Msg: "invalid status"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetAdminStatus(ctx, id, status); err != nil {
		return err
	}
	s.log.Info("admin status changed", logging.WithAdminID(id), slog.String("status", string(status)))
	return nil
}

// DeleteAdmin 删除运营账号，受与 SetAdminStatus 相同的 superadmin 保护
func (s *Service) DeleteAdmin(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	s.log.Info("admin deleted", logging.WithAdminID(id))
	return nil
}

// ============================================================================
// 终端用户
// ============================================================================

// ListUsers 列出全部终端用户（不含文件数据）
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser 按 ID 获取终端用户，不存在时返回 (nil, nil)
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// SetUserStatus 停用/恢复终端用户
//
// 停用立即生效：账号数据保留，但后续所有访问被门禁拒绝。
func (s *Service) SetUserStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if status != model.StatusActive && status != model.StatusInactive {
		return &ErrValidation{Msg: "invalid status"}
	}
	if err := s.store.SetUserStatus(ctx, id, status); err != nil {
		return err
	}
	s.log.Info("user status changed", logging.WithUserID(id), slog.String("status", string(status)))
	return nil
}

// DeleteUser 删除终端用户及其全部文件
//
// 本地删除成功后尽力吊销外部身份提供方的会话；吊销失败只记录，
// 不回滚本地删除，也不向调用方报错。
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return storage.ErrNotFound
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}

	if err := s.revoker.Revoke(ctx, user.SubjectKey); err != nil {
		s.log.Warn("revoke external session failed", logging.WithUserID(id), logging.WithError(err))
	}
	s.log.Info("user deleted", logging.WithUserID(id))
	return nil
}

// UserFiles 返回指定用户的全部文件（含行数据），运营后台巡查用
func (s *Service) UserFiles(ctx context.Context, userID string) ([]model.SheetFile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}
	return s.store.ListFiles(ctx, userID)
}

// RemoveUserFile 从指定用户的集合中删除一个文件
func (s *Service) RemoveUserFile(ctx context.Context, userID, fileID string) error {
	if err := s.store.RemoveFile(ctx, userID, fileID); err != nil {
		return err
	}
	s.log.Info("user file removed", logging.WithUserID(userID), logging.WithFileID(fileID))
	return nil
}

// ============================================================================
// 分析统计
// ============================================================================

// DailySignup 单日新增用户数
type DailySignup struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Analytics 当月每日新增用户统计
//
// 返回从当月 1 日到今天的完整序列，没有新增的日期补零。
func (s *Service) Analytics(ctx context.Context) ([]DailySignup, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	counts, err := s.store.CountUsersByDay(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("count users by day: %w", err)
	}

	var out []DailySignup
	for d := monthStart; !d.After(now); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		out = append(out, DailySignup{Date: key, Count: counts[key]})
	}
	return out, nil
}

// IsValidationError 判断是否为参数校验错误
func IsValidationError(err error) bool {
	var ve *ErrValidation
	return errors.As(err, &ve)
}
