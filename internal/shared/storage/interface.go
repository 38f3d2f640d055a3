package storage

import (
	"context"
	"time"

	"sheet-insights/internal/shared/model"
)

// AdminStore 运营账号存储
//
// Get* 方法在实体不存在时返回 (nil, nil)；
// 写操作在目标不存在时返回 ErrNotFound。
type AdminStore interface {
	// CreateAdmin 创建运营账号，用户名重复时返回 ErrDuplicate
	CreateAdmin(ctx context.Context, admin *model.Admin) error
	GetAdmin(ctx context.Context, id string) (*model.Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error)
	ListAdmins(ctx context.Context) ([]*model.Admin, error)
	// CountActiveSuperadmins 统计活跃 superadmin 数量，excludeID 非空时排除该账号
	CountActiveSuperadmins(ctx context.Context, excludeID string) (int64, error)
	// SetAdminStatus 更新账号状态；目标是唯一活跃 superadmin 且请求停用时
	// 返回 ErrSoleSuperadmin。设置为当前状态是幂等的成功操作。
	SetAdminStatus(ctx context.Context, id string, status model.AccountStatus) error
	// DeleteAdmin 删除账号，受与 SetAdminStatus 相同的 superadmin 保护
	DeleteAdmin(ctx context.Context, id string) error
}

// UserStore 终端用户存储
type UserStore interface {
	// ResolveUser 按外部主体标识查找用户，不存在时以 seed 原子创建。
	// 并发调用同一主体标识时，有且仅有一个账号被创建，所有调用方
	// 观察到同一个最终账号。
	ResolveUser(ctx context.Context, subjectKey string, seed *model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserBySubject(ctx context.Context, subjectKey string) (*model.User, error)
	// ListUsers 列出全部用户，不含内嵌文件数据
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateUserProfile(ctx context.Context, id, name, picture string) error
	SetUserStatus(ctx context.Context, id string, status model.AccountStatus) error
	// DeleteUser 删除用户及其全部内嵌文件
	DeleteUser(ctx context.Context, id string) error
	// CountUsersByDay 统计 since 之后每天新建的用户数，键为 "YYYY-MM-DD"
	CountUsersByDay(ctx context.Context, since time.Time) (map[string]int, error)
}

// FileStore 用户文件集合存储
//
// 文件集合是账号聚合的一部分：追加保持插入顺序，删除按 ID 精确移除，
// 并发追加互不丢失。所有操作以 ownerID 为边界，跨账号访问一律 ErrNotFound。
type FileStore interface {
	// AppendFile 原子追加一个文件，owner 不存在时返回 ErrNotFound
	AppendFile(ctx context.Context, ownerID string, file *model.SheetFile) error
	// RemoveFile 原子删除一个文件；ID 不存在于该 owner 名下时返回 ErrNotFound
	RemoveFile(ctx context.Context, ownerID, fileID string) error
	// ListFileSummaries 按插入顺序返回 {id, 文件名} 投影，不含行数据
	ListFileSummaries(ctx context.Context, ownerID string) ([]model.FileSummary, error)
	// GetFile 返回完整文件（含全部行）
	GetFile(ctx context.Context, ownerID, fileID string) (*model.SheetFile, error)
	// ListFiles 返回 owner 的全部完整文件（运营后台使用）
	ListFiles(ctx context.Context, ownerID string) ([]model.SheetFile, error)
}

// Store 持久化存储层完整接口
type Store interface {
	AdminStore
	UserStore
	FileStore
	Close() error
}
