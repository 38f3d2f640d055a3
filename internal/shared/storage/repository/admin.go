package repository

import (
	"context"
	"database/sql"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
)

// CreateAdmin 创建运营账号
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO admins (id, username, password_hash, role, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		admin.ID, admin.Username, admin.PasswordHash,
		admin.Role, admin.Status, admin.CreatedAt, admin.UpdatedAt,
	)
	if isDuplicateErr(err) {
		return storage.ErrDuplicate
	}
	return err
}

const adminColumns = `id, username, password_hash, role, status, created_at, updated_at`

func scanAdmin(row interface{ Scan(...any) error }) (*model.Admin, error) {
	a := &model.Admin{}
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetAdmin 按 ID 查找运营账号，不存在时返回 (nil, nil)
func (s *Store) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`), id))
}

// GetAdminByUsername 按用户名查找运营账号
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+adminColumns+` FROM admins WHERE username = $1`), username))
}

// ListAdmins 列出全部运营账号
func (s *Store) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+adminColumns+` FROM admins ORDER BY created_at`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := []*model.Admin{}
	for rows.Next() {
		a := &model.Admin{}
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// CountActiveSuperadmins 统计活跃 superadmin 数量
func (s *Store) CountActiveSuperadmins(ctx context.Context, excludeID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM admins WHERE role = 'superadmin' AND status = 'active' AND id <> $1`),
		excludeID,
	).Scan(&n)
	return n, err
}

// SetAdminStatus 更新账号状态
//
// superadmin 保护条款内联在 UPDATE 的 WHERE 中，检查与修改是同一条
// 原子语句：仅当目标不是"唯一活跃的 superadmin 被请求停用"时才生效。
func (s *Store) SetAdminStatus(ctx context.Context, id string, status model.AccountStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE admins SET status = $1, updated_at = $2
		 WHERE id = $3 AND NOT (
		     $4 = 'inactive' AND role = 'superadmin' AND status = 'active'
		     AND NOT EXISTS (
		         SELECT 1 FROM admins a2
		         WHERE a2.role = 'superadmin' AND a2.status = 'active' AND a2.id <> admins.id))`),
		status, time.Now().UTC(), id, status,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.adminGuardError(ctx, id)
	}
	return nil
}

// DeleteAdmin 删除账号，受与 SetAdminStatus 相同的保护条款约束
func (s *Store) DeleteAdmin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM admins
		 WHERE id = $1 AND NOT (
		     role = 'superadmin' AND status = 'active'
		     AND NOT EXISTS (
		         SELECT 1 FROM admins a2
		         WHERE a2.role = 'superadmin' AND a2.status = 'active' AND a2.id <> admins.id))`),
		id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.adminGuardError(ctx, id)
	}
	return nil
}

// adminGuardError 区分"目标不存在"与"被 superadmin 保护拦截"
func (s *Store) adminGuardError(ctx context.Context, id string) error {
	admin, err := s.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	if admin == nil {
		return storage.ErrNotFound
	}
	return storage.ErrSoleSuperadmin
}
