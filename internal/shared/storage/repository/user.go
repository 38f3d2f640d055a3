package repository

import (
	"context"
	"database/sql"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
)

const userColumns = `id, auth_subject, name, email, picture, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.SubjectKey, &u.Name, &u.Email, &u.Picture, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ResolveUser 按外部主体标识查找或原子创建用户
//
// INSERT ... ON CONFLICT DO NOTHING 保证并发调用同一主体标识时
// 至多插入一行；随后的读取对所有调用方返回同一账号。
func (s *Store) ResolveUser(ctx context.Context, subjectKey string, seed *model.User) (*model.User, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, auth_subject, name, email, picture, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (auth_subject) DO NOTHING`),
		seed.ID, subjectKey, seed.Name, seed.Email, seed.Picture,
		seed.Status, seed.CreatedAt, seed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s.GetUserBySubject(ctx, subjectKey)
}

// GetUser 按 ID 查找用户（不含文件数据），不存在时返回 (nil, nil)
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id))
}

// GetUserBySubject 按外部主体标识查找用户
func (s *Store) GetUserBySubject(ctx context.Context, subjectKey string) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE auth_subject = $1`), subjectKey))
}

// ListUsers 列出全部用户，不含内嵌文件数据
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users ORDER BY created_at`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.SubjectKey, &u.Name, &u.Email, &u.Picture, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUserProfile 更新展示名和头像
func (s *Store) UpdateUserProfile(ctx context.Context, id, name, picture string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET name = $1, picture = $2, updated_at = $3 WHERE id = $4`),
		name, picture, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetUserStatus 更新用户状态（无 superadmin 类保护，幂等）
func (s *Store) SetUserStatus(ctx context.Context, id string, status model.AccountStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`),
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteUser 删除用户，user_files 由外键级联一并删除
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = $1`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountUsersByDay 统计 since 之后每天新建的用户数
func (s *Store) CountUsersByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	day := s.dialect.FormatDate("created_at")
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT `+day+` AS day, COUNT(*) FROM users WHERE created_at >= $1 GROUP BY day`),
		since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	return counts, rows.Err()
}
