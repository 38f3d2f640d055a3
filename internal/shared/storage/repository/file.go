package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"
)

// AppendFile 原子追加一个文件到 owner 的集合
//
// 单条 INSERT 即为原子追加；seq 自增列保证并发追加互不覆盖，
// 且读取顺序与插入顺序一致。owner 不存在时返回 ErrNotFound。
func (s *Store) AppendFile(ctx context.Context, ownerID string, file *model.SheetFile) error {
	data, err := json.Marshal(file.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO user_files (id, user_id, file_name, file_type, file_data, created_at)
		 SELECT $1, id, $2, $3, $4, $5 FROM users WHERE id = $6`),
		file.ID, file.FileName, file.FileType, string(data), file.CreatedAt, ownerID,
	)
	if err != nil {
		if isForeignKeyErr(err) {
			return storage.ErrNotFound
		}
		return err
	}

	// INSERT ... SELECT 在 owner 不存在时插入 0 行
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RemoveFile 原子删除 owner 名下的一个文件
func (s *Store) RemoveFile(ctx context.Context, ownerID, fileID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM user_files WHERE id = $1 AND user_id = $2`),
		fileID, ownerID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListFileSummaries 按插入顺序返回文件投影，不含行数据
func (s *Store) ListFileSummaries(ctx context.Context, ownerID string) ([]model.FileSummary, error) {
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, file_name, file_type, created_at FROM user_files
		 WHERE user_id = $1 ORDER BY seq`), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []model.FileSummary{}
	for rows.Next() {
		var fs model.FileSummary
		if err := rows.Scan(&fs.ID, &fs.FileName, &fs.FileType, &fs.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, fs)
	}
	return summaries, rows.Err()
}

// GetFile 返回完整文件（含全部行）
func (s *Store) GetFile(ctx context.Context, ownerID, fileID string) (*model.SheetFile, error) {
	var f model.SheetFile
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, file_name, file_type, file_data, created_at FROM user_files
		 WHERE id = $1 AND user_id = $2`),
		fileID, ownerID,
	).Scan(&f.ID, &f.FileName, &f.FileType, &data, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &f.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return &f, nil
}

// ListFiles 返回 owner 的全部完整文件（运营后台使用）
func (s *Store) ListFiles(ctx context.Context, ownerID string) ([]model.SheetFile, error) {
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, file_name, file_type, file_data, created_at FROM user_files
		 WHERE user_id = $1 ORDER BY seq`), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []model.SheetFile{}
	for rows.Next() {
		var f model.SheetFile
		var data string
		if err := rows.Scan(&f.ID, &f.FileName, &f.FileType, &data, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &f.Rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// requireUser owner 不存在时返回 ErrNotFound
func (s *Store) requireUser(ctx context.Context, ownerID string) error {
	u, err := s.GetUser(ctx, ownerID)
	if err != nil {
		return err
	}
	if u == nil {
		return storage.ErrNotFound
	}
	return nil
}
