package mongostore

import (
	"context"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// FileStore
//
// 文件集合是 users 聚合文档的内嵌数组（files_data）。
// $push/$pull 都是单文档更新，MongoDB 保证其原子性：
// 并发 $push 互不覆盖，$push 顺序即读取顺序。
// ============================================================================

// AppendFile 原子追加一个文件到 owner 的集合
func (s *Store) AppendFile(ctx context.Context, ownerID string, file *model.SheetFile) error {
	res, err := s.col(ColUsers).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: ownerID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "files_data", Value: file}}}},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RemoveFile 原子删除 owner 名下的一个文件
//
// ModifiedCount == 0 统一返回 ErrNotFound：已删除、属于他人、
// 从未存在，对调用方不可区分。
func (s *Store) RemoveFile(ctx context.Context, ownerID, fileID string) error {
	res, err := s.col(ColUsers).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: ownerID}},
		bson.D{{Key: "$pull", Value: bson.D{
			{Key: "files_data", Value: bson.D{{Key: "_id", Value: fileID}}},
		}}},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.ModifiedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListFileSummaries 按插入顺序返回文件投影，不含行数据
func (s *Store) ListFileSummaries(ctx context.Context, ownerID string) ([]model.FileSummary, error) {
	opts := options.FindOne().SetProjection(bson.D{
		{Key: "files_data._id", Value: 1},
		{Key: "files_data.file_name", Value: 1},
		{Key: "files_data.file_type", Value: 1},
		{Key: "files_data.created_at", Value: 1},
	})
	user, err := findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: ownerID}}, opts)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}

	summaries := make([]model.FileSummary, 0, len(user.Files))
	for _, f := range user.Files {
		summaries = append(summaries, model.FileSummary{
			ID:        f.ID,
			FileName:  f.FileName,
			FileType:  f.FileType,
			CreatedAt: f.CreatedAt,
		})
	}
	return summaries, nil
}

// GetFile 返回完整文件（含全部行），使用位置投影只取命中的数组元素
func (s *Store) GetFile(ctx context.Context, ownerID, fileID string) (*model.SheetFile, error) {
	filter := bson.D{
		{Key: "_id", Value: ownerID},
		{Key: "files_data._id", Value: fileID},
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "files_data.$", Value: 1}})
	user, err := findOne[model.User](ctx, s.col(ColUsers), filter, opts)
	if err != nil {
		return nil, err
	}
	if user == nil || len(user.Files) == 0 {
		return nil, storage.ErrNotFound
	}
	return &user.Files[0], nil
}

// ListFiles 返回 owner 的全部完整文件（运营后台使用）
func (s *Store) ListFiles(ctx context.Context, ownerID string) ([]model.SheetFile, error) {
	opts := options.FindOne().SetProjection(bson.D{{Key: "files_data", Value: 1}})
	user, err := findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: ownerID}}, opts)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}
	if user.Files == nil {
		return []model.SheetFile{}, nil
	}
	return user.Files, nil
}
