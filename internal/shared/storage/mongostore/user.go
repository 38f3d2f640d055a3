package mongostore

import (
	"context"
	"errors"
	"time"

	"sheet-insights/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

// withoutFiles 排除内嵌文件数组的投影
var withoutFiles = bson.D{{Key: "files_data", Value: 0}}

// ResolveUser 按外部主体标识查找或原子创建用户
//
// FindOneAndUpdate + $setOnInsert + upsert 在 auth_subject 唯一索引的
// 保护下是原子的：并发调用同一主体标识时至多创建一个文档，
// 所有调用方拿到同一账号。
func (s *Store) ResolveUser(ctx context.Context, subjectKey string, seed *model.User) (*model.User, error) {
	filter := bson.D{{Key: "auth_subject", Value: subjectKey}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "_id", Value: seed.ID},
		{Key: "name", Value: seed.Name},
		{Key: "email", Value: seed.Email},
		{Key: "picture", Value: seed.Picture},
		{Key: "status", Value: seed.Status},
		{Key: "files_data", Value: bson.A{}},
		{Key: "created_at", Value: seed.CreatedAt},
		{Key: "updated_at", Value: seed.UpdatedAt},
	}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(withoutFiles)

	var user model.User
	err := s.col(ColUsers).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		// upsert 与并发插入竞争时可能撞唯一索引，重读即可
		if mongo.IsDuplicateKeyError(err) {
			return s.GetUserBySubject(ctx, subjectKey)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return s.GetUserBySubject(ctx, subjectKey)
		}
		return nil, wrapError(err)
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	opts := options.FindOne().SetProjection(withoutFiles)
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}}, opts)
}

func (s *Store) GetUserBySubject(ctx context.Context, subjectKey string) (*model.User, error) {
	opts := options.FindOne().SetProjection(withoutFiles)
	return findOne[model.User](ctx, s.col(ColUsers), bson.D{{Key: "auth_subject", Value: subjectKey}}, opts)
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(withoutFiles)
	return findMany[model.User](ctx, s.col(ColUsers), bson.D{}, opts)
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, name, picture string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "name", Value: name},
		{Key: "picture", Value: picture},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *Store) SetUserStatus(ctx context.Context, id string, status model.AccountStatus) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// DeleteUser 删除用户聚合文档，内嵌文件随之一并删除
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, s.col(ColUsers), id)
}

// CountUsersByDay 统计 since 之后每天新建的用户数
func (s *Store) CountUsersByDay(ctx context.Context, since time.Time) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$created_at"},
			}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.col(ColUsers).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	counts := map[string]int{}
	for cursor.Next(ctx) {
		var item struct {
			Day   string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		counts[item.Day] = item.Count
	}
	return counts, cursor.Err()
}
