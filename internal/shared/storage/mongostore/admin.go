package mongostore

import (
	"context"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// AdminStore
// ============================================================================

func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	return insertOne(ctx, s.col(ColAdmins), admin)
}

func (s *Store) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	return findOne[model.Admin](ctx, s.col(ColAdmins), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return findOne[model.Admin](ctx, s.col(ColAdmins), bson.D{{Key: "username", Value: username}})
}

func (s *Store) ListAdmins(ctx context.Context) ([]*model.Admin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findMany[model.Admin](ctx, s.col(ColAdmins), bson.D{}, opts)
}

func (s *Store) CountActiveSuperadmins(ctx context.Context, excludeID string) (int64, error) {
	filter := bson.D{
		{Key: "role", Value: model.AdminRoleSuperadmin},
		{Key: "status", Value: model.StatusActive},
	}
	if excludeID != "" {
		filter = append(filter, bson.E{Key: "_id", Value: bson.D{{Key: "$ne", Value: excludeID}}})
	}
	n, err := s.col(ColAdmins).CountDocuments(ctx, filter)
	return n, wrapError(err)
}

// SetAdminStatus 更新账号状态
//
// superadmin 保护条款是先检查后修改：多文档条件无法放进单条 Mongo
// 更新语句，检查-修改的串行化由生命周期服务（account.Service）保证。
func (s *Store) SetAdminStatus(ctx context.Context, id string, status model.AccountStatus) error {
	if status == model.StatusInactive {
		if err := s.guardSoleSuperadmin(ctx, id); err != nil {
			return err
		}
	}
	return updateFields(ctx, s.col(ColAdmins), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now().UTC()},
	})
}

// DeleteAdmin 删除账号，受与 SetAdminStatus 相同的保护条款约束
func (s *Store) DeleteAdmin(ctx context.Context, id string) error {
	if err := s.guardSoleSuperadmin(ctx, id); err != nil {
		return err
	}
	return deleteByID(ctx, s.col(ColAdmins), id)
}

// guardSoleSuperadmin 目标是唯一活跃 superadmin 时返回 ErrSoleSuperadmin
func (s *Store) guardSoleSuperadmin(ctx context.Context, id string) error {
	admin, err := s.GetAdmin(ctx, id)
	if err != nil {
		return err
	}
	if admin == nil {
		return storage.ErrNotFound
	}
	if !admin.IsActiveSuperadmin() {
		return nil
	}
	others, err := s.CountActiveSuperadmins(ctx, id)
	if err != nil {
		return err
	}
	if others == 0 {
		return storage.ErrSoleSuperadmin
	}
	return nil
}
