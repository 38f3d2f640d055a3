// Package storage 定义存储层抽象接口与领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（mongostore/repository）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments。
	// 对"从未存在"、"已删除"、"属于其他账号"统一返回该错误，
	// 避免跨账号泄露存在性。
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（重复用户名 / 重复主体标识）
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrSoleSuperadmin 目标是唯一活跃的 superadmin，禁止停用或删除
	ErrSoleSuperadmin = errors.New("cannot suspend or delete the only active superadmin")

	// ErrSuperadminExists 已存在活跃 superadmin，禁止再创建
	ErrSuperadminExists = errors.New("an active superadmin already exists")
)
