// Package repository 数据库无关的 SQL 存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
//
// 用户文件集合建模为 user_files 子表：seq 自增列保证插入顺序，
// 文件 ID 全局唯一且删除后不复用，与文档型后端的内嵌数组语义一致。
package repository

import (
	"database/sql"
	"strings"

	"sheet-insights/internal/shared/storage"
	"sheet-insights/internal/shared/storage/dbutil"
)

// Store 通用 SQL 存储实现
// 实现了 storage.Store 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

// NewStore 创建通用存储并执行自动迁移
func NewStore(db *sql.DB, dialect dbutil.Dialect) (*Store, error) {
	if err := dialect.AutoMigrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// isDuplicateErr 判断是否为唯一键冲突
// PostgreSQL: "duplicate key value violates unique constraint"
// SQLite: "UNIQUE constraint failed"
func isDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// isForeignKeyErr 判断是否为外键约束冲突
func isForeignKeyErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

var _ storage.Store = (*Store)(nil)
