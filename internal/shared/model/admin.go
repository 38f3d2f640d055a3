package model

import "time"

// AdminRole 运营账号角色
type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperadmin AdminRole = "superadmin"
)

// AccountStatus 账号状态（运营账号与终端用户共用）
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusInactive AccountStatus = "inactive"
)

// Admin 运营账号
//
// 系统不变量：一旦出现过 active 的 superadmin，
// 就不允许通过停用/删除使 active superadmin 数量降为 0。
type Admin struct {
	ID           string        `json:"id" bson:"_id" db:"id"`
	Username     string        `json:"username" bson:"username" db:"username"`
	PasswordHash string        `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Role         AdminRole     `json:"role" bson:"role" db:"role"`
	Status       AccountStatus `json:"status" bson:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// IsActiveSuperadmin 是否为活跃的 superadmin
func (a *Admin) IsActiveSuperadmin() bool {
	return a.Role == AdminRoleSuperadmin && a.Status == StatusActive
}
