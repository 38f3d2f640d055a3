package model

import "time"

// User 终端用户账号
//
// 由外部身份联合首次登录时惰性创建，SubjectKey 是外部身份的稳定主体
// 标识，创建后不可变。用户上传的已解析表格（Files）作为同一聚合文档
// 的内嵌数组持久化，只能经由所属账号访问。
type User struct {
	ID         string        `json:"id" bson:"_id" db:"id"`
	SubjectKey string        `json:"subject_key" bson:"auth_subject" db:"auth_subject"`
	Name       string        `json:"name" bson:"name" db:"name"`
	Email      string        `json:"email" bson:"email" db:"email"`
	Picture    string        `json:"picture" bson:"picture" db:"picture"`
	Status     AccountStatus `json:"status" bson:"status" db:"status"`
	Files      []SheetFile   `json:"files_data,omitempty" bson:"files_data,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// IsActive 账号是否可用
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
