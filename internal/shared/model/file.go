package model

import "time"

// Row 一行解析后的表格数据：列名 → 标量（字符串、数字或空白）
type Row map[string]any

// SheetFile 一次上传解析出的数据集
//
// 创建后不可变：集合只支持整体追加（append）和按 ID 删除（pull），
// 不支持原位修改。ID 在所属用户范围内唯一，删除后不复用。
type SheetFile struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	FileName  string    `json:"file_name" bson:"file_name" db:"file_name"`
	FileType  string    `json:"file_type" bson:"file_type" db:"file_type"`
	Rows      []Row     `json:"file_data" bson:"file_data"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// FileSummary 文件列表投影（不含行数据）
type FileSummary struct {
	ID        string    `json:"id" bson:"_id"`
	FileName  string    `json:"file_name" bson:"file_name"`
	FileType  string    `json:"file_type" bson:"file_type"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
