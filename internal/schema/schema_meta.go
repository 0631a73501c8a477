package schema

import "time"

// SchemaMeta 已执行到的迁移步骤；单行表（ID=1）
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (SchemaMeta) TableName() string {
	return "schema_meta"
}
