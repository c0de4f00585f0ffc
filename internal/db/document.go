package db

import (
	"time"

	"gorm.io/datatypes"
)

// UserDocument 是每个已登录身份对应的单个远端文档。
// 每个顶层字段一列 JSON，NULL 表示文档中缺失该字段，合并写入时只更新非空列。
type UserDocument struct {
	ID          uint           `gorm:"primarykey"`
	UserID      string         `gorm:"size:191;uniqueIndex;not null"`
	Habits      datatypes.JSON `gorm:"type:text"`
	Records     datatypes.JSON `gorm:"type:text"`
	ReadingLogs datatypes.JSON `gorm:"type:text"`
	WorkLogs    datatypes.JSON `gorm:"type:text"`
	WorkTags    datatypes.JSON `gorm:"type:text"`
	Settings    datatypes.JSON `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName 固定表名。
func (UserDocument) TableName() string {
	return "user_documents"
}

// 列名与 model.Field 一一对应。
const (
	ColumnHabits      = "habits"
	ColumnRecords     = "records"
	ColumnReadingLogs = "reading_logs"
	ColumnWorkLogs    = "work_logs"
	ColumnWorkTags    = "work_tags"
	ColumnSettings    = "settings"
)
