package database

import (
	"time"

	"gorm.io/datatypes"
)

// Profile 是外部身份在本系统中的镜像，主键为令牌中的 sub。
type Profile struct {
	ID               string `gorm:"primaryKey;size:64"`
	CVGeneratedCount int    `gorm:"column:cv_generated_count;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Template 表示一份布局模板。页面背景与字段以 JSONB 存储在 Content 中。
type Template struct {
	ID               string         `gorm:"primaryKey;size:36"`
	OwnerID          string         `gorm:"index;size:64"`
	Name             string         `gorm:"size:255"`
	Country          string         `gorm:"index;size:32"`
	Content          datatypes.JSON `gorm:"type:jsonb"` // {"pages": [...], "fields": [...]}
	PreviewImageURL  string         `gorm:"size:1024"`
	PreviewObjectKey string         `gorm:"size:512"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// 批量生成任务状态。
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// GenerationJob 记录一次批量生成的进度与产物。
type GenerationJob struct {
	ID            string `gorm:"primaryKey;size:36"`
	OwnerID       string `gorm:"index;size:64"`
	CorrelationID string `gorm:"size:64"`
	Country       string `gorm:"size:32"`
	Status        string `gorm:"size:32"`
	Total         int
	Delivered     int
	Error         string         `gorm:"size:1024"`
	Artifacts     datatypes.JSON `gorm:"type:jsonb"` // [{"name": ..., "objectKey": ..., "templateId": ...}]
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{&Profile{}, &Template{}, &GenerationJob{}}
}
