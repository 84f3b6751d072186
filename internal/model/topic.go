package model

import "github.com/lib/pq"

// Topic 选题表，对应 topics
// 由选题管理模块维护，本服务只读
type Topic struct {
	TopicID     string         `gorm:"type:uuid;primaryKey"            json:"topic_id"`
	SemesterID  string         `gorm:"type:varchar(64);not null;index" json:"semester_id"`
	Title       string         `gorm:"type:varchar(200);not null"      json:"title"`
	Description string         `gorm:"type:text"                       json:"description"`
	CategoryIDs pq.StringArray `gorm:"type:text[]"                     json:"category_ids"`
	IsActive    bool           `gorm:"not null;default:true"           json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Topic) TableName() string { return "topics" }
