package model

import (
	"time"

	"github.com/lib/pq"
)

// Preference 学生志愿表，对应 preferences
// TopicIDs 按志愿顺序排列，第一个为第一志愿
type Preference struct {
	PreferenceID string         `gorm:"type:uuid;primaryKey"            json:"preference_id"`
	SemesterID   string         `gorm:"type:varchar(64);not null;index" json:"semester_id"`
	StudentID    string         `gorm:"type:varchar(64);not null"       json:"student_id"`
	TopicIDs     pq.StringArray `gorm:"type:text[];not null"            json:"topic_ids"`
	SubmittedAt  time.Time      `gorm:"type:timestamptz;not null"       json:"submitted_at"`
}

// TableName 指定表名
func (Preference) TableName() string { return "preferences" }
