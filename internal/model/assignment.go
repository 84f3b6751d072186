package model

import "time"

// AssignmentBatch 分配批次表，对应 assignment_batches
// 每个求解任务至多产生一个批次（job_id 唯一）
type AssignmentBatch struct {
	BatchID   string           `gorm:"type:uuid;primaryKey"               json:"batch_id"`
	PeriodID  string           `gorm:"type:uuid;not null;index"           json:"period_id"`
	JobID     string           `gorm:"type:uuid;not null;uniqueIndex"     json:"job_id"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	Items     []AssignmentItem `gorm:"foreignKey:BatchID;references:BatchID" json:"items,omitempty"`
}

// TableName 指定表名
func (AssignmentBatch) TableName() string { return "assignment_batches" }

// AssignmentItem 分配明细表，对应 assignment_items
type AssignmentItem struct {
	BatchID   string `gorm:"type:uuid;primaryKey"        json:"batch_id"`
	StudentID string `gorm:"type:varchar(64);primaryKey" json:"student_id"`
	TopicID   string `gorm:"type:uuid;not null"          json:"topic_id"`
	Rank      *int   `gorm:""                            json:"rank,omitempty"` // 学生志愿中的位次（从 1 开始）
}

// TableName 指定表名
func (AssignmentItem) TableName() string { return "assignment_items" }
