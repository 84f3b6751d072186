package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// 求解任务状态
const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DeferredJob 求解任务表，对应 deferred_jobs
//
// StudentIndex/TopicIndex 是提交时的下标快照：求解结果里的整数下标
// 必须按快照还原，不能按当前数据重新计算。
// 同一周期至多一个 pending 任务（部分唯一索引保证）。
type DeferredJob struct {
	JobID             string         `gorm:"type:uuid;primaryKey"          json:"job_id"`
	PeriodID          string         `gorm:"type:uuid;not null;index"      json:"period_id"`
	Status            string         `gorm:"type:varchar(20);not null"     json:"status"`
	Mode              string         `gorm:"type:varchar(20);not null"     json:"mode"` // sync | deferred
	CallbackURL       string         `gorm:"type:text;not null;default:''" json:"callback_url"`
	StudentIndex      pq.StringArray `gorm:"type:text[];not null"          json:"student_index"`
	TopicIndex        pq.StringArray `gorm:"type:text[];not null"          json:"topic_index"`
	Request           datatypes.JSON `gorm:"type:jsonb"                    json:"request,omitempty"`
	AssignmentBatchID *string        `gorm:"type:uuid"                     json:"assignment_batch_id,omitempty"`
	Error             string         `gorm:"type:text;not null;default:''" json:"error"`
	FinishedAt        *time.Time     `gorm:"type:timestamptz"              json:"finished_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (DeferredJob) TableName() string { return "deferred_jobs" }
