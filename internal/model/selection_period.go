package model

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 选题周期状态
const (
	PeriodStateInactive = "inactive"
	PeriodStateOpen     = "open"
	PeriodStateClosed   = "closed"
	PeriodStateAssigned = "assigned"
)

// SelectionPeriod 选题周期表，对应 selection_periods
//
// State/TimerID/AssignmentBatchID/CloseError 四列共同编码生命周期：
//   - inactive：TimerID 可选，指向开放定时器
//   - open：TimerID 必填，指向关闭定时器
//   - closed：TimerID 为空，CloseError 记录最近一次失败原因
//   - assigned：AssignmentBatchID 必填
type SelectionPeriod struct {
	PeriodID          string         `gorm:"type:uuid;primaryKey"                        json:"period_id"`
	SemesterID        string         `gorm:"type:varchar(64);not null;index"             json:"semester_id"`
	Title             string         `gorm:"type:varchar(200);not null"                  json:"title"`
	Description       string         `gorm:"type:text;not null;default:''"               json:"description"`
	OpenDate          time.Time      `gorm:"type:timestamptz;not null"                   json:"open_date"`
	CloseDate         time.Time      `gorm:"type:timestamptz;not null"                   json:"close_date"`
	State             string         `gorm:"type:varchar(20);not null"                   json:"state"`
	TimerID           *string        `gorm:"type:uuid"                                   json:"timer_id,omitempty"`
	AssignmentBatchID *string        `gorm:"type:uuid"                                   json:"assignment_batch_id,omitempty"`
	CloseError        string         `gorm:"type:text;not null;default:''"               json:"close_error"`
	ClosedAt          *time.Time     `gorm:"type:timestamptz"                            json:"closed_at,omitempty"`
	RankingsEnabled   bool           `gorm:"not null;default:true"                       json:"rankings_enabled"`
	RankingPercentage *float64       `gorm:"type:numeric(5,2)"                           json:"ranking_percentage,omitempty"`
	MaxTimeSeconds    *int           `gorm:""                                            json:"max_time_in_seconds,omitempty"`
	GroupSizes        datatypes.JSON `gorm:"type:jsonb"                                  json:"group_sizes,omitempty"` // {"topicId": size}
	MinimizeCategory  pq.StringArray `gorm:"column:minimize_category_ids;type:text[]"    json:"minimize_category_ids"`
	StudentIDs        pq.StringArray `gorm:"type:text[]"                                 json:"student_ids"` // 访问名单，关闭志愿排序时作为学生全集
	VersionedModel
}

// TableName 指定表名
func (SelectionPeriod) TableName() string { return "selection_periods" }

// BeforeCreate 数组列为 NOT NULL，nil 写成空数组
func (p *SelectionPeriod) BeforeCreate(*gorm.DB) error {
	if p.MinimizeCategory == nil {
		p.MinimizeCategory = pq.StringArray{}
	}
	if p.StudentIDs == nil {
		p.StudentIDs = pq.StringArray{}
	}
	return nil
}

// GroupSizeMap 解析分组人数覆盖配置，未配置时返回空 map
func (p *SelectionPeriod) GroupSizeMap() (map[string]int, error) {
	sizes := map[string]int{}
	if len(p.GroupSizes) == 0 || string(p.GroupSizes) == "null" {
		return sizes, nil
	}
	if err := json.Unmarshal(p.GroupSizes, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

// SetGroupSizes 写入分组人数覆盖配置，nil 表示清空
func (p *SelectionPeriod) SetGroupSizes(sizes map[string]int) error {
	if sizes == nil {
		p.GroupSizes = nil
		return nil
	}
	raw, err := json.Marshal(sizes)
	if err != nil {
		return err
	}
	p.GroupSizes = datatypes.JSON(raw)
	return nil
}
