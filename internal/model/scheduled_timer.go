package model

import (
	"time"

	"gorm.io/datatypes"
)

// 定时器状态：scheduled → firing → fired | cancelled
const (
	TimerStatusScheduled = "scheduled"
	TimerStatusFiring    = "firing"
	TimerStatusFired     = "fired"
	TimerStatusCancelled = "cancelled"
)

// ScheduledTimer 持久化定时器表，对应 scheduled_timers
type ScheduledTimer struct {
	TimerID   string         `gorm:"type:uuid;primaryKey"               json:"timer_id"`
	Handler   string         `gorm:"type:varchar(64);not null"          json:"handler"`
	Args      datatypes.JSON `gorm:"type:jsonb"                         json:"args"`
	FireAt    time.Time      `gorm:"type:timestamptz;not null;index"    json:"fire_at"`
	Status    string         `gorm:"type:varchar(20);not null"          json:"status"`
	ClaimedAt *time.Time     `gorm:"type:timestamptz"                   json:"claimed_at,omitempty"`
	FiredAt   *time.Time     `gorm:"type:timestamptz"                   json:"fired_at,omitempty"`
	Attempts  int            `gorm:"not null;default:0"                 json:"attempts"`
	LastError string         `gorm:"type:text;not null;default:''"      json:"last_error"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName 指定表名
func (ScheduledTimer) TableName() string { return "scheduled_timers" }
