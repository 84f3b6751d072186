package dto

// ── 选题周期模块 DTO ──

// PeriodSettings 求解参数，随周期一起保存
type PeriodSettings struct {
	RankingsEnabled     *bool          `json:"rankings_enabled"`
	RankingPercentage   *float64       `json:"ranking_percentage"    binding:"omitempty,min=0,max=100"`
	MaxTimeSeconds      *int           `json:"max_time_in_seconds"   binding:"omitempty,min=1"`
	GroupSizes          map[string]int `json:"group_sizes"`
	MinimizeCategoryIDs []string       `json:"minimize_category_ids"`
	StudentIDs          []string       `json:"student_ids"`
}

// ListPeriodsRequest 列出周期请求
type ListPeriodsRequest struct {
	PaginationRequest
	SemesterID string `form:"semester_id"`
}

// CreatePeriodRequest 创建选题周期请求
type CreatePeriodRequest struct {
	SemesterID  string `json:"semester_id" binding:"required,max=64"`
	Title       string `json:"title"       binding:"required,min=2,max=200"`
	Description string `json:"description" binding:"max=10000"`
	OpenDate    string `json:"open_date"   binding:"required"` // RFC3339，如 "2026-03-01T08:00:00+08:00"
	CloseDate   string `json:"close_date"  binding:"required"`
	PeriodSettings
}

// UpdatePeriodRequest 更新选题周期请求，字段为空表示不修改
type UpdatePeriodRequest struct {
	Title       *string `json:"title"       binding:"omitempty,min=2,max=200"`
	Description *string `json:"description" binding:"omitempty,max=10000"`
	OpenDate    *string `json:"open_date"`
	CloseDate   *string `json:"close_date"`
	PeriodSettings
}

// PeriodResponse 选题周期响应
type PeriodResponse struct {
	ID                  string         `json:"id"`
	SemesterID          string         `json:"semester_id"`
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	OpenDate            string         `json:"open_date"`
	CloseDate           string         `json:"close_date"`
	State               string         `json:"state"`
	HasTimer            bool           `json:"has_timer"`
	AssignmentBatchID   string         `json:"assignment_batch_id,omitempty"`
	CloseError          string         `json:"close_error,omitempty"`
	ClosedAt            string         `json:"closed_at,omitempty"`
	RankingsEnabled     bool           `json:"rankings_enabled"`
	RankingPercentage   *float64       `json:"ranking_percentage,omitempty"`
	MaxTimeSeconds      *int           `json:"max_time_in_seconds,omitempty"`
	GroupSizes          map[string]int `json:"group_sizes,omitempty"`
	MinimizeCategoryIDs []string       `json:"minimize_category_ids"`
	StudentIDs          []string       `json:"student_ids"`
	Version             int            `json:"version"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
}
