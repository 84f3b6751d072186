package dto

// ── 求解任务模块 DTO ──

// JobResponse 求解任务响应
type JobResponse struct {
	ID                string `json:"id"`
	PeriodID          string `json:"period_id"`
	Status            string `json:"status"`
	Mode              string `json:"mode"`
	AssignmentBatchID string `json:"assignment_batch_id,omitempty"`
	Error             string `json:"error,omitempty"`
	NumStudents       int    `json:"num_students"`
	NumTopics         int    `json:"num_topics"`
	FinishedAt        string `json:"finished_at,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`

	CallbackAttempts map[string]int64 `json:"callback_attempts,omitempty"` // 按结果统计的回调到达次数
}

// FailJobRequest 人工标记任务失败
type FailJobRequest struct {
	Reason string `json:"reason" binding:"required,min=2,max=2000"`
}

// SolveResponse 触发求解的结果
// 同步模式下任务已完成，异步模式下任务为 pending
type SolveResponse struct {
	Period PeriodResponse `json:"period"`
	Job    *JobResponse   `json:"job,omitempty"`
}
