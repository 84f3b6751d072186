package dto

import "encoding/json"

// ── 分配结果模块 DTO ──

// SolverCallbackRequest 求解服务回调体
// 验签基于原始请求体完成，这里仅用于读取字段
type SolverCallbackRequest struct {
	DeferredID   string          `json:"deferredId"`
	EvaluationID string          `json:"evaluationId"`
	Data         json.RawMessage `json:"data"`
	Hash         string          `json:"hash"`
}

// CallbackResponse 回调处理结果
type CallbackResponse struct {
	DeferredID        string `json:"deferred_id"`
	Status            string `json:"status"`
	AssignmentBatchID string `json:"assignment_batch_id,omitempty"`
}

// AssignmentItemResponse 单个学生的分配结果
type AssignmentItemResponse struct {
	StudentID  string `json:"student_id"`
	TopicID    string `json:"topic_id"`
	TopicTitle string `json:"topic_title"`
	Rank       *int   `json:"rank,omitempty"`
}

// AssignmentResponse 周期的分配结果
type AssignmentResponse struct {
	BatchID   string                   `json:"batch_id"`
	PeriodID  string                   `json:"period_id"`
	JobID     string                   `json:"job_id"`
	CreatedAt string                   `json:"created_at"`
	Items     []AssignmentItemResponse `json:"items"`
}
