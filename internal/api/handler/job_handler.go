package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/response"
)

// JobHandler 求解任务模块 HTTP 处理器
type JobHandler struct {
	jobSvc   service.JobService
	attempts AttemptReader
	logger   *zap.Logger
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(jobSvc service.JobService, attempts AttemptReader, logger *zap.Logger) *JobHandler {
	return &JobHandler{jobSvc: jobSvc, attempts: attempts, logger: logger}
}

// GetJob 获取求解任务详情
// GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := mustParam(c, "id", "任务ID")
	if !ok {
		return
	}

	job, err := h.jobSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleJobError(c, err)
		return
	}

	// 回调计数仅作辅助信息，读取失败不影响响应
	if h.attempts != nil {
		counts, err := h.attempts.CallbackAttempts(c.Request.Context(), id)
		if err != nil {
			h.logger.Warn("读取回调计数失败", zap.String("job_id", id), zap.Error(err))
		} else if len(counts) > 0 {
			job.CallbackAttempts = counts
		}
	}

	response.OK(c, job)
}

// ListPeriodJobs 获取周期的求解任务历史
// GET /api/v1/periods/:id/jobs
func (h *JobHandler) ListPeriodJobs(c *gin.Context) {
	periodID, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	jobs, err := h.jobSvc.ListByPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.handleJobError(c, err)
		return
	}

	response.OK(c, gin.H{"list": jobs})
}

// FailJob 人工将卡住的任务标记为失败
// POST /api/v1/jobs/:id/fail
func (h *JobHandler) FailJob(c *gin.Context) {
	id, ok := mustParam(c, "id", "任务ID")
	if !ok {
		return
	}

	var req dto.FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	job, err := h.jobSvc.Fail(c.Request.Context(), id, req.Reason, callerID)
	if err != nil {
		h.handleJobError(c, err)
		return
	}

	response.OK(c, job)
}

// handleJobError 统一处理求解任务模块业务错误
func (h *JobHandler) handleJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 21001, "选题周期不存在")
	default:
		if handleSolveError(c, err) {
			return
		}
		response.InternalError(c)
	}
}
