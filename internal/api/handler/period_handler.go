package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/response"
)

// PeriodHandler 选题周期模块 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc}
}

// ListPeriods 获取选题周期列表
// GET /api/v1/periods?semester_id=xxx&page=1&page_size=20
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	var req dto.ListPeriodsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.periodSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetPeriod 获取选题周期详情
// GET /api/v1/periods/:id
func (h *PeriodHandler) GetPeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	period, err := h.periodSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// CreatePeriod 创建选题周期
// POST /api/v1/periods
func (h *PeriodHandler) CreatePeriod(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.Created(c, period)
}

// UpdatePeriod 更新选题周期
// PUT /api/v1/periods/:id
func (h *PeriodHandler) UpdatePeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	var req dto.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// DeletePeriod 删除选题周期
// DELETE /api/v1/periods/:id
func (h *PeriodHandler) DeletePeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.periodSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, nil)
}

// OpenPeriod 人工开放选题周期
// POST /api/v1/periods/:id/open
func (h *PeriodHandler) OpenPeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.ForceOpen(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// ClosePeriod 人工关闭选题周期并提交求解
// POST /api/v1/periods/:id/close
func (h *PeriodHandler) ClosePeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.periodSvc.ForceClose(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// SolvePeriod 对已关闭的周期重新提交求解
// POST /api/v1/periods/:id/solve
func (h *PeriodHandler) SolvePeriod(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.periodSvc.Solve(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// GetAssignment 获取周期的分配结果
// GET /api/v1/periods/:id/assignment
func (h *PeriodHandler) GetAssignment(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	result, err := h.periodSvc.GetAssignment(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// handlePeriodError 统一处理选题周期模块业务错误
func (h *PeriodHandler) handlePeriodError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 21001, "选题周期不存在")
	case errors.Is(err, service.ErrPeriodDateFormat):
		response.BadRequest(c, 21002, "时间格式错误，应为 RFC3339")
	case errors.Is(err, service.ErrPeriodDateInvalid):
		response.BadRequest(c, 21003, "开放时间必须早于关闭时间")
	case errors.Is(err, service.ErrPeriodSettingsInvalid):
		response.BadRequest(c, 21004, "求解参数不合法")
	case errors.Is(err, service.ErrIllegalMutation):
		response.Conflict(c, 21005, "已完成分配的选题周期不能再修改")
	case errors.Is(err, service.ErrPeriodHasSelections):
		response.Conflict(c, 21006, "该学期已有学生提交志愿，不能删除选题周期")
	case errors.Is(err, service.ErrPeriodNotOpen):
		response.Conflict(c, 21007, "选题周期尚未开放")
	case errors.Is(err, service.ErrPeriodNotClosed):
		response.Conflict(c, 21008, "选题周期尚未关闭")
	case errors.Is(err, service.ErrForceOpenOutsideWindow):
		response.Conflict(c, 21009, "当前时间不在开放时间与关闭时间之间")
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 24001, "该选题周期尚无分配结果")
	default:
		if handleConcurrencyError(c, err) || handleSolveError(c, err) {
			return
		}
		response.InternalError(c)
	}
}
