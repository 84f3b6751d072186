package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/response"
)

// CallbackHandler 求解服务回调入口
type CallbackHandler struct {
	solveSvc service.SolveService
}

// NewCallbackHandler 创建 CallbackHandler
func NewCallbackHandler(solveSvc service.SolveService) *CallbackHandler {
	return &CallbackHandler{solveSvc: solveSvc}
}

// ReceiveResult 接收异步求解结果
// POST /api/v1/assignment/callback
//
// 签名基于原始请求体校验，不能先经过 ShouldBindJSON
func (h *CallbackHandler) ReceiveResult(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 23003, "回调数据过大")
			return
		}
		response.BadRequest(c, 23001, "回调数据读取失败")
		return
	}

	result, err := h.solveSvc.HandleCallback(c.Request.Context(), body)
	if err != nil {
		h.handleCallbackError(c, err)
		return
	}

	response.OK(c, result)
}

// handleCallbackError 统一处理回调错误
func (h *CallbackHandler) handleCallbackError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCallbackMalformed):
		response.ErrorWithDetails(c, http.StatusBadRequest, 23001, "回调数据格式错误", err.Error())
	case errors.Is(err, service.ErrCallbackAuth):
		response.Unauthorized(c, 23002, "回调签名校验失败")
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 21001, "选题周期不存在")
	case errors.Is(err, service.ErrIllegalMutation):
		response.Conflict(c, 21005, "选题周期已完成分配")
	default:
		if handleSolveError(c, err) {
			return
		}
		response.InternalError(c)
	}
}
