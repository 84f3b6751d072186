package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"project-selector/backend/internal/service"
	"project-selector/backend/internal/solver"
	pkgerrors "project-selector/backend/pkg/errors"
	"project-selector/backend/pkg/response"
)

// handleSolveError 处理求解与任务相关的错误，返回 false 表示未识别
// 周期的关闭/求解接口与回调接口共用
func handleSolveError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		response.NotFound(c, 22001, "求解任务不存在")
	case errors.Is(err, service.ErrJobConflict):
		response.Conflict(c, 22002, "该选题周期已有进行中的求解任务")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Conflict(c, 22003, "求解任务已结束，不能再变更")
	case errors.Is(err, service.ErrResultMapping):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 22004, "求解结果无法还原为分配方案", err.Error())
	case errors.Is(err, solver.ErrUnknownTopic):
		response.ErrorWithDetails(c, http.StatusNotFound, 22006, "分组人数配置引用了不存在的选题", err.Error())
	case errors.Is(err, service.ErrSolveValidation):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 22005, "求解数据校验失败", err.Error())
	case errors.Is(err, service.ErrSolverNotConfigured):
		response.ServiceUnavailable(c, 22007, "求解服务未配置")
	case errors.Is(err, service.ErrSolverService):
		details := err.Error()
		var se *solver.ServiceError
		if errors.As(err, &se) {
			details = se.Error()
		}
		response.BadGateway(c, 22008, "求解服务调用失败", details)
	case errors.Is(err, service.ErrSolverRejected):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 22009, "求解服务未能给出分配方案", err.Error())
	default:
		return false
	}
	return true
}

// handleConcurrencyError 并发修改冲突
func handleConcurrencyError(c *gin.Context, err error) bool {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		response.Conflict(c, 21010, "选题周期已被其他操作修改，请刷新后重试")
		return true
	}
	return false
}
