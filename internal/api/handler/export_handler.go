package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService, calendarSvc service.CalendarService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc, calendarSvc: calendarSvc}
}

// ExportAssignment 导出分配结果
// GET /api/v1/periods/:id/assignment/export
func (h *ExportHandler) ExportAssignment(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportAssignment(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	response.Attachment(c, contentTypeXLSX, filename, buf.Bytes())
}

// PeriodCalendar 下载选题周期的日历文件
// GET /api/v1/periods/:id/calendar.ics
func (h *ExportHandler) PeriodCalendar(c *gin.Context) {
	id, ok := mustParam(c, "id", "周期ID")
	if !ok {
		return
	}

	data, filename, err := h.calendarSvc.PeriodCalendar(c.Request.Context(), id)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.Attachment(c, contentTypeICS, filename, data)
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 21001, "选题周期不存在")
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 24001, "该选题周期尚无分配结果")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.Error(c, http.StatusInternalServerError, 24002, "生成导出文件失败")
	default:
		response.InternalError(c)
	}
}
