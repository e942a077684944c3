package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"fitclub/backend/internal/service"
	"fitclub/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRoster 导出参与者名单
// GET /api/v1/trainings/:id/roster.xlsx
func (h *ExportHandler) ExportRoster(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportRoster(c.Request.Context(), id, userID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	response.File(c, xlsxContentType, filename, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTrainingNotFound):
		response.NotFound(c, 20002, "训练不存在")
	case errors.Is(err, service.ErrNotTrainingOwner):
		response.Forbidden(c, 20005, "只有开课教练可以导出名单")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
