package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fitclub/backend/internal/dto"
	"fitclub/backend/internal/scheduler"
	"fitclub/backend/internal/service"
	"fitclub/backend/pkg/response"
)

// DispatcherRunner 立即执行一次通知调度
type DispatcherRunner interface {
	RunOnce(ctx context.Context) (*service.TickReport, error)
}

// DispatcherHandler 通知调度管理 HTTP 处理器
type DispatcherHandler struct {
	runner DispatcherRunner
}

// NewDispatcherHandler 创建 DispatcherHandler
func NewDispatcherHandler(runner DispatcherRunner) *DispatcherHandler {
	return &DispatcherHandler{runner: runner}
}

// Run 手动触发一次调度（管理员）
// POST /api/v1/admin/dispatcher/run
func (h *DispatcherHandler) Run(c *gin.Context) {
	report, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickSkipped) {
			response.Error(c, http.StatusConflict, 21001, "调度正在执行，请稍后再试")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, toTickReportResponse(report))
}

func toTickReportResponse(r *service.TickReport) *dto.TickReportResponse {
	resp := &dto.TickReportResponse{
		Now:        r.Now.Format(time.RFC3339),
		Counts:     make(map[string]int),
		Deliveries: make([]dto.DeliveryResponse, 0, len(r.Deliveries)),
	}
	for _, d := range r.Deliveries {
		resp.Counts[string(d.Outcome)]++
		resp.Deliveries = append(resp.Deliveries, dto.DeliveryResponse{
			Kind:      string(d.Kind),
			SubjectID: d.SubjectID,
			UserID:    d.UserID,
			Outcome:   string(d.Outcome),
		})
	}
	return resp
}
