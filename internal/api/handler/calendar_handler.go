package handler

import (
	"github.com/gin-gonic/gin"

	"fitclub/backend/internal/service"
	"fitclub/backend/pkg/response"
)

// CalendarHandler 日历订阅 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Feed 当前用户的训练日历
// GET /api/v1/trainings/calendar.ics
func (h *CalendarHandler) Feed(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	body, err := h.calendarSvc.Feed(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.File(c, "text/calendar; charset=utf-8", "fitclub.ics", body)
}
