package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fitclub/backend/internal/dto"
	"fitclub/backend/internal/service"
	"fitclub/backend/pkg/response"
)

// TrainingHandler 训练预约模块 HTTP 处理器
type TrainingHandler struct {
	trainingSvc service.TrainingService
}

// NewTrainingHandler 创建 TrainingHandler
func NewTrainingHandler(trainingSvc service.TrainingService) *TrainingHandler {
	return &TrainingHandler{trainingSvc: trainingSvc}
}

// ListTrainings 按月列出训练
// GET /api/v1/trainings?month=2025-03
func (h *TrainingHandler) ListTrainings(c *gin.Context) {
	var req dto.TrainingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.trainingSvc.List(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OKList(c, list)
}

// GetTraining 获取训练详情
// GET /api/v1/trainings/:id
func (h *TrainingHandler) GetTraining(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	view, err := h.trainingSvc.Get(c.Request.Context(), id, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OK(c, view)
}

// CreateTraining 创建训练
// POST /api/v1/trainings
func (h *TrainingHandler) CreateTraining(c *gin.Context) {
	var req dto.CreateTrainingRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	view, err := h.trainingSvc.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.Created(c, view)
}

// UpdateTraining 更新训练（仅开课教练）
// PUT /api/v1/trainings/:id
func (h *TrainingHandler) UpdateTraining(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateTrainingRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	view, err := h.trainingSvc.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OK(c, view)
}

// DeleteTraining 删除训练及其报名（仅开课教练）
// DELETE /api/v1/trainings/:id
func (h *TrainingHandler) DeleteTraining(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.trainingSvc.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OK(c, nil)
}

// JoinTraining 报名训练（重复报名幂等）
// POST /api/v1/trainings/:id/join
func (h *TrainingHandler) JoinTraining(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	view, err := h.trainingSvc.Join(c.Request.Context(), id, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OK(c, view)
}

// LeaveTraining 取消报名
// DELETE /api/v1/trainings/:id/join
func (h *TrainingHandler) LeaveTraining(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.trainingSvc.Leave(c.Request.Context(), id, userID); err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OK(c, nil)
}

// ListParticipants 参与者列表（仅开课教练）
// GET /api/v1/trainings/:id/participants
func (h *TrainingHandler) ListParticipants(c *gin.Context) {
	id, ok := trainingIDParam(c)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.trainingSvc.Participants(c.Request.Context(), id, userID)
	if err != nil {
		h.handleTrainingError(c, err)
		return
	}

	response.OKList(c, list)
}

// handleTrainingError 将训练模块业务错误映射为 HTTP 响应
func (h *TrainingHandler) handleTrainingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidMonth),
		errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, service.ErrInvalidMeetingLink),
		errors.Is(err, service.ErrInvalidCapacity),
		errors.Is(err, service.ErrInvalidTitle):
		response.BadRequest(c, 20001, err.Error())
	case errors.Is(err, service.ErrTrainingNotFound):
		response.NotFound(c, 20002, "训练不存在")
	case errors.Is(err, service.ErrNotTrainer):
		response.Forbidden(c, 20003, "仅教练可以创建训练")
	case errors.Is(err, service.ErrSlotConflict):
		response.Conflict(c, 20004, "该日期与开始时间已有训练")
	case errors.Is(err, service.ErrNotTrainingOwner):
		response.Forbidden(c, 20005, "只有开课教练可以操作该训练")
	case errors.Is(err, service.ErrTrainingAlreadyPast):
		response.BadRequest(c, 20006, "训练已结束，无法报名")
	case errors.Is(err, service.ErrTrainingFull):
		response.Conflict(c, 20007, "训练名额已满")
	case errors.Is(err, service.ErrSignupNotFound):
		response.NotFound(c, 20008, "未报名该训练")
	case errors.Is(err, service.ErrCapacityBelowSignups):
		response.BadRequest(c, 20009, "名额不能少于已报名人数")
	default:
		response.InternalError(c)
	}
}
