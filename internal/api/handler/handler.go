package handler

import "fitclub/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Training   *TrainingHandler
	Calendar   *CalendarHandler
	Export     *ExportHandler
	Dispatcher *DispatcherHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, runner DispatcherRunner, revoker TokenRevoker) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(revoker),
		Training:   NewTrainingHandler(svc.Training),
		Calendar:   NewCalendarHandler(svc.Calendar),
		Export:     NewExportHandler(svc.Export),
		Dispatcher: NewDispatcherHandler(runner),
	}
}
