package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fitclub/backend/config"
	"fitclub/backend/internal/repository"
	"fitclub/backend/pkg/telegram"
)

// MessageGateway 外发消息网关
// 返回 false 表示投递失败；调用方不重试
type MessageGateway interface {
	Send(ctx context.Context, handle string, msg telegram.Message) bool
}

// Service 所有 Service 的聚合入口
type Service struct {
	Training   TrainingService
	Dispatcher NotificationDispatcher
	Calendar   CalendarService
	Export     ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	gateway MessageGateway,
	clock clockwork.Clock,
	logger *zap.Logger,
) (*Service, error) {
	loc, err := cfg.Club.Location()
	if err != nil {
		return nil, fmt.Errorf("加载俱乐部时区失败: %w", err)
	}

	return &Service{
		Training:   NewTrainingService(repo, clock, loc, logger),
		Dispatcher: NewNotificationDispatcher(repo, gateway, clock, loc, &cfg.Dispatcher, cfg.Club.PublicBaseURL, logger),
		Calendar:   NewCalendarService(repo, clock, loc, cfg.Club.PublicBaseURL, logger),
		Export:     NewExportService(repo, loc, logger),
	}, nil
}
