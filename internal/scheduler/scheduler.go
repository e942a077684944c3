package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	"fitclub/backend/config"
	"fitclub/backend/internal/service"
)

var (
	ErrTickSkipped = errors.New("上一次调度仍在执行，本次跳过")
	ErrTickLocked  = errors.New("本分钟调度已由其他实例执行")
)

// tickTimeout 单次调度的最长执行时间，须小于触发间隔
const tickTimeout = 50 * time.Second

// TickLocker 多实例部署时的分钟级互斥锁
type TickLocker interface {
	AcquireTickLock(ctx context.Context, minute time.Time, ttl time.Duration) (bool, error)
}

// Scheduler 按 cron 表达式周期触发通知调度
//
// 同一进程内调度不会重叠；配置了 TickLocker 时，同一分钟只有一个实例执行。
type Scheduler struct {
	cfg        *config.DispatcherConfig
	dispatcher service.NotificationDispatcher
	locker     TickLocker
	clock      clockwork.Clock
	logger     *zap.Logger

	cron    *cron.Cron
	running sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// New 创建 Scheduler；locker 可为 nil（单实例部署）
func New(cfg *config.DispatcherConfig, dispatcher service.NotificationDispatcher, locker TickLocker, clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:        cfg,
		dispatcher: dispatcher,
		locker:     locker,
		clock:      clock,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 注册 cron 任务并开始调度
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("通知调度已禁用")
		return nil
	}

	c := cron.New()
	if err := c.AddFunc(s.cfg.CronSpec, s.runScheduled); err != nil {
		return fmt.Errorf("注册调度任务失败: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("通知调度已启动", zap.String("cron_spec", s.cfg.CronSpec), zap.Bool("distributed_lock", s.locker != nil))
	return nil
}

// Stop 停止触发并等待进行中的调度结束
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cancel()

	s.running.Lock()
	defer s.running.Unlock()
	s.logger.Info("通知调度已停止")
}

// RunOnce 立即执行一次调度（管理员手动触发），不经过分钟锁
// 不随调用方取消，执行时间受 tickTimeout 约束
func (s *Scheduler) RunOnce(ctx context.Context) (*service.TickReport, error) {
	if !s.running.TryLock() {
		return nil, ErrTickSkipped
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tickTimeout)
	defer cancel()

	return s.dispatcher.Tick(ctx)
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(s.ctx, tickTimeout)
	defer cancel()

	if _, err := s.runLocked(ctx); err != nil {
		switch {
		case errors.Is(err, ErrTickSkipped), errors.Is(err, ErrTickLocked):
			s.logger.Debug("跳过本次调度", zap.Error(err))
		default:
			s.logger.Error("定时调度失败", zap.Error(err))
		}
	}
}

// runLocked 获取分钟锁后执行；Redis 不可用时降级为仅进程内互斥
func (s *Scheduler) runLocked(ctx context.Context) (*service.TickReport, error) {
	if !s.running.TryLock() {
		return nil, ErrTickSkipped
	}
	defer s.running.Unlock()

	if s.locker != nil {
		minute := s.clock.Now().Truncate(time.Minute)
		acquired, err := s.locker.AcquireTickLock(ctx, minute, s.cfg.LockTTL)
		switch {
		case err != nil:
			s.logger.Warn("获取调度锁失败，降级为本实例执行", zap.Error(err))
		case !acquired:
			return nil, ErrTickLocked
		}
	}

	return s.dispatcher.Tick(ctx)
}
