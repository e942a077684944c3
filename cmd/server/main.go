package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fitclub/backend/config"
	"fitclub/backend/internal/api/handler"
	"fitclub/backend/internal/api/router"
	"fitclub/backend/internal/repository"
	"fitclub/backend/internal/scheduler"
	"fitclub/backend/internal/service"
	"fitclub/backend/pkg/database"
	"fitclub/backend/pkg/jwt"
	applogger "fitclub/backend/pkg/logger"
	"fitclub/backend/pkg/redis"
	"fitclub/backend/pkg/telegram"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("FITCLUB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("club_timezone", cfg.Club.Timezone),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 吊销、限流与调度分钟锁将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 初始化 Telegram 消息网关
	gateway, err := telegram.NewGateway(&cfg.Telegram, logger)
	if err != nil {
		logger.Fatal("Telegram 网关初始化失败", zap.Error(err))
	}
	if !gateway.Enabled() && cfg.Dispatcher.Enabled {
		logger.Warn("通知调度已启用但 Telegram 网关不可用，所有提醒将记为发送失败")
	}

	// 7. 依赖注入: Repository → Service → Scheduler → Handler
	clock := clockwork.NewRealClock()
	repo := repository.NewRepository(db)
	svc, err := service.NewService(cfg, repo, gateway, clock, logger)
	if err != nil {
		logger.Fatal("初始化业务层失败", zap.Error(err))
	}

	var (
		locker  scheduler.TickLocker
		revoker handler.TokenRevoker
	)
	if rdb != nil {
		locker = rdb
		revoker = rdb
	}
	sched := scheduler.New(&cfg.Dispatcher, svc.Dispatcher, locker, clock, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("通知调度启动失败", zap.Error(err))
	}

	h := handler.NewHandler(svc, sched, revoker)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的调度结束
	sched.Stop()

	// 关闭数据库连接
	if sqlDB != nil {
		sqlDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
