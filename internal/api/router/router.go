package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitclub/backend/config"
	"fitclub/backend/internal/api/handler"
	"fitclub/backend/internal/api/middleware"
	"fitclub/backend/internal/model"
	"fitclub/backend/pkg/jwt"
	"fitclub/backend/pkg/redis"
)

const (
	maxBodyBytes = 1 << 20
	joinLimit    = 20
	joinWindow   = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不做 Token 吊销检查与限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist = rdb
		limiter = rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
	{
		// 认证模块
		authorized.GET("/auth/me", h.Auth.Me)
		authorized.POST("/auth/logout", h.Auth.Logout)

		// 训练模块
		trainings := authorized.Group("/trainings")
		{
			trainings.GET("", h.Training.ListTrainings)
			trainings.GET("/calendar.ics", h.Calendar.Feed)
			trainings.GET("/:id", h.Training.GetTraining)
			trainings.POST("", middleware.RoleAuth(model.RoleTrainer, model.RoleAdmin), h.Training.CreateTraining)
			// 修改与删除仅限开课教练（Service 层鉴权）
			trainings.PUT("/:id", h.Training.UpdateTraining)
			trainings.DELETE("/:id", h.Training.DeleteTraining)
			trainings.POST("/:id/join", middleware.RateLimit(limiter, joinLimit, joinWindow), h.Training.JoinTraining)
			trainings.DELETE("/:id/join", h.Training.LeaveTraining)
			trainings.GET("/:id/participants", h.Training.ListParticipants)
			trainings.GET("/:id/roster.xlsx", h.Export.ExportRoster)
		}

		// 管理模块
		admin := authorized.Group("/admin", middleware.RoleAuth(model.RoleAdmin))
		{
			admin.POST("/dispatcher/run", h.Dispatcher.Run)
		}
	}

	return r
}
