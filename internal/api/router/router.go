package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"project-selector/backend/config"
	"project-selector/backend/internal/api/handler"
	"project-selector/backend/internal/api/middleware"
	"project-selector/backend/internal/dto"
	"project-selector/backend/pkg/jwt"
)

const (
	apiBodyLimit      = 1 << 20  // 1MB
	callbackBodyLimit = 16 << 20 // 回调携带全部学生的分配结果

	callbackRateLimit = 120
	adminRateLimit    = 60
	rateWindow        = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, limiter middleware.RateLimiter, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── 求解服务回调（无需 JWT，依靠签名校验） ──
	r.POST(config.CallbackPath,
		middleware.BodyLimit(callbackBodyLimit),
		middleware.RateLimit(limiter, callbackRateLimit, rateWindow, logger),
		h.Callback.ReceiveResult,
	)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.BodyLimit(apiBodyLimit))
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		manage := middleware.RoleAuth(middleware.RoleAdmin, middleware.RoleTeacher)
		throttle := middleware.RateLimit(limiter, adminRateLimit, rateWindow, logger)

		// 选题周期模块
		periods := v1.Group("/periods")
		{
			periods.GET("", h.Period.ListPeriods)
			periods.GET("/:id", h.Period.GetPeriod)
			periods.GET("/:id/calendar.ics", h.Export.PeriodCalendar)

			periods.POST("", manage, throttle, h.Period.CreatePeriod)
			periods.PUT("/:id", manage, throttle, h.Period.UpdatePeriod)
			periods.DELETE("/:id", manage, throttle, h.Period.DeletePeriod)
			periods.POST("/:id/open", manage, throttle, h.Period.OpenPeriod)
			periods.POST("/:id/close", manage, throttle, h.Period.ClosePeriod)
			periods.POST("/:id/solve", manage, throttle, h.Period.SolvePeriod)
			periods.GET("/:id/jobs", manage, h.Job.ListPeriodJobs)
			periods.GET("/:id/assignment", manage, h.Period.GetAssignment)
			periods.GET("/:id/assignment/export", manage, h.Export.ExportAssignment)
		}

		// 求解任务模块
		jobs := v1.Group("/jobs")
		{
			jobs.GET("/:id", manage, h.Job.GetJob)
			jobs.POST("/:id/fail", manage, throttle, h.Job.FailJob)
		}
	}

	return r
}
