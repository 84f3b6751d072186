package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"project-selector/backend/config"
	"project-selector/backend/internal/api/handler"
	"project-selector/backend/internal/api/middleware"
	"project-selector/backend/internal/api/router"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/scheduler"
	"project-selector/backend/internal/service"
	"project-selector/backend/pkg/database"
	"project-selector/backend/pkg/jwt"
	applogger "project-selector/backend/pkg/logger"
	"project-selector/backend/pkg/metrics"
	"project-selector/backend/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
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
		zap.String("solver_mode", cfg.Solver.Mode),
	)
	if cfg.Solver.BaseURL == "" {
		logger.Warn("未配置 solver.base_url，关闭选题周期时将无法提交求解")
	}

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

	// 4. 连接 Redis（可选：未配置或连接失败时降级运行）
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，限流与回调计数将不可用", zap.Error(err))
			rdb = nil
		}
	}

	// 接口变量只在 Redis 可用时赋值，避免持有 nil 指针的非空接口
	var (
		limiter  middleware.RateLimiter
		recorder service.AttemptRecorder
		attempts handler.AttemptReader
	)
	if rdb != nil {
		limiter, recorder, attempts = rdb, rdb, rdb
	}

	// 5. 指标与 JWT 校验器
	m := metrics.New(prometheus.DefaultRegisterer)
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. 依赖注入: Repository → Scheduler → Service → Handler
	repo := repository.NewRepository(db)
	sched := scheduler.NewTimerScheduler(repo.Timer, &cfg.Scheduler, m, logger)
	svc := service.NewService(cfg, repo, service.Deps{
		Scheduler: sched,
		Recorder:  recorder,
		Metrics:   m,
	}, logger)
	service.RegisterTimerHandlers(sched, svc.Period)

	if err := sched.Start(); err != nil {
		logger.Fatal("定时器调度启动失败", zap.Error(err))
	}

	h := handler.NewHandler(svc, attempts, logger)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, limiter, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	// 同步求解模式下请求会等待求解服务返回，写超时需覆盖求解耗时
	writeTimeout := 15 * time.Second
	if !cfg.Solver.Deferred() && cfg.Solver.RequestTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.Solver.RequestTimeout + 5*time.Second
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 等待进行中的定时器扫描结束；未完成的领取会在租约过期后由下一个实例重新执行
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Warn("等待定时器扫描结束超时")
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Error("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
