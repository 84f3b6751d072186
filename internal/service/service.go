package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"project-selector/backend/config"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/scheduler"
	"project-selector/backend/pkg/metrics"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Period   PeriodService
	Solve    SolveService
	Job      JobService
	Export   ExportService
	Calendar CalendarService
}

// Deps 业务层依赖的外部组件
type Deps struct {
	Scheduler    scheduler.Scheduler
	SolverClient SolverClientFactory // 为 nil 时使用 HTTP 客户端
	Recorder     AttemptRecorder     // 为 nil 时回调计数仅写日志
	Metrics      *metrics.Metrics
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	jobs := NewJobService(repo, deps.Scheduler, deps.Metrics, logger)
	solve := NewSolveService(&cfg.Solver, repo, jobs, deps.SolverClient, deps.Recorder, deps.Metrics, logger)
	return &Service{
		Period:   NewPeriodService(repo, deps.Scheduler, solve, deps.Metrics, logger),
		Solve:    solve,
		Job:      jobs,
		Export:   NewExportService(repo, logger),
		Calendar: NewCalendarService(repo, logger),
	}
}

// businessErrors 可直接返回给调用方的业务错误，不需要记录错误日志
var businessErrors = []error{
	ErrPeriodNotFound,
	ErrPeriodDateFormat,
	ErrPeriodDateInvalid,
	ErrPeriodSettingsInvalid,
	ErrIllegalMutation,
	ErrPeriodHasSelections,
	ErrPeriodNotOpen,
	ErrPeriodNotClosed,
	ErrForceOpenOutsideWindow,
	ErrJobNotFound,
	ErrJobConflict,
	ErrInvalidTransition,
	ErrResultMapping,
	ErrSolveValidation,
	ErrSolverNotConfigured,
	ErrSolverService,
	ErrSolverRejected,
	ErrAssignmentNotFound,
}

func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// 失败收尾（记录任务失败、写入周期失败原因）的超时上限
const settleTimeout = 30 * time.Second

// detached 失败收尾不随调用方取消：客户端断开或处理超时本身就是要记录的失败
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}
