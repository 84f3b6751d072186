// Package scheduler 在指定时间点触发已注册的处理器。
//
// 定时器持久化在 scheduled_timers 表中，由 cron 周期扫描领取到期项：
//   - 不会早于 fire_at 触发
//   - 至少触发一次：执行者失联后租约过期，定时器会被重新领取
//   - 处理器需自行保证幂等，重复或过期的触发应当是空操作
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"project-selector/backend/config"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
	"project-selector/backend/pkg/metrics"
)

// Handle 定时器句柄
type Handle string

// Args 处理器参数
type Args map[string]string

// HandlerFunc 定时器处理器，返回错误时定时器放回队列等待重试
type HandlerFunc func(ctx context.Context, args Args) error

// Scheduler 定时调度接口
type Scheduler interface {
	ScheduleAt(ctx context.Context, at time.Time, handler string, args Args) (Handle, error)
	// Cancel 幂等，取消不存在或已触发的定时器不报错
	Cancel(ctx context.Context, h Handle) error
}

// Registrar 处理器注册接口
type Registrar interface {
	Register(handler string, fn HandlerFunc)
}

var ErrUnknownHandler = errors.New("未注册的定时器处理器")

const (
	// 单次扫描的最长执行时间
	handlerTimeout = 15 * time.Minute
	// 处理器连续失败达到该次数后放弃
	maxAttempts = 10
)

// TimerScheduler 基于数据库与 cron 扫描的 Scheduler 实现
type TimerScheduler struct {
	repo      repository.TimerRepository
	cron      *cron.Cron
	spec      string
	lease     time.Duration
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

var (
	_ Scheduler = (*TimerScheduler)(nil)
	_ Registrar = (*TimerScheduler)(nil)
)

// NewTimerScheduler 创建调度器，需调用 Start 才开始扫描
func NewTimerScheduler(repo repository.TimerRepository, cfg *config.SchedulerConfig, m *metrics.Metrics, logger *zap.Logger) *TimerScheduler {
	lease := cfg.Lease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}

	cl := cronLogger{logger: logger.Named("cron")}
	return &TimerScheduler{
		repo:      repo,
		cron:      cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		spec:      cfg.SweepSpec,
		lease:     lease,
		batchSize: batch,
		now:       time.Now,
		logger:    logger,
		metrics:   m,
		handlers:  make(map[string]HandlerFunc),
	}
}

// Register 注册处理器，同名覆盖
func (s *TimerScheduler) Register(handler string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[handler] = fn
}

// ScheduleAt 持久化一个定时器
func (s *TimerScheduler) ScheduleAt(ctx context.Context, at time.Time, handler string, args Args) (Handle, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("序列化定时器参数失败: %w", err)
	}

	timer := &model.ScheduledTimer{
		TimerID: uuid.NewString(),
		Handler: handler,
		Args:    datatypes.JSON(raw),
		FireAt:  at,
		Status:  model.TimerStatusScheduled,
	}
	if err := s.repo.Create(ctx, timer); err != nil {
		return "", fmt.Errorf("创建定时器失败: %w", err)
	}

	s.logger.Debug("定时器已创建",
		zap.String("timer_id", timer.TimerID),
		zap.String("handler", handler),
		zap.Time("fire_at", at),
	)
	return Handle(timer.TimerID), nil
}

// Cancel 取消定时器
func (s *TimerScheduler) Cancel(ctx context.Context, h Handle) error {
	if h == "" {
		return nil
	}
	if err := s.repo.Cancel(ctx, string(h)); err != nil {
		return fmt.Errorf("取消定时器失败: %w", err)
	}
	return nil
}

// Start 启动周期扫描
func (s *TimerScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("注册定时扫描失败: %w", err)
	}
	s.cron.Start()
	s.logger.Info("定时器调度已启动", zap.String("spec", s.spec), zap.Duration("lease", s.lease))
	return nil
}

// Stop 停止扫描，返回的 context 在进行中的扫描结束后关闭
func (s *TimerScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Sweep 领取并执行一批到期定时器，返回成功执行的数量
func (s *TimerScheduler) Sweep(ctx context.Context) int {
	due, err := s.repo.ClaimDue(ctx, s.now(), s.lease, s.batchSize)
	if err != nil {
		s.logger.Error("领取到期定时器失败", zap.Error(err))
		return 0
	}

	fired := 0
	for i := range due {
		if s.dispatch(ctx, &due[i]) {
			fired++
		}
	}
	return fired
}

func (s *TimerScheduler) dispatch(ctx context.Context, timer *model.ScheduledTimer) bool {
	log := s.logger.With(
		zap.String("timer_id", timer.TimerID),
		zap.String("handler", timer.Handler),
		zap.Int("attempt", timer.Attempts),
	)

	s.mu.RLock()
	fn, ok := s.handlers[timer.Handler]
	s.mu.RUnlock()
	if !ok {
		log.Error("定时器处理器未注册")
		s.release(ctx, timer, ErrUnknownHandler.Error())
		s.metrics.TimerFired(timer.Handler, "unknown")
		return false
	}

	args := Args{}
	if len(timer.Args) > 0 {
		if err := json.Unmarshal(timer.Args, &args); err != nil {
			log.Error("定时器参数解析失败，放弃执行", zap.Error(err))
			s.markFired(ctx, timer)
			s.metrics.TimerFired(timer.Handler, "bad_args")
			return false
		}
	}

	if err := fn(ctx, args); err != nil {
		s.metrics.TimerFired(timer.Handler, "error")
		if timer.Attempts >= maxAttempts {
			log.Error("定时器多次处理失败，放弃执行", zap.Error(err))
			s.markFired(ctx, timer)
			return false
		}
		log.Warn("定时器处理失败，等待下次扫描重试", zap.Error(err))
		s.release(ctx, timer, err.Error())
		return false
	}

	s.markFired(ctx, timer)
	s.metrics.TimerFired(timer.Handler, "ok")
	log.Info("定时器已触发")
	return true
}

func (s *TimerScheduler) markFired(ctx context.Context, timer *model.ScheduledTimer) {
	if err := s.repo.MarkFired(ctx, timer.TimerID, s.now()); err != nil {
		s.logger.Error("标记定时器已触发失败", zap.String("timer_id", timer.TimerID), zap.Error(err))
	}
}

func (s *TimerScheduler) release(ctx context.Context, timer *model.ScheduledTimer, reason string) {
	if err := s.repo.Release(ctx, timer.TimerID, reason); err != nil {
		s.logger.Error("释放定时器失败", zap.String("timer_id", timer.TimerID), zap.Error(err))
	}
}

// cronLogger 将 cron 内部日志转接到 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
