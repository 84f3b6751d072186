package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/lifecycle"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/scheduler"
	"project-selector/backend/internal/solver"
	"project-selector/backend/pkg/metrics"
)

// ── 选题周期模块业务错误 ──

var (
	ErrPeriodNotFound         = errors.New("选题周期不存在")
	ErrPeriodDateFormat       = errors.New("时间格式错误，应为 RFC3339")
	ErrPeriodDateInvalid      = errors.New("开放时间必须早于关闭时间")
	ErrPeriodSettingsInvalid  = errors.New("求解参数不合法")
	ErrIllegalMutation        = errors.New("已完成分配的选题周期不能再修改")
	ErrPeriodHasSelections    = errors.New("该学期已有学生提交志愿，不能删除选题周期")
	ErrPeriodNotOpen          = errors.New("选题周期尚未开放")
	ErrPeriodNotClosed        = errors.New("选题周期尚未关闭")
	ErrForceOpenOutsideWindow = errors.New("当前时间不在开放时间与关闭时间之间")
)

// 定时器参数键
const argPeriodID = "period_id"

// closeTrigger 关闭流程的发起方
type closeTrigger int

const (
	closeByTimer    closeTrigger = iota // 关闭定时器到期
	closeByOperator                     // 人工提前关闭，或对已关闭周期重新求解
	closeByRetry                        // 仅对已关闭周期重新求解
)

// PeriodService 选题周期业务接口
type PeriodService interface {
	Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	GetByID(ctx context.Context, id string) (*dto.PeriodResponse, error)
	List(ctx context.Context, req *dto.ListPeriodsRequest) ([]dto.PeriodResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	Delete(ctx context.Context, id string, callerID string) error
	ForceOpen(ctx context.Context, id string, callerID string) (*dto.PeriodResponse, error)
	ForceClose(ctx context.Context, id string, callerID string) (*dto.SolveResponse, error)
	Solve(ctx context.Context, id string, callerID string) (*dto.SolveResponse, error)
	GetAssignment(ctx context.Context, id string) (*dto.AssignmentResponse, error)

	OnOpenTimerFired(ctx context.Context, id string) error
	OnCloseTimerFired(ctx context.Context, id string) error
}

type periodService struct {
	repo      *repository.Repository
	scheduler scheduler.Scheduler
	solve     SolveService
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, sched scheduler.Scheduler, solve SolveService, m *metrics.Metrics, logger *zap.Logger) PeriodService {
	return &periodService{
		repo:      repo,
		scheduler: sched,
		solve:     solve,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterTimerHandlers 将周期的开放/关闭处理器注册到调度器
func RegisterTimerHandlers(r scheduler.Registrar, p PeriodService) {
	r.Register(lifecycle.HandlerOpen, func(ctx context.Context, args scheduler.Args) error {
		return p.OnOpenTimerFired(ctx, args[argPeriodID])
	})
	r.Register(lifecycle.HandlerClose, func(ctx context.Context, args scheduler.Args) error {
		return p.OnCloseTimerFired(ctx, args[argPeriodID])
	})
}

// ────────────────────── Create ──────────────────────

func (s *periodService) Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	openDate, err := parseTime(req.OpenDate)
	if err != nil {
		return nil, err
	}
	closeDate, err := parseTime(req.CloseDate)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateWindow(openDate, closeDate); err != nil {
		return nil, ErrPeriodDateInvalid
	}

	period := &model.SelectionPeriod{
		PeriodID:        uuid.NewString(),
		SemesterID:      req.SemesterID,
		Title:           req.Title,
		Description:     req.Description,
		OpenDate:        openDate,
		CloseDate:       closeDate,
		RankingsEnabled: true,
	}
	if err := applySettings(period, &req.PeriodSettings); err != nil {
		return nil, err
	}
	period.CreatedBy = &callerID
	period.UpdatedBy = &callerID

	lc, err := s.install(ctx, period.PeriodID, openDate, closeDate)
	if err != nil {
		s.logger.Error("挂载周期定时器失败", zap.String("period_id", period.PeriodID), zap.Error(err))
		return nil, err
	}
	lifecycle.Apply(period, lc)

	if err := s.repo.Period.Create(ctx, period); err != nil {
		s.cancelHeld(ctx, lc)
		s.logger.Error("创建选题周期失败", zap.Error(err))
		return nil, err
	}

	s.metrics.PeriodTransition(period.State)
	return toPeriodResponse(period), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *periodService) GetByID(ctx context.Context, id string) (*dto.PeriodResponse, error) {
	period, err := s.getPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPeriodResponse(period), nil
}

// ────────────────────── List ──────────────────────

func (s *periodService) List(ctx context.Context, req *dto.ListPeriodsRequest) ([]dto.PeriodResponse, int64, error) {
	periods, total, err := s.repo.Period.List(ctx, req.SemesterID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出选题周期失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		result = append(result, *toPeriodResponse(&periods[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *periodService) Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	var (
		updated   *model.SelectionPeriod
		installed lifecycle.Lifecycle
		retired   lifecycle.Lifecycle
	)

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := lc.(lifecycle.Assigned); ok {
			return ErrIllegalMutation
		}

		openDate, closeDate := period.OpenDate, period.CloseDate
		if req.OpenDate != nil {
			if openDate, err = parseTime(*req.OpenDate); err != nil {
				return err
			}
		}
		if req.CloseDate != nil {
			if closeDate, err = parseTime(*req.CloseDate); err != nil {
				return err
			}
		}
		if err := lifecycle.ValidateWindow(openDate, closeDate); err != nil {
			return ErrPeriodDateInvalid
		}

		if req.Title != nil {
			period.Title = *req.Title
		}
		if req.Description != nil {
			period.Description = *req.Description
		}
		if err := applySettings(period, &req.PeriodSettings); err != nil {
			return err
		}

		// 按新日期重新推导状态；旧定时器在提交后取消
		next, err := s.install(ctx, period.PeriodID, openDate, closeDate)
		if err != nil {
			return err
		}
		installed = next

		// 仍处于关闭状态时保留关闭时间与最近一次失败原因
		if prev, ok := lc.(lifecycle.Closed); ok {
			if nc, ok := next.(lifecycle.Closed); ok {
				nc.Failure = prev.Failure
				if !prev.Since.IsZero() {
					nc.Since = prev.Since
				}
				next = nc
			}
		}

		period.OpenDate, period.CloseDate = openDate, closeDate
		lifecycle.Apply(period, next)
		period.UpdatedBy = &callerID
		if err := tx.Period.Update(ctx, period); err != nil {
			return err
		}
		updated, retired = period, lc
		return nil
	})
	if err != nil {
		// 回滚后周期仍指向旧定时器，只撤销新挂载的
		s.cancelHeld(ctx, installed)
		return nil, s.logFailure("更新选题周期失败", id, err)
	}
	s.cancelHeld(ctx, retired)

	s.metrics.PeriodTransition(updated.State)
	return toPeriodResponse(updated), nil
}

// ────────────────────── Delete ──────────────────────

func (s *periodService) Delete(ctx context.Context, id string, callerID string) error {
	var held lifecycle.Lifecycle

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := lc.(lifecycle.Assigned); ok {
			return ErrIllegalMutation
		}

		count, err := tx.Preference.CountBySemester(ctx, period.SemesterID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrPeriodHasSelections
		}

		held = lc
		return tx.Period.Delete(ctx, id)
	})
	if err != nil {
		return s.logFailure("删除选题周期失败", id, err)
	}

	// 定时器在删除提交后取消，漏网的触发会因周期不存在而成为空操作
	s.cancelHeld(ctx, held)
	s.logger.Info("删除选题周期", zap.String("period_id", id), zap.String("operator", callerID))
	return nil
}

// ────────────────────── ForceOpen ──────────────────────

func (s *periodService) ForceOpen(ctx context.Context, id string, callerID string) (*dto.PeriodResponse, error) {
	var (
		result    *model.SelectionPeriod
		installed lifecycle.Lifecycle
		retired   lifecycle.Lifecycle
	)

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		result = period

		switch lc.(type) {
		case lifecycle.Assigned:
			return ErrIllegalMutation
		case lifecycle.Open:
			return nil
		case lifecycle.Closed:
			if _, err := tx.DeferredJob.GetPendingByPeriod(ctx, id); err == nil {
				return ErrJobConflict
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if !lifecycle.InWindow(period.OpenDate, period.CloseDate, s.now()) {
			return ErrForceOpenOutsideWindow
		}

		h, err := s.scheduler.ScheduleAt(ctx, period.CloseDate, lifecycle.HandlerClose, scheduler.Args{argPeriodID: id})
		if err != nil {
			return err
		}
		installed = lifecycle.Open{CloseTimer: lifecycle.TimerHandle(h)}

		lifecycle.Apply(period, installed)
		period.UpdatedBy = &callerID
		if err := tx.Period.Update(ctx, period); err != nil {
			return err
		}
		retired = lc
		return nil
	})
	if err != nil {
		s.cancelHeld(ctx, installed)
		return nil, s.logFailure("开放选题周期失败", id, err)
	}

	if retired != nil {
		s.cancelHeld(ctx, retired)
		s.metrics.PeriodTransition(model.PeriodStateOpen)
		s.logger.Info("人工开放选题周期", zap.String("period_id", id), zap.String("operator", callerID))
	}
	return toPeriodResponse(result), nil
}

// ────────────────────── ForceClose / Solve ──────────────────────

func (s *periodService) ForceClose(ctx context.Context, id string, callerID string) (*dto.SolveResponse, error) {
	return s.closeAndSolve(ctx, id, closeByOperator, callerID)
}

func (s *periodService) Solve(ctx context.Context, id string, callerID string) (*dto.SolveResponse, error) {
	return s.closeAndSolve(ctx, id, closeByRetry, callerID)
}

func (s *periodService) closeAndSolve(ctx context.Context, id string, trigger closeTrigger, callerID string) (*dto.SolveResponse, error) {
	if _, err := s.closePeriod(ctx, id, trigger, &callerID); err != nil {
		return nil, s.logFailure("关闭选题周期失败", id, err)
	}

	job, solveErr := s.runSolve(ctx, id)
	if solveErr != nil {
		return nil, solveErr
	}

	period, err := s.getPeriod(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SolveResponse{Period: *toPeriodResponse(period), Job: job}, nil
}

// closePeriod 关闭流程第一阶段：锁行迁移到 closed 并提交
// 返回是否需要继续求解；求解在锁外进行，避免长时间持有行锁
func (s *periodService) closePeriod(ctx context.Context, id string, trigger closeTrigger, callerID *string) (bool, error) {
	proceed := false
	var retired lifecycle.Lifecycle

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now()

		switch v := lc.(type) {
		case lifecycle.Assigned:
			if trigger == closeByTimer {
				return nil
			}
			return ErrIllegalMutation

		case lifecycle.Inactive:
			if trigger == closeByTimer {
				return nil
			}
			if trigger == closeByRetry {
				return ErrPeriodNotClosed
			}
			return ErrPeriodNotOpen

		case lifecycle.Closed:
			if trigger == closeByTimer {
				return nil
			}
			proceed = true
			return nil

		case lifecycle.Open:
			switch trigger {
			case closeByRetry:
				return ErrPeriodNotClosed
			case closeByTimer:
				// 日期被推后后遗留的旧定时器
				if lifecycle.Derive(period.OpenDate, period.CloseDate, now) != lifecycle.StateClosed {
					return nil
				}
			case closeByOperator:
				// 日期始终是状态的依据：提前关闭即把关闭时间拉到当前
				if period.CloseDate.After(now) {
					period.CloseDate = now
				}
			}
			lifecycle.Apply(period, lifecycle.Closed{Since: now})
			period.UpdatedBy = callerID
			if err := tx.Period.Update(ctx, period); err != nil {
				return err
			}
			proceed, retired = true, v
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if retired != nil {
		// 关闭定时器本身正在触发时取消为空操作
		s.cancelHeld(ctx, retired)
		s.metrics.PeriodTransition(model.PeriodStateClosed)
		s.logger.Info("选题周期已关闭", zap.String("period_id", id))
	}
	return proceed, nil
}

// runSolve 提交求解；失败原因记录到周期上供人工查看
func (s *periodService) runSolve(ctx context.Context, id string) (*dto.JobResponse, error) {
	job, err := s.solve.Submit(ctx, id)
	if err == nil {
		return job, nil
	}
	// 已有进行中的任务不算失败，不覆盖周期上的记录
	if !errors.Is(err, ErrJobConflict) {
		sctx, cancel := detached(ctx)
		defer cancel()
		s.recordCloseFailure(sctx, id, err)
	}
	return nil, err
}

// recordCloseFailure 周期仍处于 closed 时写入失败原因
func (s *periodService) recordCloseFailure(ctx context.Context, id string, cause error) {
	reason := cause.Error()
	var se *solver.ServiceError
	if errors.As(cause, &se) {
		reason = se.Error()
	}

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		closed, ok := lc.(lifecycle.Closed)
		if !ok || closed.Failure == reason {
			return nil
		}
		lifecycle.Apply(period, lifecycle.Closed{Failure: reason, Since: closed.Since})
		return tx.Period.Update(ctx, period)
	})
	if err != nil {
		s.logger.Error("记录周期关闭失败原因出错", zap.String("period_id", id), zap.Error(err))
	}
}

// ────────────────────── 定时器处理 ──────────────────────

func (s *periodService) OnOpenTimerFired(ctx context.Context, id string) error {
	var (
		installed lifecycle.Lifecycle
		retired   lifecycle.Lifecycle
		next      string
	)

	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := lc.(lifecycle.Inactive); !ok {
			return nil
		}

		switch lifecycle.Derive(period.OpenDate, period.CloseDate, s.now()) {
		case lifecycle.StateInactive:
			// 开放时间已被推后，旧定时器作废
			return nil
		case lifecycle.StateClosed:
			lifecycle.Apply(period, lifecycle.Closed{Since: s.now()})
		default:
			h, err := s.scheduler.ScheduleAt(ctx, period.CloseDate, lifecycle.HandlerClose, scheduler.Args{argPeriodID: id})
			if err != nil {
				return err
			}
			installed = lifecycle.Open{CloseTimer: lifecycle.TimerHandle(h)}
			lifecycle.Apply(period, installed)
		}

		if err := tx.Period.Update(ctx, period); err != nil {
			return err
		}
		next, retired = period.State, lc
		return nil
	})
	if errors.Is(err, ErrPeriodNotFound) {
		s.logger.Warn("开放定时器对应的周期已不存在", zap.String("period_id", id))
		return nil
	}
	if err != nil {
		s.cancelHeld(ctx, installed)
		s.logger.Error("处理开放定时器失败", zap.String("period_id", id), zap.Error(err))
		return err
	}

	if next != "" {
		s.cancelHeld(ctx, retired)
		s.metrics.PeriodTransition(next)
		s.logger.Info("选题周期状态推进", zap.String("period_id", id), zap.String("state", next))
	}
	return nil
}

func (s *periodService) OnCloseTimerFired(ctx context.Context, id string) error {
	proceed, err := s.closePeriod(ctx, id, closeByTimer, nil)
	if errors.Is(err, ErrPeriodNotFound) {
		s.logger.Warn("关闭定时器对应的周期已不存在", zap.String("period_id", id))
		return nil
	}
	if err != nil {
		// 基础设施错误交给调度器重试
		s.logger.Error("处理关闭定时器失败", zap.String("period_id", id), zap.Error(err))
		return err
	}
	if !proceed {
		return nil
	}

	// 定时器路径不自动重试求解，失败原因已记录在周期上
	if _, err := s.runSolve(ctx, id); err != nil {
		s.logger.Warn("自动分配未完成，等待人工处理", zap.String("period_id", id), zap.Error(err))
	}
	return nil
}

// ────────────────────── GetAssignment ──────────────────────

func (s *periodService) GetAssignment(ctx context.Context, id string) (*dto.AssignmentResponse, error) {
	view, err := loadAssignment(ctx, s.repo, id)
	if err != nil {
		return nil, s.logFailure("查询分配结果失败", id, err)
	}

	resp := &dto.AssignmentResponse{
		BatchID:   view.batch.BatchID,
		PeriodID:  view.period.PeriodID,
		JobID:     view.batch.JobID,
		CreatedAt: view.batch.CreatedAt.Format(time.RFC3339),
		Items:     make([]dto.AssignmentItemResponse, 0, len(view.batch.Items)),
	}
	for _, item := range view.batch.Items {
		resp.Items = append(resp.Items, dto.AssignmentItemResponse{
			StudentID:  item.StudentID,
			TopicID:    item.TopicID,
			TopicTitle: view.topicTitles[item.TopicID],
			Rank:       item.Rank,
		})
	}
	return resp, nil
}

// ────────────────────── 内部方法 ──────────────────────

// install 按 (日期, 当前时间) 推导状态并挂载对应定时器
func (s *periodService) install(ctx context.Context, id string, openDate, closeDate time.Time) (lifecycle.Lifecycle, error) {
	now := s.now()
	state := lifecycle.Derive(openDate, closeDate, now)
	plan, ok := lifecycle.PlanTimer(state, openDate, closeDate)
	if !ok {
		return lifecycle.Closed{Since: now}, nil
	}

	h, err := s.scheduler.ScheduleAt(ctx, plan.At, plan.Handler, scheduler.Args{argPeriodID: id})
	if err != nil {
		return nil, err
	}
	handle := lifecycle.TimerHandle(h)
	if state == lifecycle.StateOpen {
		return lifecycle.Open{CloseTimer: handle}, nil
	}
	return lifecycle.Inactive{OpenTimer: &handle}, nil
}

// cancelTimer 取消变体持有的定时器
func (s *periodService) cancelTimer(ctx context.Context, lc lifecycle.Lifecycle) error {
	if h, ok := lifecycle.HeldTimer(lc); ok {
		return s.scheduler.Cancel(ctx, scheduler.Handle(h))
	}
	return nil
}

// cancelHeld 提交后或补偿路径上的取消，失败只记录日志
func (s *periodService) cancelHeld(ctx context.Context, lc lifecycle.Lifecycle) {
	if lc == nil {
		return
	}
	if err := s.cancelTimer(ctx, lc); err != nil {
		s.logger.Warn("取消周期定时器失败", zap.Error(err))
	}
}

func (s *periodService) getPeriod(ctx context.Context, id string) (*model.SelectionPeriod, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询选题周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return period, nil
}

// logFailure 业务错误原样返回，其余错误记录日志
func (s *periodService) logFailure(msg, id string, err error) error {
	if isBusinessError(err) {
		return err
	}
	s.logger.Error(msg, zap.String("period_id", id), zap.Error(err))
	return err
}

// lockPeriod 在事务内锁定周期行并还原生命周期
func lockPeriod(ctx context.Context, tx *repository.Repository, id string) (*model.SelectionPeriod, lifecycle.Lifecycle, error) {
	period, err := tx.Period.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPeriodNotFound
		}
		return nil, nil, err
	}
	lc, err := lifecycle.FromModel(period)
	if err != nil {
		return nil, nil, err
	}
	return period, lc, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrPeriodDateFormat
	}
	return t.UTC(), nil
}

// applySettings 写入求解参数，nil 字段表示不修改
func applySettings(p *model.SelectionPeriod, in *dto.PeriodSettings) error {
	if in.RankingsEnabled != nil {
		p.RankingsEnabled = *in.RankingsEnabled
	}
	if in.RankingPercentage != nil {
		v := *in.RankingPercentage
		p.RankingPercentage = &v
	}
	if in.MaxTimeSeconds != nil {
		v := *in.MaxTimeSeconds
		p.MaxTimeSeconds = &v
	}
	if in.GroupSizes != nil {
		for _, size := range in.GroupSizes {
			if size < 0 {
				return ErrPeriodSettingsInvalid
			}
		}
		if err := p.SetGroupSizes(in.GroupSizes); err != nil {
			return err
		}
	}
	if in.MinimizeCategoryIDs != nil {
		p.MinimizeCategory = in.MinimizeCategoryIDs
	}
	if in.StudentIDs != nil {
		p.StudentIDs = in.StudentIDs
	}
	return nil
}

func toPeriodResponse(p *model.SelectionPeriod) *dto.PeriodResponse {
	resp := &dto.PeriodResponse{
		ID:                  p.PeriodID,
		SemesterID:          p.SemesterID,
		Title:               p.Title,
		Description:         p.Description,
		OpenDate:            p.OpenDate.Format(time.RFC3339),
		CloseDate:           p.CloseDate.Format(time.RFC3339),
		State:               p.State,
		HasTimer:            p.TimerID != nil,
		AssignmentBatchID:   derefString(p.AssignmentBatchID),
		CloseError:          p.CloseError,
		RankingsEnabled:     p.RankingsEnabled,
		RankingPercentage:   p.RankingPercentage,
		MaxTimeSeconds:      p.MaxTimeSeconds,
		MinimizeCategoryIDs: nonNil(p.MinimizeCategory),
		StudentIDs:          nonNil(p.StudentIDs),
		Version:             p.Version,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           p.UpdatedAt.Format(time.RFC3339),
	}
	if p.ClosedAt != nil {
		resp.ClosedAt = p.ClosedAt.Format(time.RFC3339)
	}
	if sizes, err := p.GroupSizeMap(); err == nil && len(sizes) > 0 {
		resp.GroupSizes = sizes
	}
	return resp
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
