package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/lifecycle"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/scheduler"
	"project-selector/backend/internal/solver"
	pkgerrors "project-selector/backend/pkg/errors"
	"project-selector/backend/pkg/metrics"
)

// ── 求解任务模块业务错误 ──

var (
	ErrJobNotFound       = errors.New("求解任务不存在")
	ErrJobConflict       = errors.New("该选题周期已有进行中的求解任务")
	ErrInvalidTransition = errors.New("求解任务已处于另一终态，不能再变更")
	ErrResultMapping     = errors.New("求解结果无法还原为分配方案")
)

// errLostRace 并发终结时本次调用未抢到 pending→终态 的迁移
var errLostRace = errors.New("任务已被其他请求终结")

// NewJob 创建求解任务所需的数据
type NewJob struct {
	PeriodID    string
	Mode        string
	CallbackURL string
	Index       solver.Index
	Request     []byte
}

// JobService 求解任务业务接口
type JobService interface {
	CreateJob(ctx context.Context, in NewJob) (*model.DeferredJob, error)
	MarkCompleted(ctx context.Context, jobID, batchID string) error
	MarkFailed(ctx context.Context, jobID, reason string) error
	// Finalize 落库求解结果并将周期推进到 assigned，返回分配批次 ID
	Finalize(ctx context.Context, jobID string, assignments []solver.Assignment) (string, error)
	GetByID(ctx context.Context, jobID string) (*dto.JobResponse, error)
	ListByPeriod(ctx context.Context, periodID string) ([]dto.JobResponse, error)
	// Fail 人工将卡住的 pending 任务标记为失败
	Fail(ctx context.Context, jobID, reason, callerID string) (*dto.JobResponse, error)
}

type jobService struct {
	repo      *repository.Repository
	scheduler scheduler.Scheduler
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewJobService 创建 JobService 实例
func NewJobService(repo *repository.Repository, sched scheduler.Scheduler, m *metrics.Metrics, logger *zap.Logger) JobService {
	return &jobService{
		repo:      repo,
		scheduler: sched,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ────────────────────── CreateJob ──────────────────────

func (s *jobService) CreateJob(ctx context.Context, in NewJob) (*model.DeferredJob, error) {
	_, err := s.repo.DeferredJob.GetPendingByPeriod(ctx, in.PeriodID)
	if err == nil {
		return nil, ErrJobConflict
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询进行中的求解任务失败", zap.String("period_id", in.PeriodID), zap.Error(err))
		return nil, err
	}

	job := &model.DeferredJob{
		JobID:        uuid.NewString(),
		PeriodID:     in.PeriodID,
		Status:       model.JobStatusPending,
		Mode:         in.Mode,
		CallbackURL:  in.CallbackURL,
		StudentIndex: pq.StringArray(in.Index.Students),
		TopicIndex:   pq.StringArray(in.Index.Topics),
		Request:      datatypes.JSON(in.Request),
	}
	if err := s.repo.DeferredJob.Create(ctx, job); err != nil {
		// 并发提交由部分唯一索引兜底
		if pkgerrors.IsDuplicateKey(err) {
			return nil, ErrJobConflict
		}
		s.logger.Error("创建求解任务失败", zap.String("period_id", in.PeriodID), zap.Error(err))
		return nil, err
	}

	s.metrics.JobTransition(model.JobStatusPending)
	s.logger.Info("创建求解任务",
		zap.String("job_id", job.JobID),
		zap.String("period_id", job.PeriodID),
		zap.String("mode", job.Mode),
		zap.Int("students", len(job.StudentIndex)),
		zap.Int("topics", len(job.TopicIndex)),
	)
	return job, nil
}

// ────────────────────── MarkCompleted ──────────────────────

func (s *jobService) MarkCompleted(ctx context.Context, jobID, batchID string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case model.JobStatusCompleted:
		return nil
	case model.JobStatusFailed:
		return ErrInvalidTransition
	}

	won, err := s.repo.DeferredJob.Transition(ctx, jobID, repository.JobTransition{
		Status:            model.JobStatusCompleted,
		AssignmentBatchID: &batchID,
		At:                s.now(),
	})
	if err != nil {
		s.logger.Error("更新求解任务状态失败", zap.String("job_id", jobID), zap.Error(err))
		return err
	}
	if !won {
		return s.settledAs(ctx, jobID, model.JobStatusCompleted)
	}

	s.metrics.JobTransition(model.JobStatusCompleted)
	return nil
}

// ────────────────────── MarkFailed ──────────────────────

func (s *jobService) MarkFailed(ctx context.Context, jobID, reason string) error {
	return s.fail(ctx, jobID, reason, nil)
}

func (s *jobService) fail(ctx context.Context, jobID, reason string, callerID *string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case model.JobStatusFailed:
		return nil
	case model.JobStatusCompleted:
		return ErrInvalidTransition
	}

	now := s.now()
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		// 先锁周期再改任务，与 Finalize 保持相同的加锁顺序
		period, lc, err := lockPeriod(ctx, tx, job.PeriodID)
		if err != nil {
			return err
		}

		won, err := tx.DeferredJob.Transition(ctx, jobID, repository.JobTransition{
			Status:    model.JobStatusFailed,
			Error:     reason,
			UpdatedBy: callerID,
			At:        now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}

		closed, ok := lc.(lifecycle.Closed)
		if !ok {
			return nil
		}
		lifecycle.Apply(period, lifecycle.Closed{Failure: reason, Since: closed.Since})
		period.UpdatedBy = callerID
		return tx.Period.Update(ctx, period)
	})
	if errors.Is(err, errLostRace) {
		return s.settledAs(ctx, jobID, model.JobStatusFailed)
	}
	if err != nil {
		s.logger.Error("标记求解任务失败时出错", zap.String("job_id", jobID), zap.Error(err))
		return err
	}

	s.metrics.JobTransition(model.JobStatusFailed)
	s.logger.Warn("求解任务失败",
		zap.String("job_id", jobID),
		zap.String("period_id", job.PeriodID),
		zap.String("reason", reason),
	)
	return nil
}

// settledAs 迁移未生效时，按任务的实际终态判断是否与期望一致
func (s *jobService) settledAs(ctx context.Context, jobID, want string) error {
	latest, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if latest.Status == want {
		return nil
	}
	return ErrInvalidTransition
}

// ────────────────────── Finalize ──────────────────────

func (s *jobService) Finalize(ctx context.Context, jobID string, assignments []solver.Assignment) (string, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	switch job.Status {
	case model.JobStatusCompleted:
		return derefString(job.AssignmentBatchID), nil
	case model.JobStatusFailed:
		return "", ErrInvalidTransition
	}

	batchID, held, err := s.persistResult(ctx, job, assignments)
	if err == nil {
		if held != "" {
			if cerr := s.scheduler.Cancel(ctx, scheduler.Handle(held)); cerr != nil {
				s.logger.Warn("取消周期定时器失败", zap.String("period_id", job.PeriodID), zap.Error(cerr))
			}
		}
		s.metrics.JobTransition(model.JobStatusCompleted)
		s.metrics.PeriodTransition(model.PeriodStateAssigned)
		s.logger.Info("分配结果已落库",
			zap.String("job_id", jobID),
			zap.String("period_id", job.PeriodID),
			zap.String("batch_id", batchID),
		)
		return batchID, nil
	}

	if errors.Is(err, errLostRace) {
		latest, gerr := s.getJob(ctx, jobID)
		if gerr != nil {
			return "", gerr
		}
		if latest.Status == model.JobStatusCompleted && latest.AssignmentBatchID != nil {
			return *latest.AssignmentBatchID, nil
		}
		return "", ErrInvalidTransition
	}

	sctx, cancel := detached(ctx)
	defer cancel()
	if ferr := s.MarkFailed(sctx, jobID, err.Error()); ferr != nil {
		s.logger.Error("记录求解任务失败原因出错", zap.String("job_id", jobID), zap.Error(ferr))
	}
	return "", err
}

// persistResult 在一个事务内写入批次、完成任务并推进周期
// 返回周期原先持有的定时器，提交后由调用方取消
func (s *jobService) persistResult(ctx context.Context, job *model.DeferredJob, assignments []solver.Assignment) (string, lifecycle.TimerHandle, error) {
	period, err := s.repo.Period.GetByID(ctx, job.PeriodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrPeriodNotFound
		}
		return "", "", err
	}
	prefs, err := s.repo.Preference.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return "", "", err
	}

	idx := solver.Index{Students: job.StudentIndex, Topics: job.TopicIndex}
	mapped, err := solver.Map(assignments, idx, toPreferenceInputs(prefs))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrResultMapping, err)
	}

	now := s.now()
	batchID := uuid.NewString()
	var held lifecycle.TimerHandle

	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		period, lc, err := lockPeriod(ctx, tx, job.PeriodID)
		if err != nil {
			return err
		}
		if _, ok := lc.(lifecycle.Assigned); ok {
			return ErrIllegalMutation
		}

		won, err := tx.DeferredJob.Transition(ctx, job.JobID, repository.JobTransition{
			Status:            model.JobStatusCompleted,
			AssignmentBatchID: &batchID,
			At:                now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errLostRace
		}

		batch := &model.AssignmentBatch{
			BatchID:   batchID,
			PeriodID:  job.PeriodID,
			JobID:     job.JobID,
			CreatedAt: now,
			Items:     make([]model.AssignmentItem, 0, len(mapped)),
		}
		for _, a := range mapped {
			batch.Items = append(batch.Items, model.AssignmentItem{
				BatchID:   batchID,
				StudentID: a.StudentID,
				TopicID:   a.TopicID,
				Rank:      a.Rank,
			})
		}
		if err := tx.Assignment.CreateBatch(ctx, batch); err != nil {
			return err
		}

		held, _ = lifecycle.HeldTimer(lc)
		lifecycle.Apply(period, lifecycle.Assigned{BatchID: batchID})
		return tx.Period.Update(ctx, period)
	})
	if err != nil {
		return "", "", err
	}
	return batchID, held, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *jobService) GetByID(ctx context.Context, jobID string) (*dto.JobResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toJobResponse(job), nil
}

// ────────────────────── ListByPeriod ──────────────────────

func (s *jobService) ListByPeriod(ctx context.Context, periodID string) ([]dto.JobResponse, error) {
	if _, err := s.repo.Period.GetByID(ctx, periodID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询选题周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}

	jobs, err := s.repo.DeferredJob.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("列出求解任务失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		result = append(result, *toJobResponse(&jobs[i]))
	}
	return result, nil
}

// ────────────────────── Fail ──────────────────────

func (s *jobService) Fail(ctx context.Context, jobID, reason, callerID string) (*dto.JobResponse, error) {
	if err := s.fail(ctx, jobID, "人工终止: "+reason, &callerID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, jobID)
}

// ────────────────────── 内部方法 ──────────────────────

func (s *jobService) getJob(ctx context.Context, jobID string) (*model.DeferredJob, error) {
	job, err := s.repo.DeferredJob.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error("查询求解任务失败", zap.String("id", jobID), zap.Error(err))
		return nil, err
	}
	return job, nil
}

func toJobResponse(j *model.DeferredJob) *dto.JobResponse {
	resp := &dto.JobResponse{
		ID:                j.JobID,
		PeriodID:          j.PeriodID,
		Status:            j.Status,
		Mode:              j.Mode,
		AssignmentBatchID: derefString(j.AssignmentBatchID),
		Error:             j.Error,
		NumStudents:       len(j.StudentIndex),
		NumTopics:         len(j.TopicIndex),
		CreatedAt:         j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         j.UpdatedAt.Format(time.RFC3339),
	}
	if j.FinishedAt != nil {
		resp.FinishedAt = j.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
