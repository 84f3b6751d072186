package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"project-selector/backend/internal/model"
)

// DeferredJobRepository 求解任务数据访问接口
type DeferredJobRepository interface {
	Create(ctx context.Context, job *model.DeferredJob) error
	GetByID(ctx context.Context, id string) (*model.DeferredJob, error)
	GetPendingByPeriod(ctx context.Context, periodID string) (*model.DeferredJob, error)
	ListByPeriod(ctx context.Context, periodID string) ([]model.DeferredJob, error)
	// Transition 仅当任务仍为 pending 时写入终态，返回是否由本次调用完成迁移
	Transition(ctx context.Context, id string, change JobTransition) (bool, error)
}

// JobTransition 任务终态写入内容
type JobTransition struct {
	Status            string
	AssignmentBatchID *string
	Error             string
	UpdatedBy         *string
	At                time.Time
}

type deferredJobRepo struct {
	db *gorm.DB
}

// NewDeferredJobRepo 创建 DeferredJobRepository 实例
func NewDeferredJobRepo(db *gorm.DB) DeferredJobRepository {
	return &deferredJobRepo{db: db}
}

func (r *deferredJobRepo) Create(ctx context.Context, job *model.DeferredJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *deferredJobRepo) GetByID(ctx context.Context, id string) (*model.DeferredJob, error) {
	var job model.DeferredJob
	err := r.db.WithContext(ctx).
		Where("job_id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *deferredJobRepo) GetPendingByPeriod(ctx context.Context, periodID string) (*model.DeferredJob, error) {
	var job model.DeferredJob
	err := r.db.WithContext(ctx).
		Where("period_id = ? AND status = ?", periodID, model.JobStatusPending).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *deferredJobRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.DeferredJob, error) {
	var jobs []model.DeferredJob
	err := r.db.WithContext(ctx).
		Omit("request").
		Where("period_id = ?", periodID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (r *deferredJobRepo) Transition(ctx context.Context, id string, change JobTransition) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.DeferredJob{}).
		Where("job_id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":              change.Status,
			"assignment_batch_id": change.AssignmentBatchID,
			"error":               change.Error,
			"finished_at":         change.At,
			"updated_by":          change.UpdatedBy,
			"updated_at":          change.At,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
