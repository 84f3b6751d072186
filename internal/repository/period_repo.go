package repository

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-selector/backend/internal/model"
	pkgerrors "project-selector/backend/pkg/errors"
)

// PeriodRepository 选题周期数据访问接口
type PeriodRepository interface {
	Create(ctx context.Context, period *model.SelectionPeriod) error
	GetByID(ctx context.Context, id string) (*model.SelectionPeriod, error)
	// GetByIDForUpdate 行级锁查询，必须在事务中调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.SelectionPeriod, error)
	List(ctx context.Context, semesterID string, offset, limit int) ([]model.SelectionPeriod, int64, error)
	Update(ctx context.Context, period *model.SelectionPeriod) error
	Delete(ctx context.Context, id string) error
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, period *model.SelectionPeriod) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.SelectionPeriod, error) {
	var period model.SelectionPeriod
	err := r.db.WithContext(ctx).
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.SelectionPeriod, error) {
	var period model.SelectionPeriod
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) List(ctx context.Context, semesterID string, offset, limit int) ([]model.SelectionPeriod, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.SelectionPeriod{})
	if semesterID != "" {
		query = query.Where("semester_id = ?", semesterID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var periods []model.SelectionPeriod
	err := query.
		Order("open_date DESC").
		Offset(offset).
		Limit(limit).
		Find(&periods).Error
	return periods, total, err
}

// Update 全量更新周期，version 不一致时返回 ErrOptimisticLock
func (r *periodRepo) Update(ctx context.Context, period *model.SelectionPeriod) error {
	oldVersion := period.Version
	result := r.db.WithContext(ctx).
		Model(&model.SelectionPeriod{}).
		Where("period_id = ? AND version = ?", period.PeriodID, oldVersion).
		Updates(map[string]interface{}{
			"title":                 period.Title,
			"description":           period.Description,
			"open_date":             period.OpenDate,
			"close_date":            period.CloseDate,
			"state":                 period.State,
			"timer_id":              period.TimerID,
			"assignment_batch_id":   period.AssignmentBatchID,
			"close_error":           period.CloseError,
			"closed_at":             period.ClosedAt,
			"rankings_enabled":      period.RankingsEnabled,
			"ranking_percentage":    period.RankingPercentage,
			"max_time_seconds":      period.MaxTimeSeconds,
			"group_sizes":           period.GroupSizes,
			"minimize_category_ids": orEmpty(period.MinimizeCategory),
			"student_ids":           orEmpty(period.StudentIDs),
			"updated_by":            period.UpdatedBy,
			"updated_at":            gorm.Expr("NOW()"),
			"version":               oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version = oldVersion + 1
	return nil
}

func (r *periodRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("period_id = ?", id).
		Delete(&model.SelectionPeriod{}).Error
}

func orEmpty(a pq.StringArray) pq.StringArray {
	if a == nil {
		return pq.StringArray{}
	}
	return a
}
