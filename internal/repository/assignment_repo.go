package repository

import (
	"context"

	"gorm.io/gorm"

	"project-selector/backend/internal/model"
)

// AssignmentRepository 分配结果数据访问接口
type AssignmentRepository interface {
	// CreateBatch 写入批次与明细，job_id 唯一约束保证每个任务至多一个批次
	CreateBatch(ctx context.Context, batch *model.AssignmentBatch) error
	GetBatch(ctx context.Context, batchID string) (*model.AssignmentBatch, error)
	GetByJob(ctx context.Context, jobID string) (*model.AssignmentBatch, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) CreateBatch(ctx context.Context, batch *model.AssignmentBatch) error {
	// 关联明细由 GORM 在同一语句链中写入
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *assignmentRepo) GetBatch(ctx context.Context, batchID string) (*model.AssignmentBatch, error) {
	var batch model.AssignmentBatch
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("student_id ASC")
		}).
		Where("batch_id = ?", batchID).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *assignmentRepo) GetByJob(ctx context.Context, jobID string) (*model.AssignmentBatch, error) {
	var batch model.AssignmentBatch
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}
