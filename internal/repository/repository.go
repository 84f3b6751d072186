package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Period      PeriodRepository
	Topic       TopicRepository
	Preference  PreferenceRepository
	Question    QuestionRepository
	Answer      AnswerRepository
	Category    CategoryRepository
	Assignment  AssignmentRepository
	DeferredJob DeferredJobRepository
	Timer       TimerRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:          db,
		Period:      NewPeriodRepo(db),
		Topic:       NewTopicRepo(db),
		Preference:  NewPreferenceRepo(db),
		Question:    NewQuestionRepo(db),
		Answer:      NewAnswerRepo(db),
		Category:    NewCategoryRepo(db),
		Assignment:  NewAssignmentRepo(db),
		DeferredJob: NewDeferredJobRepo(db),
		Timer:       NewTimerRepo(db),
	}
}

// BeginTx 开启事务
// 单元测试中 Repository 由 mock 组装，db 为 nil，此时返回 nil 事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本，tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// InTx 在事务中执行 fn，fn 返回错误或 panic 时回滚
func (r *Repository) InTx(ctx context.Context, fn func(txRepo *Repository) error) (err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(p)
		}
	}()

	if err := fn(r.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		return tx.Commit().Error
	}
	return nil
}
