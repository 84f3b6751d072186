package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"project-selector/backend/internal/model"
)

// TimerRepository 持久化定时器数据访问接口
type TimerRepository interface {
	Create(ctx context.Context, timer *model.ScheduledTimer) error
	GetByID(ctx context.Context, id string) (*model.ScheduledTimer, error)
	// Cancel 仅取消仍处于 scheduled 的定时器，重复取消无副作用
	// 已被领取的定时器照常执行完毕，由处理器依据业务状态判断是否生效
	Cancel(ctx context.Context, id string) error
	// ClaimDue 领取到期定时器以及租约过期的 firing 定时器，标记为 firing
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.ScheduledTimer, error)
	MarkFired(ctx context.Context, id string, at time.Time) error
	// Release 处理失败，放回 scheduled 等待下次扫描
	Release(ctx context.Context, id string, reason string) error
}

type timerRepo struct {
	db *gorm.DB
}

// NewTimerRepo 创建 TimerRepository 实例
func NewTimerRepo(db *gorm.DB) TimerRepository {
	return &timerRepo{db: db}
}

func (r *timerRepo) Create(ctx context.Context, timer *model.ScheduledTimer) error {
	return r.db.WithContext(ctx).Create(timer).Error
}

func (r *timerRepo) GetByID(ctx context.Context, id string) (*model.ScheduledTimer, error) {
	var timer model.ScheduledTimer
	err := r.db.WithContext(ctx).
		Where("timer_id = ?", id).
		First(&timer).Error
	if err != nil {
		return nil, err
	}
	return &timer, nil
}

func (r *timerRepo) Cancel(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduledTimer{}).
		Where("timer_id = ? AND status = ?", id, model.TimerStatusScheduled).
		Updates(map[string]interface{}{
			"status":     model.TimerStatusCancelled,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *timerRepo) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]model.ScheduledTimer, error) {
	var claimed []model.ScheduledTimer

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? AND fire_at <= ?) OR (status = ? AND claimed_at < ?)",
				model.TimerStatusScheduled, now,
				model.TimerStatusFiring, now.Add(-lease)).
			Order("fire_at ASC").
			Limit(limit).
			Find(&claimed).Error
		if err != nil || len(claimed) == 0 {
			return err
		}

		ids := make([]string, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].TimerID
		}

		return tx.Model(&model.ScheduledTimer{}).
			Where("timer_id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     model.TimerStatusFiring,
				"claimed_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	for i := range claimed {
		claimed[i].Status = model.TimerStatusFiring
		claimed[i].ClaimedAt = &now
		claimed[i].Attempts++
	}
	return claimed, nil
}

func (r *timerRepo) MarkFired(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduledTimer{}).
		Where("timer_id = ? AND status = ?", id, model.TimerStatusFiring).
		Updates(map[string]interface{}{
			"status":     model.TimerStatusFired,
			"fired_at":   at,
			"last_error": "",
			"updated_at": at,
		}).Error
}

func (r *timerRepo) Release(ctx context.Context, id string, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduledTimer{}).
		Where("timer_id = ? AND status = ?", id, model.TimerStatusFiring).
		Updates(map[string]interface{}{
			"status":     model.TimerStatusScheduled,
			"claimed_at": nil,
			"last_error": reason,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}
