// Package lifecycle 描述选题周期的四态生命周期。
//
// 状态由 (开放时间, 关闭时间, 当前时间) 推导，人工干预（强制开放、
// 强制关闭、分配完成）只能在推导结果之上前进，不能回退到更早的状态。
// 每个变体携带该状态下唯一合法的附属数据：
//
//	Inactive{OpenTimer?}  →  Open{CloseTimer}  →  Closed{Failure}  →  Assigned{BatchID}
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"project-selector/backend/internal/model"
)

// 定时器处理器标识
const (
	HandlerOpen  = "period.open"
	HandlerClose = "period.close"
)

// State 生命周期状态名
type State string

const (
	StateInactive State = model.PeriodStateInactive
	StateOpen     State = model.PeriodStateOpen
	StateClosed   State = model.PeriodStateClosed
	StateAssigned State = model.PeriodStateAssigned
)

var (
	ErrInvalidWindow = errors.New("选题开放时间必须早于关闭时间")
	ErrCorrupt       = errors.New("选题周期状态数据不一致")
)

// TimerHandle 定时器句柄
type TimerHandle string

// Lifecycle 生命周期变体，只有本包内的四个类型实现
type Lifecycle interface {
	State() State
	isLifecycle()
}

// Inactive 尚未开放，可能持有开放定时器
type Inactive struct {
	OpenTimer *TimerHandle
}

// Open 开放中，必须持有关闭定时器
type Open struct {
	CloseTimer TimerHandle
}

// Closed 已关闭，等待分配；Failure 为最近一次求解失败原因
type Closed struct {
	Failure string
	Since   time.Time
}

// Assigned 已完成分配，终态
type Assigned struct {
	BatchID string
}

func (Inactive) State() State { return StateInactive }
func (Open) State() State     { return StateOpen }
func (Closed) State() State   { return StateClosed }
func (Assigned) State() State { return StateAssigned }

func (Inactive) isLifecycle() {}
func (Open) isLifecycle()     {}
func (Closed) isLifecycle()   {}
func (Assigned) isLifecycle() {}

// ValidateWindow 校验开放窗口
func ValidateWindow(openDate, closeDate time.Time) error {
	if !openDate.Before(closeDate) {
		return ErrInvalidWindow
	}
	return nil
}

// Derive 仅依据时间推导状态（不考虑人工干预与分配结果）
func Derive(openDate, closeDate, now time.Time) State {
	switch {
	case !now.Before(closeDate):
		return StateClosed
	case !now.Before(openDate):
		return StateOpen
	default:
		return StateInactive
	}
}

// InWindow now 是否落在 [openDate, closeDate) 内
func InWindow(openDate, closeDate, now time.Time) bool {
	return Derive(openDate, closeDate, now) == StateOpen
}

// TimerPlan 某个状态需要挂载的定时器
type TimerPlan struct {
	Handler string
	At      time.Time
}

// PlanTimer 返回推导状态对应的定时器：inactive 挂开放定时器，open 挂关闭定时器
func PlanTimer(state State, openDate, closeDate time.Time) (TimerPlan, bool) {
	switch state {
	case StateInactive:
		return TimerPlan{Handler: HandlerOpen, At: openDate}, true
	case StateOpen:
		return TimerPlan{Handler: HandlerClose, At: closeDate}, true
	default:
		return TimerPlan{}, false
	}
}

// HeldTimer 返回变体持有的定时器句柄
func HeldTimer(l Lifecycle) (TimerHandle, bool) {
	switch v := l.(type) {
	case Inactive:
		if v.OpenTimer != nil {
			return *v.OpenTimer, true
		}
	case Open:
		return v.CloseTimer, true
	}
	return "", false
}

// FromModel 从持久化字段还原变体
func FromModel(p *model.SelectionPeriod) (Lifecycle, error) {
	switch State(p.State) {
	case StateInactive:
		if p.TimerID != nil {
			h := TimerHandle(*p.TimerID)
			return Inactive{OpenTimer: &h}, nil
		}
		return Inactive{}, nil
	case StateOpen:
		if p.TimerID == nil {
			return nil, fmt.Errorf("%w: 开放中的周期 %s 缺少关闭定时器", ErrCorrupt, p.PeriodID)
		}
		return Open{CloseTimer: TimerHandle(*p.TimerID)}, nil
	case StateClosed:
		c := Closed{Failure: p.CloseError}
		if p.ClosedAt != nil {
			c.Since = *p.ClosedAt
		}
		return c, nil
	case StateAssigned:
		if p.AssignmentBatchID == nil {
			return nil, fmt.Errorf("%w: 已分配的周期 %s 缺少分配批次", ErrCorrupt, p.PeriodID)
		}
		return Assigned{BatchID: *p.AssignmentBatchID}, nil
	default:
		return nil, fmt.Errorf("%w: 未知状态 %q", ErrCorrupt, p.State)
	}
}

// Apply 将变体写回持久化字段，清除该状态不应持有的附属数据
func Apply(p *model.SelectionPeriod, l Lifecycle) {
	p.State = string(l.State())
	p.TimerID = nil
	p.CloseError = ""

	switch v := l.(type) {
	case Inactive:
		if v.OpenTimer != nil {
			id := string(*v.OpenTimer)
			p.TimerID = &id
		}
	case Open:
		id := string(v.CloseTimer)
		p.TimerID = &id
	case Closed:
		p.CloseError = v.Failure
		if !v.Since.IsZero() {
			since := v.Since
			p.ClosedAt = &since
		}
	case Assigned:
		batchID := v.BatchID
		p.AssignmentBatchID = &batchID
	}
}
