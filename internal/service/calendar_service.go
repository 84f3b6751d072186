package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
)

// ── 日历订阅 ──────────────────────────────────────────────
//
// 将选题周期的开放窗口导出为 iCalendar (RFC 5545)，供学生订阅到日历客户端。
// 每个周期对应一个 VEVENT，UID 固定，日期调整后客户端会覆盖旧事件。
// ─────────────────────────────────────────────────────────────

const icsProductID = "-//project-selector//selection-period//CN"

// CalendarService 日历导出接口
type CalendarService interface {
	// PeriodCalendar 返回周期开放窗口的 ICS 内容与建议文件名
	PeriodCalendar(ctx context.Context, periodID string) ([]byte, string, error)
}

type calendarService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, logger: logger, now: time.Now}
}

func (s *calendarService) PeriodCalendar(ctx context.Context, periodID string) ([]byte, string, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrPeriodNotFound
		}
		s.logger.Error("查询选题周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(period.Title)

	event := cal.AddEvent(periodEventUID(period.PeriodID))
	event.SetDtStampTime(s.now().UTC())
	event.SetStartAt(period.OpenDate.UTC())
	event.SetEndAt(period.CloseDate.UTC())
	event.SetSummary(fmt.Sprintf("选题开放：%s", period.Title))
	event.SetDescription(periodEventDescription(period))

	filename := fmt.Sprintf("选题周期_%s.ics", period.Title)
	return []byte(cal.Serialize()), filename, nil
}

func periodEventUID(periodID string) string {
	return periodID + "@project-selector"
}

func periodEventDescription(p *model.SelectionPeriod) string {
	// 描述中可能带有求解用的内联配置，不对外输出
	switch p.State {
	case model.PeriodStateInactive:
		return "状态：未开放"
	case model.PeriodStateOpen:
		return "状态：开放中，请在截止前提交志愿"
	case model.PeriodStateClosed:
		return "状态：已截止，分配进行中"
	case model.PeriodStateAssigned:
		return "状态：分配结果已公布"
	}
	return ""
}
