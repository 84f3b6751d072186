package handler

import (
	"context"

	"go.uber.org/zap"

	"project-selector/backend/internal/service"
)

// AttemptReader 读取回调投递计数，由 pkg/redis.Client 实现
type AttemptReader interface {
	CallbackAttempts(ctx context.Context, deferredID string) (map[string]int64, error)
}

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period   *PeriodHandler
	Job      *JobHandler
	Callback *CallbackHandler
	Export   *ExportHandler
}

// NewHandler 创建 Handler 聚合
// attempts 为 nil 时任务详情不附带回调计数
func NewHandler(svc *service.Service, attempts AttemptReader, logger *zap.Logger) *Handler {
	return &Handler{
		Period:   NewPeriodHandler(svc.Period),
		Job:      NewJobHandler(svc.Job, attempts, logger),
		Callback: NewCallbackHandler(svc.Solve),
		Export:   NewExportHandler(svc.Export, svc.Calendar),
	}
}
