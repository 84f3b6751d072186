package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-selector/backend/config"
	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/lifecycle"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/solver"
	applogger "project-selector/backend/pkg/logger"
	"project-selector/backend/pkg/metrics"
	"project-selector/backend/pkg/signature"
)

// ── 求解模块业务错误 ──

var (
	ErrSolveValidation     = errors.New("求解数据校验失败")
	ErrSolverNotConfigured = errors.New("求解服务未配置")
	ErrSolverService       = errors.New("求解服务调用失败")
	ErrSolverRejected      = errors.New("求解服务未能给出分配方案")
	ErrCallbackMalformed   = errors.New("回调数据格式错误")
	ErrCallbackAuth        = errors.New("回调签名校验失败")
)

// 回调处理结果，同时用作指标与 Redis 计数的标签
const (
	callbackAccepted  = "accepted"
	callbackRejected  = "rejected"
	callbackMalformed = "malformed"
)

// SolverClient 求解服务客户端
type SolverClient interface {
	Solve(ctx context.Context, req *solver.Request) (*solver.Result, error)
	SubmitDeferred(ctx context.Context, req *solver.DeferredRequest) error
}

// SolverClientFactory 按当前配置创建客户端
type SolverClientFactory func(cfg *config.SolverConfig) SolverClient

// DefaultSolverClient 基于 HTTP 的求解服务客户端
func DefaultSolverClient(cfg *config.SolverConfig) SolverClient {
	return solver.NewClient(cfg.BaseURL, cfg.RequestTimeout)
}

// AttemptRecorder 记录回调到达情况，为 nil 时仅写日志
type AttemptRecorder interface {
	RecordCallbackAttempt(ctx context.Context, deferredID, outcome string) error
}

// SolveService 求解提交与回调处理
type SolveService interface {
	// Submit 为已关闭的周期构造求解请求并提交，返回新建的任务
	Submit(ctx context.Context, periodID string) (*dto.JobResponse, error)
	// HandleCallback 校验并处理求解服务的回调，body 为原始请求体
	HandleCallback(ctx context.Context, body []byte) (*dto.CallbackResponse, error)
}

type solveService struct {
	cfg       *config.SolverConfig
	repo      *repository.Repository
	jobs      JobService
	newClient SolverClientFactory
	recorder  AttemptRecorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSolveService 创建 SolveService 实例
func NewSolveService(
	cfg *config.SolverConfig,
	repo *repository.Repository,
	jobs JobService,
	newClient SolverClientFactory,
	recorder AttemptRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) SolveService {
	if newClient == nil {
		newClient = DefaultSolverClient
	}
	return &solveService{
		cfg:       cfg,
		repo:      repo,
		jobs:      jobs,
		newClient: newClient,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
	}
}

// ────────────────────── Submit ──────────────────────

func (s *solveService) Submit(ctx context.Context, periodID string) (*dto.JobResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询选题周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}
	lc, err := lifecycle.FromModel(period)
	if err != nil {
		return nil, err
	}
	if _, ok := lc.(lifecycle.Assigned); ok {
		return nil, ErrIllegalMutation
	}

	mode := s.cfg.Mode
	callbackURL := ""
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: 缺少 solver.base_url", ErrSolverNotConfigured)
	}
	if s.cfg.Deferred() {
		callbackURL = s.cfg.CallbackURL()
		if callbackURL == "" || s.cfg.CallbackSecret == "" {
			return nil, fmt.Errorf("%w: 异步模式需要 solver.callback_base_url 与 solver.callback_secret", ErrSolverNotConfigured)
		}
	}

	in, err := s.loadInput(ctx, period)
	if err != nil {
		s.logger.Error("读取求解数据失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}
	plan, err := solver.Build(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSolveValidation, err)
	}
	for _, w := range plan.Warnings {
		s.logger.Warn("求解请求构造告警", zap.String("period_id", periodID), zap.String("warning", w))
	}

	raw, err := json.Marshal(plan.Request)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.CreateJob(ctx, NewJob{
		PeriodID:    periodID,
		Mode:        mode,
		CallbackURL: callbackURL,
		Index:       plan.Index,
		Request:     raw,
	})
	if err != nil {
		return nil, err
	}

	client := s.newClient(s.cfg)
	start := time.Now()

	if s.cfg.Deferred() {
		err := client.SubmitDeferred(ctx, &solver.DeferredRequest{
			DeferredID:  job.JobID,
			CallbackURL: callbackURL,
			Input:       plan.Request,
		})
		s.metrics.ObserveSolve(mode, time.Since(start))
		if err != nil {
			return nil, s.failSubmission(ctx, job, err)
		}
		s.metrics.SolveSubmitted(mode, callbackAccepted)
		applogger.For(ctx, s.logger).Info("已提交异步求解", zap.String("job_id", job.JobID), zap.String("period_id", periodID))
		return toJobResponse(job), nil
	}

	result, err := client.Solve(ctx, plan.Request)
	s.metrics.ObserveSolve(mode, time.Since(start))
	if err != nil {
		return nil, s.failSubmission(ctx, job, err)
	}
	if result.Error != "" {
		s.metrics.SolveSubmitted(mode, callbackRejected)
		sctx, cancel := detached(ctx)
		defer cancel()
		if ferr := s.jobs.MarkFailed(sctx, job.JobID, result.Error); ferr != nil {
			s.logger.Error("记录求解失败原因出错", zap.String("job_id", job.JobID), zap.Error(ferr))
		}
		return nil, fmt.Errorf("%w: %s", ErrSolverRejected, result.Error)
	}
	if _, err := s.jobs.Finalize(ctx, job.JobID, result.Assignments); err != nil {
		return nil, err
	}
	s.metrics.SolveSubmitted(mode, callbackAccepted)
	return s.jobs.GetByID(ctx, job.JobID)
}

// failSubmission 提交失败时将任务置为 failed，上游错误体原样作为失败原因
func (s *solveService) failSubmission(ctx context.Context, job *model.DeferredJob, cause error) error {
	s.metrics.SolveSubmitted(job.Mode, "error")
	applogger.For(ctx, s.logger).Error("调用求解服务失败", zap.String("job_id", job.JobID), zap.Error(cause))
	sctx, cancel := detached(ctx)
	defer cancel()
	if err := s.jobs.MarkFailed(sctx, job.JobID, cause.Error()); err != nil {
		s.logger.Error("记录求解失败原因出错", zap.String("job_id", job.JobID), zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrSolverService, cause)
}

// loadInput 读取周期所在学期的选题、志愿与问卷数据
func (s *solveService) loadInput(ctx context.Context, period *model.SelectionPeriod) (solver.Input, error) {
	topics, err := s.repo.Topic.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return solver.Input{}, err
	}
	prefs, err := s.repo.Preference.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return solver.Input{}, err
	}
	questions, err := s.repo.Question.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return solver.Input{}, err
	}
	questionIDs := make([]string, 0, len(questions))
	for _, q := range questions {
		questionIDs = append(questionIDs, q.QuestionID)
	}
	answers, err := s.repo.Answer.ListByQuestions(ctx, questionIDs)
	if err != nil {
		return solver.Input{}, err
	}
	categories, err := s.repo.Category.ListBySemester(ctx, period.SemesterID)
	if err != nil {
		return solver.Input{}, err
	}
	groupSizes, err := period.GroupSizeMap()
	if err != nil {
		return solver.Input{}, fmt.Errorf("%w: 分组人数配置无法解析: %w", ErrSolveValidation, err)
	}

	in := solver.Input{
		Description: period.Description,
		StudentIDs:  period.StudentIDs,
		Topics:      make([]solver.TopicInput, 0, len(topics)),
		Preferences: toPreferenceInputs(prefs),
		Questions:   make([]solver.QuestionInput, 0, len(questions)),
		Answers:     make([]solver.AnswerInput, 0, len(answers)),
		Categories:  make([]solver.CategoryInput, 0, len(categories)),
		Settings: solver.Settings{
			RankingsEnabled:     period.RankingsEnabled,
			RankingPercentage:   period.RankingPercentage,
			MaxTimeSeconds:      period.MaxTimeSeconds,
			GroupSizes:          groupSizes,
			MinimizeCategoryIDs: period.MinimizeCategory,
		},
	}
	for _, t := range topics {
		in.Topics = append(in.Topics, solver.TopicInput{ID: t.TopicID, CategoryIDs: t.CategoryIDs})
	}
	for _, q := range questions {
		in.Questions = append(in.Questions, solver.QuestionInput{ID: q.QuestionID, CategoryID: derefString(q.CategoryID)})
	}
	for _, a := range answers {
		in.Answers = append(in.Answers, solver.AnswerInput{QuestionID: a.QuestionID, StudentID: a.StudentID, Value: a.Value})
	}
	for _, c := range categories {
		in.Categories = append(in.Categories, solver.CategoryInput{
			ID:            c.CategoryID,
			CriterionType: solver.CriterionType(c.CriterionType),
			MinRatio:      c.MinRatio,
		})
	}
	return in, nil
}

// ────────────────────── HandleCallback ──────────────────────

func (s *solveService) HandleCallback(ctx context.Context, body []byte) (*dto.CallbackResponse, error) {
	var req dto.SolverCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.recordAttempt(ctx, "", callbackMalformed)
		return nil, fmt.Errorf("%w: %v", ErrCallbackMalformed, err)
	}
	if req.DeferredID == "" || req.EvaluationID == "" || req.Hash == "" || len(req.Data) == 0 {
		s.recordAttempt(ctx, req.DeferredID, callbackMalformed)
		return nil, fmt.Errorf("%w: 缺少 deferredId、evaluationId、data 或 hash", ErrCallbackMalformed)
	}
	if s.cfg.CallbackSecret == "" {
		s.recordAttempt(ctx, req.DeferredID, callbackRejected)
		return nil, fmt.Errorf("%w: 缺少 solver.callback_secret", ErrSolverNotConfigured)
	}

	ok, err := signature.VerifyBody(s.cfg.CallbackSecret, body)
	if err != nil {
		s.recordAttempt(ctx, req.DeferredID, callbackMalformed)
		return nil, fmt.Errorf("%w: %w", ErrCallbackMalformed, err)
	}
	if !ok {
		s.recordAttempt(ctx, req.DeferredID, callbackRejected)
		applogger.For(ctx, s.logger).Warn("回调签名不匹配", zap.String("deferred_id", req.DeferredID))
		return nil, ErrCallbackAuth
	}
	s.recordAttempt(ctx, req.DeferredID, callbackAccepted)

	var result solver.Result
	if err := json.Unmarshal(req.Data, &result); err != nil {
		reason := fmt.Sprintf("回调结果无法解析: %v", err)
		if ferr := s.jobs.MarkFailed(ctx, req.DeferredID, reason); ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("%w: %w", ErrResultMapping, err)
	}

	if result.Error != "" {
		if err := s.jobs.MarkFailed(ctx, req.DeferredID, result.Error); err != nil {
			return nil, err
		}
		return &dto.CallbackResponse{DeferredID: req.DeferredID, Status: model.JobStatusFailed}, nil
	}

	batchID, err := s.jobs.Finalize(ctx, req.DeferredID, result.Assignments)
	if err != nil {
		return nil, err
	}
	return &dto.CallbackResponse{
		DeferredID:        req.DeferredID,
		Status:            model.JobStatusCompleted,
		AssignmentBatchID: batchID,
	}, nil
}

// recordAttempt 记录一次回调到达，计数失败只影响可观测性
func (s *solveService) recordAttempt(ctx context.Context, deferredID, outcome string) {
	s.metrics.CallbackReceived(outcome)
	if deferredID == "" {
		deferredID = "unknown"
	}
	if s.recorder == nil {
		applogger.For(ctx, s.logger).Info("收到求解回调", zap.String("deferred_id", deferredID), zap.String("outcome", outcome))
		return
	}
	if err := s.recorder.RecordCallbackAttempt(ctx, deferredID, outcome); err != nil {
		s.logger.Warn("记录回调次数失败", zap.String("deferred_id", deferredID), zap.Error(err))
	}
}

func toPreferenceInputs(prefs []model.Preference) []solver.PreferenceInput {
	out := make([]solver.PreferenceInput, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, solver.PreferenceInput{StudentID: p.StudentID, TopicIDs: p.TopicIDs})
	}
	return out
}
