package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"project-selector/backend/config"
	"project-selector/backend/internal/dto"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/solver"
)

func TestJobService_CreateJob_Conflict(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	in := NewJob{PeriodID: "period-1", Mode: config.SolverModeDeferred, Index: solver.Index{Students: []string{"s1"}, Topics: []string{"t1"}}}

	job, err := env.svc.Job.CreateJob(context.Background(), in)
	if err != nil {
		t.Fatalf("创建任务失败: %v", err)
	}
	if job.Status != model.JobStatusPending || len(job.StudentIndex) != 1 {
		t.Errorf("任务字段错误: %+v", job)
	}

	if _, err := env.svc.Job.CreateJob(context.Background(), in); !errors.Is(err, ErrJobConflict) {
		t.Errorf("同一周期已有 pending 任务时期望 ErrJobConflict，实际: %v", err)
	}
}

func TestJobService_TerminalTransitions(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	_, jobID := submitDeferred(t, env)
	ctx := context.Background()

	if err := env.svc.Job.MarkCompleted(ctx, jobID, "batch-1"); err != nil {
		t.Fatalf("标记完成失败: %v", err)
	}
	// completed → completed 为空操作
	if err := env.svc.Job.MarkCompleted(ctx, jobID, "batch-2"); err != nil {
		t.Errorf("重复标记完成应为空操作，实际: %v", err)
	}
	if got := *env.jobs.only().AssignmentBatchID; got != "batch-1" {
		t.Errorf("重复标记不应覆盖批次，实际=%s", got)
	}
	// completed → failed 非法
	if err := env.svc.Job.MarkFailed(ctx, jobID, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestJobService_MarkFailed_ThenCompleted(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	_, jobID := submitDeferred(t, env)
	ctx := context.Background()

	if err := env.svc.Job.MarkFailed(ctx, jobID, "timeout"); err != nil {
		t.Fatalf("标记失败出错: %v", err)
	}
	if err := env.svc.Job.MarkFailed(ctx, jobID, "timeout again"); err != nil {
		t.Errorf("重复标记失败应为空操作，实际: %v", err)
	}
	if got := env.jobs.only().Error; got != "timeout" {
		t.Errorf("重复标记不应覆盖原因，实际=%s", got)
	}
	if err := env.svc.Job.MarkCompleted(ctx, jobID, "batch-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
	if _, err := env.svc.Job.Finalize(ctx, jobID, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestJobService_MarkFailed_NotFound(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	if err := env.svc.Job.MarkFailed(context.Background(), "missing", "x"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("期望 ErrJobNotFound，实际: %v", err)
	}
}

func TestJobService_OperatorFail_UnblocksRetrigger(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	periodID, jobID := submitDeferred(t, env)
	ctx := context.Background()

	resp, err := env.svc.Job.Fail(ctx, jobID, "求解服务无响应", testCaller)
	if err != nil {
		t.Fatalf("人工终止失败: %v", err)
	}
	if resp.Status != model.JobStatusFailed || !strings.Contains(resp.Error, "求解服务无响应") {
		t.Errorf("任务应失败并记录原因，实际=%+v", resp)
	}
	if by := env.jobs.jobs[jobID].UpdatedBy; by == nil || *by != testCaller {
		t.Error("应记录操作人")
	}
	if env.period(periodID).CloseError == "" {
		t.Error("周期应记录失败原因")
	}

	// 失败后可重新触发求解
	again, err := env.svc.Period.Solve(ctx, periodID, testCaller)
	if err != nil {
		t.Fatalf("重新触发失败: %v", err)
	}
	if again.Job == nil || again.Job.ID == jobID {
		t.Error("应创建新的任务")
	}

	jobs, err := env.svc.Job.ListByPeriod(ctx, periodID)
	if err != nil {
		t.Fatalf("列出任务失败: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("期望 2 个任务，实际=%d", len(jobs))
	}
}

func TestJobService_ListByPeriod_NotFound(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	if _, err := env.svc.Job.ListByPeriod(context.Background(), "missing"); !errors.Is(err, ErrPeriodNotFound) {
		t.Errorf("期望 ErrPeriodNotFound，实际: %v", err)
	}
}

func TestJobService_Finalize_CancelsHeldTimer(t *testing.T) {
	env := newTestEnv(config.SolverModeDeferred)
	periodID, jobID := submitDeferred(t, env)
	ctx := context.Background()

	// 任务进行中周期被重新开放
	openAt, closeAt := rfc(env.now.Add(-time.Hour)), rfc(env.now.Add(time.Hour))
	req := &dto.UpdatePeriodRequest{OpenDate: &openAt, CloseDate: &closeAt}
	if _, err := env.svc.Period.Update(ctx, periodID, req, testCaller); err != nil {
		t.Fatalf("更新失败: %v", err)
	}
	reopened := env.period(periodID)
	if reopened.State != model.PeriodStateOpen {
		t.Fatalf("期望 open，实际=%s", reopened.State)
	}

	assignments := []solver.Assignment{{Student: 0, Group: 0}, {Student: 1, Group: 1}, {Student: 2, Group: 2}}
	batchID, err := env.svc.Job.Finalize(ctx, jobID, assignments)
	if err != nil {
		t.Fatalf("落库失败: %v", err)
	}
	final := env.period(periodID)
	if final.State != model.PeriodStateAssigned || final.TimerID != nil || *final.AssignmentBatchID != batchID {
		t.Errorf("周期应进入 assigned 且不再持有定时器，实际 state=%s", final.State)
	}
	if !env.sched.get(reopened.TimerID).Cancelled {
		t.Error("原关闭定时器应被取消")
	}
}
