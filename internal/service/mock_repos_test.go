package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"project-selector/backend/config"
	"project-selector/backend/internal/model"
	"project-selector/backend/internal/repository"
	"project-selector/backend/internal/scheduler"
	"project-selector/backend/internal/solver"
	pkgerrors "project-selector/backend/pkg/errors"
)

// ── Mock PeriodRepository ──
// 存取均为副本，模拟数据库读写语义

type mockPeriodRepo struct {
	periods    map[string]*model.SelectionPeriod
	failUpdate error
}

func newMockPeriodRepo() *mockPeriodRepo {
	return &mockPeriodRepo{periods: make(map[string]*model.SelectionPeriod)}
}

func (m *mockPeriodRepo) Create(_ context.Context, period *model.SelectionPeriod) error {
	if period.Version == 0 {
		period.Version = 1
	}
	cp := *period
	m.periods[period.PeriodID] = &cp
	return nil
}

func (m *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.SelectionPeriod, error) {
	if p, ok := m.periods[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPeriodRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.SelectionPeriod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

func (m *mockPeriodRepo) List(_ context.Context, semesterID string, offset, limit int) ([]model.SelectionPeriod, int64, error) {
	var all []model.SelectionPeriod
	for _, p := range m.periods {
		if semesterID != "" && p.SemesterID != semesterID {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenDate.After(all[j].OpenDate) })

	total := int64(len(all))
	if offset >= len(all) {
		return []model.SelectionPeriod{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (m *mockPeriodRepo) Update(ctx context.Context, period *model.SelectionPeriod) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failUpdate != nil {
		return m.failUpdate
	}
	stored, ok := m.periods[period.PeriodID]
	if !ok || stored.Version != period.Version {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version++
	cp := *period
	m.periods[period.PeriodID] = &cp
	return nil
}

func (m *mockPeriodRepo) Delete(_ context.Context, id string) error {
	delete(m.periods, id)
	return nil
}

// ── Mock 输入数据 Repository ──

type mockTopicRepo struct {
	topics []model.Topic
}

func (m *mockTopicRepo) ListBySemester(_ context.Context, semesterID string) ([]model.Topic, error) {
	var result []model.Topic
	for _, t := range m.topics {
		if t.SemesterID == semesterID && t.IsActive {
			result = append(result, t)
		}
	}
	return result, nil
}

type mockPreferenceRepo struct {
	prefs []model.Preference
}

func (m *mockPreferenceRepo) ListBySemester(_ context.Context, semesterID string) ([]model.Preference, error) {
	var result []model.Preference
	for _, p := range m.prefs {
		if p.SemesterID == semesterID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPreferenceRepo) CountBySemester(ctx context.Context, semesterID string) (int64, error) {
	prefs, _ := m.ListBySemester(ctx, semesterID)
	return int64(len(prefs)), nil
}

type mockQuestionRepo struct {
	questions []model.Question
}

func (m *mockQuestionRepo) ListBySemester(_ context.Context, semesterID string) ([]model.Question, error) {
	var result []model.Question
	for _, q := range m.questions {
		if q.SemesterID == semesterID {
			result = append(result, q)
		}
	}
	return result, nil
}

type mockAnswerRepo struct {
	answers []model.Answer
}

func (m *mockAnswerRepo) ListByQuestions(_ context.Context, questionIDs []string) ([]model.Answer, error) {
	wanted := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	var result []model.Answer
	for _, a := range m.answers {
		if wanted[a.QuestionID] {
			result = append(result, a)
		}
	}
	return result, nil
}

type mockCategoryRepo struct {
	categories []model.Category
}

func (m *mockCategoryRepo) ListBySemester(_ context.Context, semesterID string) ([]model.Category, error) {
	var result []model.Category
	for _, c := range m.categories {
		if c.SemesterID == semesterID {
			result = append(result, c)
		}
	}
	return result, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	batches map[string]*model.AssignmentBatch
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{batches: make(map[string]*model.AssignmentBatch)}
}

func (m *mockAssignmentRepo) CreateBatch(_ context.Context, batch *model.AssignmentBatch) error {
	for _, b := range m.batches {
		if b.JobID == batch.JobID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *batch
	cp.Items = append([]model.AssignmentItem(nil), batch.Items...)
	m.batches[batch.BatchID] = &cp
	return nil
}

func (m *mockAssignmentRepo) GetBatch(_ context.Context, batchID string) (*model.AssignmentBatch, error) {
	if b, ok := m.batches[batchID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) GetByJob(_ context.Context, jobID string) (*model.AssignmentBatch, error) {
	for _, b := range m.batches {
		if b.JobID == jobID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock DeferredJobRepository ──
// 与真实数据库一致，context 已取消时读写均失败

type mockJobRepo struct {
	jobs map[string]*model.DeferredJob
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{jobs: make(map[string]*model.DeferredJob)}
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.DeferredJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.Status == model.JobStatusPending {
		for _, j := range m.jobs {
			if j.PeriodID == job.PeriodID && j.Status == model.JobStatusPending {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	cp := *job
	m.jobs[job.JobID] = &cp
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id string) (*model.DeferredJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockJobRepo) GetPendingByPeriod(_ context.Context, periodID string) (*model.DeferredJob, error) {
	for _, j := range m.jobs {
		if j.PeriodID == periodID && j.Status == model.JobStatusPending {
			cp := *j
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockJobRepo) ListByPeriod(_ context.Context, periodID string) ([]model.DeferredJob, error) {
	var result []model.DeferredJob
	for _, j := range m.jobs {
		if j.PeriodID == periodID {
			result = append(result, *j)
		}
	}
	return result, nil
}

func (m *mockJobRepo) Transition(ctx context.Context, id string, change repository.JobTransition) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusPending {
		return false, nil
	}
	at := change.At
	j.Status = change.Status
	j.AssignmentBatchID = change.AssignmentBatchID
	j.Error = change.Error
	j.FinishedAt = &at
	j.UpdatedBy = change.UpdatedBy
	j.UpdatedAt = at
	return true, nil
}

// only 返回唯一的任务，便于断言
func (m *mockJobRepo) only() *model.DeferredJob {
	if len(m.jobs) != 1 {
		panic(fmt.Sprintf("期望恰好 1 个任务，实际 %d 个", len(m.jobs)))
	}
	for _, j := range m.jobs {
		return j
	}
	return nil
}

// ── Fake Scheduler ──

type scheduledCall struct {
	At        time.Time
	Handler   string
	Args      scheduler.Args
	Cancelled bool
}

type fakeScheduler struct {
	mu       sync.Mutex
	seq      int
	timers   map[scheduler.Handle]*scheduledCall
	handlers map[string]scheduler.HandlerFunc
	failNext error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		timers:   make(map[scheduler.Handle]*scheduledCall),
		handlers: make(map[string]scheduler.HandlerFunc),
	}
}

func (f *fakeScheduler) ScheduleAt(_ context.Context, at time.Time, handler string, args scheduler.Args) (scheduler.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return "", err
	}
	f.seq++
	h := scheduler.Handle(fmt.Sprintf("timer-%d", f.seq))
	f.timers[h] = &scheduledCall{At: at, Handler: handler, Args: args}
	return h, nil
}

func (f *fakeScheduler) Cancel(_ context.Context, h scheduler.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[h]; ok {
		t.Cancelled = true
	}
	return nil
}

func (f *fakeScheduler) Register(handler string, fn scheduler.HandlerFunc) {
	f.handlers[handler] = fn
}

// active 返回未取消的定时器
func (f *fakeScheduler) active() map[scheduler.Handle]*scheduledCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[scheduler.Handle]*scheduledCall)
	for h, t := range f.timers {
		if !t.Cancelled {
			result[h] = t
		}
	}
	return result
}

func (f *fakeScheduler) get(h *string) *scheduledCall {
	if h == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers[scheduler.Handle(*h)]
}

// ── Fake SolverClient ──

type fakeSolverClient struct {
	deferred []*solver.DeferredRequest
	solved   []*solver.Request

	result *solver.Result
	err    error
	onCall func() // 调用求解服务期间发生的事，如客户端断开
}

func (f *fakeSolverClient) Solve(_ context.Context, req *solver.Request) (*solver.Result, error) {
	f.solved = append(f.solved, req)
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSolverClient) SubmitDeferred(_ context.Context, req *solver.DeferredRequest) error {
	f.deferred = append(f.deferred, req)
	if f.onCall != nil {
		f.onCall()
	}
	return f.err
}

// ── Fake AttemptRecorder ──

type fakeRecorder struct {
	attempts map[string][]string
}

func (f *fakeRecorder) RecordCallbackAttempt(_ context.Context, deferredID, outcome string) error {
	if f.attempts == nil {
		f.attempts = make(map[string][]string)
	}
	f.attempts[deferredID] = append(f.attempts[deferredID], outcome)
	return nil
}

// ── 测试环境 ──

const (
	testSemester = "2026-spring"
	testSecret   = "callback-secret"
	testCaller   = "teacher-1"
)

var errInfra = errors.New("数据库连接中断")

type testEnv struct {
	repo        *repository.Repository
	periods     *mockPeriodRepo
	topics      *mockTopicRepo
	prefs       *mockPreferenceRepo
	questions   *mockQuestionRepo
	answers     *mockAnswerRepo
	categories  *mockCategoryRepo
	assignments *mockAssignmentRepo
	jobs        *mockJobRepo

	sched    *fakeScheduler
	client   *fakeSolverClient
	recorder *fakeRecorder
	cfg      *config.Config
	now      time.Time
	svc      *Service
}

// newTestEnv 组装使用内存 mock 的业务层，mode 为求解模式
func newTestEnv(mode string) *testEnv {
	env := &testEnv{
		periods:     newMockPeriodRepo(),
		topics:      &mockTopicRepo{},
		prefs:       &mockPreferenceRepo{},
		questions:   &mockQuestionRepo{},
		answers:     &mockAnswerRepo{},
		categories:  &mockCategoryRepo{},
		assignments: newMockAssignmentRepo(),
		jobs:        newMockJobRepo(),
		sched:       newFakeScheduler(),
		client:      &fakeSolverClient{},
		recorder:    &fakeRecorder{},
		now:         time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	env.repo = &repository.Repository{
		Period:      env.periods,
		Topic:       env.topics,
		Preference:  env.prefs,
		Question:    env.questions,
		Answer:      env.answers,
		Category:    env.categories,
		Assignment:  env.assignments,
		DeferredJob: env.jobs,
	}
	env.cfg = &config.Config{
		Solver: config.SolverConfig{
			BaseURL:         "http://solver.internal",
			CallbackBaseURL: "https://selector.example.edu",
			CallbackSecret:  testSecret,
			Mode:            mode,
			RequestTimeout:  time.Minute,
		},
	}

	env.svc = NewService(env.cfg, env.repo, Deps{
		Scheduler:    env.sched,
		SolverClient: func(*config.SolverConfig) SolverClient { return env.client },
		Recorder:     env.recorder,
	}, zap.NewNop())

	clock := func() time.Time { return env.now }
	env.svc.Period.(*periodService).now = clock
	env.svc.Job.(*jobService).now = clock
	env.svc.Calendar.(*calendarService).now = clock
	return env
}

// seedInputs 写入 3 个选题与 3 名学生的志愿
func (e *testEnv) seedInputs() {
	e.topics.topics = []model.Topic{
		{TopicID: "topic-a", SemesterID: testSemester, Title: "编译器优化", IsActive: true},
		{TopicID: "topic-b", SemesterID: testSemester, Title: "分布式存储", IsActive: true},
		{TopicID: "topic-c", SemesterID: testSemester, Title: "图像检索", IsActive: true},
	}
	e.prefs.prefs = []model.Preference{
		{PreferenceID: "p1", SemesterID: testSemester, StudentID: "s1", TopicIDs: []string{"topic-a", "topic-b"}, SubmittedAt: e.now},
		{PreferenceID: "p2", SemesterID: testSemester, StudentID: "s2", TopicIDs: []string{"topic-b"}, SubmittedAt: e.now},
		{PreferenceID: "p3", SemesterID: testSemester, StudentID: "s3", TopicIDs: []string{"topic-c", "topic-a"}, SubmittedAt: e.now},
	}
}

// seedPeriod 直接写入指定状态的周期
func (e *testEnv) seedPeriod(id, state string, openDate, closeDate time.Time) *model.SelectionPeriod {
	p := &model.SelectionPeriod{
		PeriodID:        id,
		SemesterID:      testSemester,
		Title:           "2026 春季毕业设计选题",
		OpenDate:        openDate,
		CloseDate:       closeDate,
		State:           state,
		RankingsEnabled: true,
	}
	switch state {
	case model.PeriodStateInactive:
		h, _ := e.sched.ScheduleAt(context.Background(), openDate, "period.open", scheduler.Args{argPeriodID: id})
		timerID := string(h)
		p.TimerID = &timerID
	case model.PeriodStateOpen:
		h, _ := e.sched.ScheduleAt(context.Background(), closeDate, "period.close", scheduler.Args{argPeriodID: id})
		timerID := string(h)
		p.TimerID = &timerID
	case model.PeriodStateClosed:
		closedAt := closeDate
		p.ClosedAt = &closedAt
	}
	_ = e.periods.Create(context.Background(), p)
	return p
}

func (e *testEnv) period(id string) *model.SelectionPeriod {
	p, err := e.periods.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return p
}
