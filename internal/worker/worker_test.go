package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/scheduler"
)

type fakeStore struct {
	run         *domain.SchedulingRun
	subjects    []*domain.Subject
	subjectsErr error
	user        *domain.User
	statuses    []domain.RunStatus
	result      *domain.SchedulingResult
	insertErrs  []error // 依次作为 InsertSchedulingResult 的返回值，用完后返回 nil
}

func (s *fakeStore) GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error) {
	if s.run == nil || s.run.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.run, nil
}

func (s *fakeStore) UpdateSchedulingRunStatus(run *domain.SchedulingRun) error {
	s.statuses = append(s.statuses, run.Status)
	run.Version++
	return nil
}

func (s *fakeStore) GetAllSubjects() ([]*domain.Subject, error) {
	return s.subjects, s.subjectsErr
}

func (s *fakeStore) InsertSchedulingResult(result *domain.SchedulingResult) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	s.result = result
	return nil
}

func (s *fakeStore) GetUserByID(id int64) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

type fakeProgress struct {
	published []domain.GenerationProgress
	stopAfter int // 发布这么多次进度之后开始报告停止，0 表示永不停止
	cleared   bool
}

func (p *fakeProgress) Publish(ctx context.Context, gp domain.GenerationProgress) error {
	p.published = append(p.published, gp)
	return nil
}

func (p *fakeProgress) StopRequested(ctx context.Context, runID int64) (bool, error) {
	return p.stopAfter > 0 && len(p.published) >= p.stopAfter, nil
}

func (p *fakeProgress) ClearStop(ctx context.Context, runID int64) error {
	p.cleared = true
	return nil
}

type fakePublisher struct {
	queues   []string
	messages []any
	err      error
}

func (p *fakePublisher) Publish(queue string, v any) error {
	p.queues = append(p.queues, queue)
	p.messages = append(p.messages, v)
	return p.err
}

func testSubjects() []*domain.Subject {
	return []*domain.Subject{
		{ID: 1, Name: "高等数学", Teacher: "王老师", Workload: 10, Period: 1},
		{ID: 2, Name: "程序设计", Teacher: "刘老师", Workload: 10, Period: 1},
		{ID: 3, Name: "概率统计", Teacher: "王老师", Workload: 8, Period: 2},
		{ID: 4, Name: "数据结构", Teacher: "陈老师", Workload: 12, Period: 2},
	}
}

func testRun(generations int) *domain.SchedulingRun {
	return &domain.SchedulingRun{
		ID:   7,
		Name: "2026 秋季排课",
		Parameters: domain.RunParameters{
			PopulationSize:  10,
			Generations:     generations,
			CrossoverRate:   0.8,
			MutationRate:    0.2,
			EliteCount:      1,
			SelectionMethod: domain.SelectionTournament,
			TournamentSize:  3,
			NumPeriods:      2,
			NumDays:         5,
			NumSlots:        4,
			Seed:            42,
		},
		Status:    domain.RunStatusPending,
		CreatedBy: 3,
	}
}

func newTestWorker(store *fakeStore, progress *fakeProgress, publisher *fakePublisher) *Worker {
	return New(store, progress, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleCompletesRun(t *testing.T) {
	store := &fakeStore{
		run:      testRun(5),
		subjects: testSubjects(),
		user:     &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
	}
	progress := &fakeProgress{}
	publisher := &fakePublisher{}

	err := newTestWorker(store, progress, publisher).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)

	require.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusCompleted}, store.statuses)
	require.NotNil(t, store.run.BestFitness)

	// 结果
	require.NotNil(t, store.result)
	require.Equal(t, int64(7), store.result.RunID)
	require.Equal(t, *store.run.BestFitness, store.result.Fitness)
	require.Len(t, store.result.Cells, 2*5*4)
	require.GreaterOrEqual(t, store.result.Generation, 1)
	require.LessOrEqual(t, store.result.Generation, 5)

	counts := make(map[int64]int)
	for _, cell := range store.result.Cells {
		require.GreaterOrEqual(t, cell.Period, 1)
		require.LessOrEqual(t, cell.Period, 2)
		counts[cell.SubjectID]++
	}
	for _, subject := range testSubjects() {
		require.Equal(t, subject.Workload, counts[subject.ID])
	}

	// 进度
	require.Len(t, progress.published, 5)
	for i, p := range progress.published {
		require.Equal(t, i+1, p.Generation)
		require.Equal(t, 5, p.Generations)
	}
	require.True(t, progress.cleared)

	// 邮件
	require.Equal(t, []string{queue.MailQueue}, publisher.queues)
	mail, ok := publisher.messages[0].(domain.MailMessage)
	require.True(t, ok)
	require.Equal(t, domain.MailTypeRunFinished, mail.Type)
	require.Equal(t, "zhangsan@example.com", mail.To)
	data, ok := mail.Data.(domain.RunFinishedMailData)
	require.True(t, ok)
	require.Equal(t, domain.RunStatusCompleted, data.Status)
	require.Equal(t, 5, data.Generations)
}

func TestHandleSkipsNonPendingRun(t *testing.T) {
	run := testRun(5)
	run.Status = domain.RunStatusCancelled
	store := &fakeStore{run: run, subjects: testSubjects()}
	publisher := &fakePublisher{}

	err := newTestWorker(store, &fakeProgress{}, publisher).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)
	require.Empty(t, store.statuses)
	require.Nil(t, store.result)
	require.Empty(t, publisher.messages)
}

func TestHandleMarksCapacityErrorAsFailed(t *testing.T) {
	subjects := testSubjects()
	subjects[0].Workload = 30
	store := &fakeStore{
		run:      testRun(5),
		subjects: subjects,
		user:     &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
	}
	publisher := &fakePublisher{}

	err := newTestWorker(store, &fakeProgress{}, publisher).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)
	require.Equal(t, []domain.RunStatus{domain.RunStatusFailed}, store.statuses)
	require.NotEmpty(t, store.run.Message)
	require.Nil(t, store.result)
	require.Len(t, publisher.messages, 1)
}

func TestHandleStopsWhenRequested(t *testing.T) {
	store := &fakeStore{
		run:      testRun(50),
		subjects: testSubjects(),
		user:     &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
	}
	progress := &fakeProgress{stopAfter: 2}

	err := newTestWorker(store, progress, &fakePublisher{}).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)
	require.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusCancelled}, store.statuses)
	require.Len(t, progress.published, 2)
	require.NotNil(t, store.result)
	require.Contains(t, store.run.Message, "手动停止")
	require.True(t, progress.cleared)
}

func TestHandleReturnsInfrastructureError(t *testing.T) {
	store := &fakeStore{
		run:         testRun(5),
		subjectsErr: errors.New("connection refused"),
	}

	err := newTestWorker(store, &fakeProgress{}, &fakePublisher{}).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.Error(t, err)
	require.Empty(t, store.statuses)
}

func TestHandleIgnoresMailFailure(t *testing.T) {
	store := &fakeStore{
		run:      testRun(3),
		subjects: testSubjects(),
		user:     &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
	}
	publisher := &fakePublisher{err: errors.New("channel closed")}

	err := newTestWorker(store, &fakeProgress{}, publisher).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusCompleted, store.run.Status)
}

func TestHandleRerunsRedeliveredRun(t *testing.T) {
	store := &fakeStore{
		run:        testRun(5),
		subjects:   testSubjects(),
		user:       &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
		insertErrs: []error{errors.New("connection reset")},
	}
	w := newTestWorker(store, &fakeProgress{}, &fakePublisher{})

	// 第一次保存结果失败，运行停在 running，消息会被重新投递
	err := w.Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.Error(t, err)
	require.Equal(t, domain.RunStatusRunning, store.run.Status)
	require.Nil(t, store.result)

	err = w.Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
	require.NoError(t, err)
	require.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusRunning, domain.RunStatusCompleted}, store.statuses)
	require.NotNil(t, store.result)
	require.Equal(t, *store.run.BestFitness, store.result.Fitness)
}

func TestHandleSkipsFinishedRun(t *testing.T) {
	for _, status := range []domain.RunStatus{domain.RunStatusCompleted, domain.RunStatusFailed} {
		run := testRun(5)
		run.Status = status
		store := &fakeStore{run: run, subjects: testSubjects()}

		err := newTestWorker(store, &fakeProgress{}, &fakePublisher{}).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
		require.NoError(t, err)
		require.Empty(t, store.statuses, "status %s", status)
	}
}

func TestHandleMissingRun(t *testing.T) {
	store := &fakeStore{run: testRun(5)}

	err := newTestWorker(store, &fakeProgress{}, &fakePublisher{}).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 99})
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestHandleStoresBestTimetableOfWholeRun(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		run := testRun(30)
		run.Parameters.EliteCount = 0
		run.Parameters.SelectionMethod = domain.SelectionRoulette
		run.Parameters.MutationRate = 0.8
		run.Parameters.Seed = seed

		store := &fakeStore{
			run:      run,
			subjects: testSubjects(),
			user:     &domain.User{ID: 3, FullName: "张三", Email: "zhangsan@example.com"},
		}
		progress := &fakeProgress{}

		err := newTestWorker(store, progress, &fakePublisher{}).Handle(context.Background(), domain.ScheduleRunMessage{RunID: 7})
		require.NoError(t, err)
		require.Len(t, progress.published, 30)

		maxFitness, firstAt := progress.published[0].BestFitness, progress.published[0].Generation
		for _, p := range progress.published {
			require.GreaterOrEqual(t, store.result.Fitness, p.BestFitness, "seed %d generation %d", seed, p.Generation)
			if p.BestFitness > maxFitness {
				maxFitness, firstAt = p.BestFitness, p.Generation
			}
		}
		require.Equal(t, maxFitness, store.result.Fitness, "seed %d", seed)
		require.Equal(t, firstAt, store.result.Generation, "seed %d", seed)

		// 保存的格子重新组装后应当得到同样的适应度
		catalog, err := scheduler.NewCatalog(testSubjects(), 2)
		require.NoError(t, err)
		tt := scheduler.NewTimetable(scheduler.Dimensions{NumPeriods: 2, NumDays: 5, NumSlots: 4})
		for _, cell := range store.result.Cells {
			tt.Set(cell.Period-1, cell.Day, cell.Slot, cell.SubjectID)
		}
		fitness, err := scheduler.NewEvaluator(catalog).Fitness(tt)
		require.NoError(t, err)
		require.Equal(t, store.result.Fitness, fitness, "seed %d", seed)
	}
}
