package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/scheduler"
)

// ErrRunNotFound 表示消息中的排课运行已不存在，重新投递也没有意义
var ErrRunNotFound = errors.New("排课运行不存在")

// Store 为 worker 需要用到的持久化操作，由 repository.Repository 实现
type Store interface {
	GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error)
	UpdateSchedulingRunStatus(run *domain.SchedulingRun) error
	GetAllSubjects() ([]*domain.Subject, error)
	InsertSchedulingResult(result *domain.SchedulingResult) error
	GetUserByID(id int64) (*domain.User, error)
}

type ProgressStore interface {
	Publish(ctx context.Context, p domain.GenerationProgress) error
	StopRequested(ctx context.Context, runID int64) (bool, error)
	ClearStop(ctx context.Context, runID int64) error
}

type Publisher interface {
	Publish(queue string, v any) error
}

type Worker struct {
	store     Store
	progress  ProgressStore
	publisher Publisher
	logger    *slog.Logger
}

func New(store Store, progress ProgressStore, publisher Publisher, logger *slog.Logger) *Worker {
	return &Worker{
		store:     store,
		progress:  progress,
		publisher: publisher,
		logger:    logger,
	}
}

// isAlgorithmError 判断错误是否由排课参数或科目数据导致，这类错误重试也不会成功
func isAlgorithmError(err error) bool {
	return errors.Is(err, scheduler.ErrInvalidConfiguration) ||
		errors.Is(err, scheduler.ErrCapacityExceeded) ||
		errors.Is(err, scheduler.ErrSelectionDegenerate) ||
		errors.Is(err, scheduler.ErrNotFound)
}

// Handle 执行一次排课运行
// 只有基础设施错误（数据库等）才会返回 error，调用方据此决定是否重新入队
// 处于 running 状态的运行会被重新执行，因此失败后重新投递不会让运行卡在 running
func (w *Worker) Handle(ctx context.Context, msg domain.ScheduleRunMessage) error {
	run, err := w.store.GetSchedulingRunByID(msg.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrRunNotFound, msg.RunID)
		}
		return fmt.Errorf("无法获取排课运行 %d: %w", msg.RunID, err)
	}

	switch run.Status {
	case domain.RunStatusPending:
	case domain.RunStatusRunning:
		// 上一次执行在保存结果前失败并被重新投递，种子不变，重新执行即可得到相同的结果
		w.logger.Warn("排课运行被重新投递，重新执行", slog.Int64("run_id", run.ID))
	default:
		w.logger.Info("排课运行已结束，跳过", slog.Int64("run_id", run.ID), slog.String("status", string(run.Status)))
		return nil
	}

	subjects, err := w.store.GetAllSubjects()
	if err != nil {
		return fmt.Errorf("无法获取科目: %w", err)
	}

	params := scheduler.NewParameters(run.Parameters)
	catalog, err := scheduler.NewCatalog(subjects, run.Parameters.NumPeriods)
	if err != nil {
		return w.fail(run, err)
	}
	if err := scheduler.CheckCapacity(catalog, params.Dimensions); err != nil {
		return w.fail(run, err)
	}
	s, err := scheduler.New(params, catalog, scheduler.WithLogger(w.logger.With(slog.Int64("run_id", run.ID))))
	if err != nil {
		return w.fail(run, err)
	}

	run.Status = domain.RunStatusRunning
	if err := w.store.UpdateSchedulingRunStatus(run); err != nil {
		return fmt.Errorf("无法更新排课运行状态: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 每一代的最优个体可能因为没有精英保留而变差，这里记录整个运行中见过的最优个体
	var (
		bestEver      *scheduler.Timetable
		bestFitness   float64
		bestAt        int
		stopRequested bool
	)
	onGeneration := func(p scheduler.Progress) error {
		if bestEver == nil || p.BestFitness > bestFitness {
			bestEver = p.Best
			bestFitness = p.BestFitness
			bestAt = p.Generation
		}

		if err := w.progress.Publish(runCtx, domain.GenerationProgress{
			RunID:       run.ID,
			Generation:  p.Generation,
			Generations: run.Parameters.Generations,
			BestFitness: p.BestFitness,
			UpdatedAt:   time.Now(),
		}); err != nil {
			return err
		}

		stop, err := w.progress.StopRequested(runCtx, run.ID)
		if err != nil {
			return err
		}
		if stop {
			stopRequested = true
			cancel()
		}
		return nil
	}

	start := time.Now()
	result, err := s.Run(runCtx, run.Parameters.Generations, onGeneration)
	if err != nil {
		if isAlgorithmError(err) {
			return w.fail(run, err)
		}
		return err
	}

	// 在第一代之前就被取消时只有初始种群的最优个体
	if bestEver == nil {
		bestEver = result.Best
	}

	breakdown, err := scheduler.NewEvaluator(catalog).Breakdown(bestEver)
	if err != nil {
		return w.fail(run, err)
	}

	if err := w.store.InsertSchedulingResult(&domain.SchedulingResult{
		RunID:       run.ID,
		Fitness:     breakdown.Fitness,
		Conflicts:   breakdown.Conflicts,
		GapScore:    breakdown.GapScore,
		Consecutive: breakdown.Consecutive,
		Generation:  bestAt,
		Cells:       toCells(bestEver),
	}); err != nil {
		return fmt.Errorf("无法保存排课结果: %w", err)
	}

	run.BestFitness = &breakdown.Fitness
	run.Status = domain.RunStatusCompleted
	if result.Cancelled {
		run.Status = domain.RunStatusCancelled
		if stopRequested {
			run.Message = fmt.Sprintf("已手动停止，完成了 %d 代", result.Generations)
		} else {
			run.Message = fmt.Sprintf("worker 关闭导致排课中断，完成了 %d 代", result.Generations)
		}
	}
	if err := w.store.UpdateSchedulingRunStatus(run); err != nil {
		return fmt.Errorf("无法更新排课运行状态: %w", err)
	}

	w.logger.Info("排课运行结束",
		slog.Int64("run_id", run.ID),
		slog.String("status", string(run.Status)),
		slog.Int("generations", result.Generations),
		slog.Float64("best_fitness", breakdown.Fitness),
		slog.Duration("elapsed", time.Since(start)),
	)

	w.finish(run, result.Generations, breakdown.Conflicts)
	return nil
}

// fail 将运行标记为失败，并通知创建者
func (w *Worker) fail(run *domain.SchedulingRun, cause error) error {
	w.logger.Warn("排课运行失败", slog.Int64("run_id", run.ID), slog.String("error", cause.Error()))

	run.Status = domain.RunStatusFailed
	run.Message = cause.Error()
	if err := w.store.UpdateSchedulingRunStatus(run); err != nil {
		return fmt.Errorf("无法更新排课运行状态: %w", err)
	}

	w.finish(run, 0, 0)
	return nil
}

// finish 清除停止标记并发送结束通知邮件，这里的失败只记录日志
func (w *Worker) finish(run *domain.SchedulingRun, generations int, conflicts int) {
	if err := w.progress.ClearStop(context.Background(), run.ID); err != nil {
		w.logger.Warn("无法清除停止标记", slog.Int64("run_id", run.ID), slog.String("error", err.Error()))
	}

	user, err := w.store.GetUserByID(run.CreatedBy)
	if err != nil {
		w.logger.Warn("无法获取排课运行的创建者", slog.Int64("run_id", run.ID), slog.String("error", err.Error()))
		return
	}

	data := domain.RunFinishedMailData{
		FullName:    user.FullName,
		RunID:       run.ID,
		RunName:     run.Name,
		Status:      run.Status,
		Generations: generations,
		Conflicts:   conflicts,
		Message:     run.Message,
	}
	if run.BestFitness != nil {
		data.BestFitness = *run.BestFitness
	}

	mail := domain.MailMessage{
		Type: domain.MailTypeRunFinished,
		To:   user.Email,
		Data: data,
	}
	if err := w.publisher.Publish(queue.MailQueue, mail); err != nil {
		w.logger.Warn("无法发送排课结束邮件", slog.Int64("run_id", run.ID), slog.String("error", err.Error()))
	}
}

// toCells 将课表展开为格子列表，学期从 1 开始编号
func toCells(t *scheduler.Timetable) []domain.SchedulingResultCell {
	dims := t.Dimensions()
	cells := make([]domain.SchedulingResultCell, 0, dims.NumPeriods*dims.CellsPerPeriod())
	for p := 0; p < dims.NumPeriods; p++ {
		for d := 0; d < dims.NumDays; d++ {
			for s := 0; s < dims.NumSlots; s++ {
				cells = append(cells, domain.SchedulingResultCell{
					Period:    p + 1,
					Day:       d,
					Slot:      s,
					SubjectID: t.Get(p, d, s),
				})
			}
		}
	}
	return cells
}
