package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/progress"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/queue"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/utils"
)

func (h *Handler) redisContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

func (h *Handler) CreateSchedulingRun(w http.ResponseWriter, r *http.Request) {
	// 未填写的参数使用默认值
	var req struct {
		Name            string   `json:"name" validate:"required"`
		PopulationSize  *int     `json:"populationSize"`
		Generations     *int     `json:"generations"`
		CrossoverRate   *float64 `json:"crossoverRate"`
		MutationRate    *float64 `json:"mutationRate"`
		EliteCount      *int     `json:"eliteCount"`
		SelectionMethod *string  `json:"selectionMethod"`
		TournamentSize  *int     `json:"tournamentSize"`
		NumPeriods      *int     `json:"numPeriods"`
		NumDays         *int     `json:"numDays"`
		NumSlots        *int     `json:"numSlots"`
		Seed            *int64   `json:"seed"`
	}

	if !h.decode(w, r, &req) {
		return
	}

	params := h.config.DefaultRunParameters()
	if req.PopulationSize != nil {
		params.PopulationSize = *req.PopulationSize
	}
	if req.Generations != nil {
		params.Generations = *req.Generations
	}
	if req.CrossoverRate != nil {
		params.CrossoverRate = *req.CrossoverRate
	}
	if req.MutationRate != nil {
		params.MutationRate = *req.MutationRate
	}
	if req.EliteCount != nil {
		params.EliteCount = *req.EliteCount
	}
	if req.SelectionMethod != nil {
		params.SelectionMethod = domain.SelectionMethod(*req.SelectionMethod)
	}
	if req.TournamentSize != nil {
		params.TournamentSize = *req.TournamentSize
	}
	if req.NumPeriods != nil {
		params.NumPeriods = *req.NumPeriods
	}
	if req.NumDays != nil {
		params.NumDays = *req.NumDays
	}
	if req.NumSlots != nil {
		params.NumSlots = *req.NumSlots
	}
	// 保存实际使用的种子，方便复现
	params.Seed = utils.GenerateRandomSeed()
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	if err := h.validate.Struct(params); err != nil {
		h.invalid(w, r, err)
		return
	}
	if params.Generations > h.config.Scheduler.MaxGenerations {
		h.fail(w, r, fmt.Sprintf("迭代次数不能超过 %d", h.config.Scheduler.MaxGenerations))
		return
	}

	// 在投递之前先检查科目数据能否排出课表，避免 worker 才发现失败
	subjects, err := h.repository.GetAllSubjects()
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := utils.ValidateRunPeriods(subjects, params.NumPeriods); err != nil {
		h.invalid(w, r, err)
		return
	}
	catalog, err := scheduler.NewCatalog(subjects, params.NumPeriods)
	if err != nil {
		h.invalid(w, r, err)
		return
	}
	algorithmParams := scheduler.NewParameters(params)
	if err := scheduler.CheckCapacity(catalog, algorithmParams.Dimensions); err != nil {
		h.invalid(w, r, err)
		return
	}
	if _, err := scheduler.New(algorithmParams, catalog); err != nil {
		h.invalid(w, r, err)
		return
	}

	run := &domain.SchedulingRun{
		Name:       req.Name,
		Parameters: params,
		Status:     domain.RunStatusPending,
		CreatedBy:  principalFrom(r).UserID,
	}

	if err := h.repository.CreateSchedulingRun(run); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "scheduling_runs_name_key":
			h.fail(w, r, "排课任务名称已存在")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	if err := h.publisher.Publish(queue.SchedulingQueue, domain.ScheduleRunMessage{RunID: run.ID}); err != nil {
		// 投递失败的任务永远不会被执行，直接标记为失败
		run.Status = domain.RunStatusFailed
		run.Message = "无法投递排课任务"
		if updateErr := h.repository.UpdateSchedulingRunStatus(run); updateErr != nil {
			err = errors.Join(err, updateErr)
		}
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "排课任务已提交", run)
}

func (h *Handler) GetAllSchedulingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllSchedulingRuns()
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "获取排课任务列表成功", runs)
}

func (h *Handler) GetSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := currentRun(r)
	h.ok(w, r, "获取排课任务成功", run)
}

func (h *Handler) GetSchedulingRunProgress(w http.ResponseWriter, r *http.Request) {
	run := currentRun(r)

	ctx, cancel := h.redisContext(r)
	defer cancel()

	p, err := h.progress.Get(ctx, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNoProgress):
			if run.Status == domain.RunStatusPending {
				h.ok(w, r, "排课任务尚未开始", nil)
				return
			}
			h.fail(w, r, err.Error())
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.ok(w, r, "获取排课进度成功", p)
}

func (h *Handler) StopSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := currentRun(r)

	if run.Status.Finished() {
		h.fail(w, r, "排课任务已结束")
		return
	}

	// 还没开始的任务直接取消，worker 会跳过非等待状态的任务
	if run.Status == domain.RunStatusPending {
		run.Status = domain.RunStatusCancelled
		run.Message = "在开始前被取消"
		err := h.repository.UpdateSchedulingRunStatus(run)
		switch {
		case err == nil:
			h.ok(w, r, "排课任务已取消", run)
			return
		case errors.Is(err, sql.ErrNoRows):
			// 版本冲突说明 worker 刚刚开始执行，改为设置停止标记
		default:
			h.serverError(w, r, err)
			return
		}
	}

	ctx, cancel := h.redisContext(r)
	defer cancel()

	if err := h.progress.RequestStop(ctx, run.ID); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "已请求停止排课任务", nil)
}

func (h *Handler) GetSchedulingRunResult(w http.ResponseWriter, r *http.Request) {
	run := currentRun(r)

	result, err := h.repository.GetSchedulingResultByRunID(run.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.fail(w, r, "排课结果不存在")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.ok(w, r, "获取排课结果成功", result)
}

// DeleteSchedulingRun 删除已经结束的排课任务及其结果
func (h *Handler) DeleteSchedulingRun(w http.ResponseWriter, r *http.Request) {
	run := currentRun(r)

	if !run.Status.Finished() {
		h.fail(w, r, "只能删除已结束的排课任务，请先停止")
		return
	}

	if err := h.repository.DeleteSchedulingRun(run.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.fail(w, r, "排课任务不存在")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	h.ok(w, r, "删除排课任务成功", nil)
}
