package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

const schedulingRunColumns = `id, name, parameters, status, best_fitness, message, created_by, created_at, finished_at, version`

func scanSchedulingRun(row rowScanner) (*domain.SchedulingRun, error) {
	var raw struct {
		parameters  []byte
		bestFitness sql.NullFloat64
		finishedAt  sql.NullTime
	}

	run := &domain.SchedulingRun{}
	dst := []any{&run.ID, &run.Name, &raw.parameters, &run.Status, &raw.bestFitness, &run.Message, &run.CreatedBy, &run.CreatedAt, &raw.finishedAt, &run.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw.parameters, &run.Parameters); err != nil {
		return nil, err
	}
	if raw.bestFitness.Valid {
		run.BestFitness = &raw.bestFitness.Float64
	}
	if raw.finishedAt.Valid {
		run.FinishedAt = &raw.finishedAt.Time
	}

	return run, nil
}

func (r *Repository) CreateSchedulingRun(run *domain.SchedulingRun) error {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		INSERT INTO scheduling_runs (name, parameters, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, status, message, created_at, version
	`

	args := []any{run.Name, parameters, run.CreatedBy}
	dst := []any{&run.ID, &run.Status, &run.Message, &run.CreatedAt, &run.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(dst...)
}

func (r *Repository) GetSchedulingRunByID(id int64) (*domain.SchedulingRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + schedulingRunColumns + ` FROM scheduling_runs WHERE id = $1`
	return scanSchedulingRun(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) querySchedulingRuns(query string, args ...any) ([]*domain.SchedulingRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.SchedulingRun, 0)
	for rows.Next() {
		run, err := scanSchedulingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *Repository) GetAllSchedulingRuns() ([]*domain.SchedulingRun, error) {
	return r.querySchedulingRuns(`SELECT ` + schedulingRunColumns + ` FROM scheduling_runs ORDER BY created_at DESC`)
}

// GetSchedulingRunsByCreator 返回某个用户发起的所有排课任务，最新的在前
func (r *Repository) GetSchedulingRunsByCreator(userID int64) ([]*domain.SchedulingRun, error) {
	query := `SELECT ` + schedulingRunColumns + ` FROM scheduling_runs WHERE created_by = $1 ORDER BY created_at DESC`
	return r.querySchedulingRuns(query, userID)
}

// UpdateSchedulingRunStatus 更新运行状态，进入结束状态时同时记录结束时间
// 使用 version 做乐观锁，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateSchedulingRunStatus(run *domain.SchedulingRun) error {
	if run.Status.Finished() && run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}

	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		UPDATE scheduling_runs
		SET
			status = $1,
			best_fitness = $2,
			message = $3,
			finished_at = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version
	`

	args := []any{run.Status, run.BestFitness, run.Message, run.FinishedAt, run.ID, run.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Version)
}

// DeleteSchedulingRun 删除排课任务，排课结果及其格子通过级联删除
func (r *Repository) DeleteSchedulingRun(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	res, err := r.dbpool.ExecContext(ctx, `DELETE FROM scheduling_runs WHERE id = $1`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
