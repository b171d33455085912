package repository

import (
	"database/sql"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// InsertSchedulingResult 在同一个事务中写入排课结果以及所有格子，已有的结果会被覆盖
func (r *Repository) InsertSchedulingResult(result *domain.SchedulingResult) error {
	ctx, cancel := r.txContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的排课结果删除（格子通过级联删除）
	query := `DELETE FROM scheduling_results WHERE scheduling_run_id = $1`
	if _, err := tx.ExecContext(ctx, query, result.RunID); err != nil {
		return err
	}

	query = `
		INSERT INTO scheduling_results (scheduling_run_id, fitness, conflicts, gap_score, consecutive, generation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	args := []any{result.RunID, result.Fitness, result.Conflicts, result.GapScore, result.Consecutive, result.Generation}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&result.ID, &result.CreatedAt, &result.Version); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scheduling_result_cells (scheduling_result_id, period, day, slot, subject_id)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, cell := range result.Cells {
		if _, err := stmt.ExecContext(ctx, result.ID, cell.Period, cell.Day, cell.Slot, cell.SubjectID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetSchedulingResultByRunID(runID int64) (*domain.SchedulingResult, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		SELECT
			sr.id,
			sr.fitness,
			sr.conflicts,
			sr.gap_score,
			sr.consecutive,
			sr.generation,
			sr.created_at,
			sr.version,
			src.period,
			src.day,
			src.slot,
			src.subject_id,
			s.name,
			s.teacher
		FROM scheduling_results sr
		LEFT JOIN scheduling_result_cells src ON sr.id = src.scheduling_result_id
		LEFT JOIN subjects s ON s.id = src.subject_id
		WHERE sr.scheduling_run_id = $1
		ORDER BY src.period, src.day, src.slot
	`

	rows, err := r.dbpool.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &domain.SchedulingResult{
		RunID: runID,
		Cells: make([]domain.SchedulingResultCell, 0),
	}

	for rows.Next() {
		var cell struct {
			period    sql.NullInt32
			day       sql.NullInt32
			slot      sql.NullInt32
			subjectID sql.NullInt64
			name      sql.NullString
			teacher   sql.NullString
		}

		dst := []any{
			&result.ID,
			&result.Fitness,
			&result.Conflicts,
			&result.GapScore,
			&result.Consecutive,
			&result.Generation,
			&result.CreatedAt,
			&result.Version,
			&cell.period,
			&cell.day,
			&cell.slot,
			&cell.subjectID,
			&cell.name,
			&cell.teacher,
		}

		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		if !cell.period.Valid {
			// 说明这个结果没有任何格子，正常情况下不会出现
			continue
		}

		c := domain.SchedulingResultCell{
			Period:    int(cell.period.Int32),
			Day:       int(cell.day.Int32),
			Slot:      int(cell.slot.Int32),
			SubjectID: cell.subjectID.Int64,
		}
		labelCell(&c, cell.name, cell.teacher)
		result.Cells = append(result.Cells, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 还需要处理没有结果的情况
	if result.ID == 0 {
		return nil, sql.ErrNoRows
	}

	return result, nil
}

// deletedSubjectName 用于排课之后被删除的科目
const deletedSubjectName = "（已删除的科目）"

// labelCell 根据联表查到的科目填充格子的科目名称和教师
func labelCell(cell *domain.SchedulingResultCell, name, teacher sql.NullString) {
	switch {
	case cell.SubjectID == domain.EmptySubjectID:
		cell.SubjectName = domain.NewEmptySlot(cell.Period).Name
		cell.Teacher = ""
	case name.Valid:
		cell.SubjectName = name.String
		cell.Teacher = teacher.String
	default:
		cell.SubjectName = deletedSubjectName
		cell.Teacher = ""
	}
}
