package repository

import (
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

const subjectColumns = `id, name, teacher, workload, period, created_at, version`

func scanSubject(row rowScanner) (*domain.Subject, error) {
	subject := &domain.Subject{}
	dst := []any{&subject.ID, &subject.Name, &subject.Teacher, &subject.Workload, &subject.Period, &subject.CreatedAt, &subject.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return subject, nil
}

func (r *Repository) CreateSubject(subject *domain.Subject) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		INSERT INTO subjects (name, teacher, workload, period)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, version
	`

	args := []any{subject.Name, subject.Teacher, subject.Workload, subject.Period}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&subject.ID, &subject.CreatedAt, &subject.Version)
}

func (r *Repository) GetSubjectByID(id int64) (*domain.Subject, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`
	return scanSubject(r.dbpool.QueryRowContext(ctx, query, id))
}

// GetAllSubjects 按学期、ID 排序返回所有科目
func (r *Repository) GetAllSubjects() ([]*domain.Subject, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + subjectColumns + ` FROM subjects ORDER BY period, id`
	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subjects := make([]*domain.Subject, 0)
	for rows.Next() {
		subject, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subjects, nil
}

// UpdateSubject 使用 version 做乐观锁，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateSubject(subject *domain.Subject) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `
		UPDATE subjects
		SET
			name = $1,
			teacher = $2,
			workload = $3,
			period = $4,
			version = version + 1
		WHERE id = $5 AND version = $6
		RETURNING version
	`

	args := []any{subject.Name, subject.Teacher, subject.Workload, subject.Period, subject.ID, subject.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&subject.Version)
}

func (r *Repository) DeleteSubject(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	return err
}
