package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/utils"
)

const DefaultSubjectsFile = "./internal/seed/data/subjects.csv"

var subjectHeaders = []string{"科目", "教师", "课时", "学期"}

// ParseSubjects 从 CSV 中读取科目，第一行必须为表头「科目,教师,课时,学期」
func ParseSubjects(r io.Reader) ([]*domain.Subject, error) {
	reader := csv.NewReader(r)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	if !slices.Equal(headers, subjectHeaders) {
		return nil, fmt.Errorf("表头 %v 不正确，应为 %v", headers, subjectHeaders)
	}

	subjects := make([]*domain.Subject, 0)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}

		workload, err := strconv.Atoi(row[2])
		if err != nil || workload < 0 {
			return nil, fmt.Errorf("第 %d 行的课时 %q 不合法", line, row[2])
		}
		period, err := strconv.Atoi(row[3])
		if err != nil || period < 1 {
			return nil, fmt.Errorf("第 %d 行的学期 %q 不合法", line, row[3])
		}

		subjects = append(subjects, &domain.Subject{
			Name:     row[0],
			Teacher:  row[1],
			Workload: workload,
			Period:   period,
		})
	}

	return subjects, nil
}

// SubjectStore 是写入科目所需的存储
type SubjectStore interface {
	GetAllSubjects() ([]*domain.Subject, error)
	CreateSubject(subject *domain.Subject) error
}

// SeedSubjects 将科目逐个插入数据库，返回插入的数量
// 同一学期的同名科目和超出学期容量的科目会被跳过
func SeedSubjects(store SubjectStore, subjects []*domain.Subject, capacity int) (int, error) {
	existing, err := store.GetAllSubjects()
	if err != nil {
		return 0, fmt.Errorf("获取已有科目失败: %w", err)
	}

	cnt := 0
	for _, subject := range subjects {
		if err := utils.ValidatePeriodCapacity(existing, subject, capacity); err != nil {
			slog.Warn("科目超出学期容量，跳过", "name", subject.Name, "error", err)
			continue
		}

		if err := store.CreateSubject(subject); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "subjects_name_period_key" {
				slog.Warn("科目已存在，跳过", "name", subject.Name, "period", subject.Period)
				continue
			}
			return cnt, fmt.Errorf("插入科目 %s 失败: %w", subject.Name, err)
		}

		existing = append(existing, subject)
		cnt++
	}

	for period, workload := range utils.PeriodWorkloads(existing) {
		slog.Info("学期课时", "period", period, "workload", workload, "capacity", capacity)
	}
	return cnt, nil
}

// SeedSubjectsFromFile 读取 CSV 文件并插入其中的科目
func SeedSubjectsFromFile(store SubjectStore, path string, capacity int) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	subjects, err := ParseSubjects(file)
	if err != nil {
		return 0, err
	}

	return SeedSubjects(store, subjects, capacity)
}

// UserStore 是写入用户所需的存储
type UserStore interface {
	CreateUser(user *domain.User) error
}

// SeedUsers 插入 n 个随机用户，用户名重复的会被跳过，返回插入的数量
func SeedUsers(store UserStore, n int, password, emailDomain string) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("用户数量 %d 不合法", n)
	}

	cnt := 0
	for i := 0; i < n; i++ {
		user, err := utils.GenerateRandomUser(password, emailDomain)
		if err != nil {
			return cnt, err
		}

		if err := store.CreateUser(user); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && (pgErr.ConstraintName == "users_username_key" || pgErr.ConstraintName == "users_email_key") {
				slog.Warn("用户已存在，跳过", "username", user.Username)
				continue
			}
			return cnt, fmt.Errorf("插入用户 %s 失败: %w", user.Username, err)
		}
		cnt++
	}

	return cnt, nil
}
