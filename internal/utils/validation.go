package utils

import (
	"fmt"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// PeriodWorkloads 统计每个学期的总课时，下标为从 1 开始的学期
func PeriodWorkloads(subjects []*domain.Subject) map[int]int {
	workloads := make(map[int]int)
	for _, subject := range subjects {
		workloads[subject.Period] += subject.Workload
	}
	return workloads
}

// ValidatePeriodCapacity 检查替换（或新增）subject 之后，它所在学期的总课时是否超过 capacity
// subjects 为当前数据库中的所有科目，其中与 subject 同 ID 的科目会被替换
func ValidatePeriodCapacity(subjects []*domain.Subject, subject *domain.Subject, capacity int) error {
	total := subject.Workload
	for _, s := range subjects {
		if s.ID == subject.ID || s.Period != subject.Period {
			continue
		}
		total += s.Workload
	}

	if total > capacity {
		return fmt.Errorf("第 %d 学期的总课时 %d 超过了每周可排的 %d 课时", subject.Period, total, capacity)
	}
	return nil
}

// ValidateRunPeriods 检查排课任务的学期数能否覆盖所有科目
func ValidateRunPeriods(subjects []*domain.Subject, numPeriods int) error {
	for _, subject := range subjects {
		if subject.Period > numPeriods {
			return fmt.Errorf("科目「%s」属于第 %d 学期，超出了排课的学期数 %d", subject.Name, subject.Period, numPeriods)
		}
	}
	return nil
}
