package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

func newTestCatalog(t *testing.T, numPeriods int, subjects ...*domain.Subject) *MapCatalog {
	t.Helper()
	c, err := NewCatalog(subjects, numPeriods)
	require.NoError(t, err)
	return c
}

// twoSubjectCatalog 为一个学期两门课 A(2 课时) B(2 课时) 的目录
func twoSubjectCatalog(t *testing.T) *MapCatalog {
	return newTestCatalog(t, 1,
		&domain.Subject{ID: 1, Name: "A", Teacher: "张老师", Workload: 2, Period: 1},
		&domain.Subject{ID: 2, Name: "B", Teacher: "李老师", Workload: 2, Period: 1},
	)
}

// campusCatalog 为三个学期的目录，其中王老师同时在第 1、3 学期上课
func campusCatalog(t *testing.T) *MapCatalog {
	return newTestCatalog(t, 3,
		&domain.Subject{ID: 1, Name: "高等数学", Teacher: "王老师", Workload: 6, Period: 1},
		&domain.Subject{ID: 2, Name: "程序设计", Teacher: "刘老师", Workload: 8, Period: 1},
		&domain.Subject{ID: 3, Name: "数据结构", Teacher: "陈老师", Workload: 6, Period: 2},
		&domain.Subject{ID: 4, Name: "离散数学", Teacher: "赵老师", Workload: 4, Period: 2},
		&domain.Subject{ID: 5, Name: "操作系统", Teacher: "王老师", Workload: 5, Period: 3},
		&domain.Subject{ID: 6, Name: "计算机网络", Teacher: "孙老师", Workload: 4, Period: 3},
	)
}

// fullCatalog 为两个学期都排满 5x4 课时的目录
func fullCatalog(t *testing.T) *MapCatalog {
	return newTestCatalog(t, 2,
		&domain.Subject{ID: 1, Name: "高等数学", Teacher: "王老师", Workload: 10, Period: 1},
		&domain.Subject{ID: 2, Name: "程序设计", Teacher: "刘老师", Workload: 10, Period: 1},
		&domain.Subject{ID: 3, Name: "概率统计", Teacher: "王老师", Workload: 8, Period: 2},
		&domain.Subject{ID: 4, Name: "数据结构", Teacher: "陈老师", Workload: 12, Period: 2},
	)
}

func requireWorkloadPreserved(t *testing.T, catalog Catalog, tt *Timetable) {
	t.Helper()
	dims := tt.Dimensions()
	for period := 0; period < dims.NumPeriods; period++ {
		counts := make(map[int64]int)
		for _, id := range tt.Row(period) {
			counts[id]++
		}

		total := 0
		for _, subject := range catalog.SubjectsForPeriod(period) {
			require.Equal(t, subject.Workload, counts[subject.ID], "period %d subject %d", period, subject.ID)
			total += subject.Workload
		}
		require.Equal(t, dims.CellsPerPeriod()-total, counts[domain.EmptySubjectID], "period %d empty cells", period)
		require.Equal(t, dims.CellsPerPeriod()-total, tt.CountEmpty(period))
	}
}
