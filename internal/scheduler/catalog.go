package scheduler

import (
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// Catalog 为算法提供只读的科目查询能力
// 注意 period 参数均为从 0 开始的学期行下标，而 domain.Subject.Period 从 1 开始
type Catalog interface {
	ByID(id int64) (*domain.Subject, error)
	SubjectsForPeriod(period int) []*domain.Subject
	EmptySlotFor(period int) *domain.Subject
}

// MapCatalog 是以 map 为索引的 Catalog 实现，每次查询都是 O(1)
type MapCatalog struct {
	subjects map[int64]*domain.Subject
	periods  [][]*domain.Subject
	empties  []*domain.Subject
	empty    *domain.Subject
}

func NewCatalog(subjects []*domain.Subject, numPeriods int) (*MapCatalog, error) {
	if numPeriods <= 0 {
		return nil, fmt.Errorf("%w: 学期数必须为正数", ErrInvalidConfiguration)
	}

	c := &MapCatalog{
		subjects: make(map[int64]*domain.Subject, len(subjects)),
		periods:  make([][]*domain.Subject, numPeriods),
		empties:  make([]*domain.Subject, numPeriods),
		empty:    domain.NewEmptySlot(0),
	}

	for _, subject := range subjects {
		if subject == nil {
			continue
		}
		if subject.IsEmptySlot || subject.ID <= 0 {
			return nil, fmt.Errorf("%w: 科目 ID %d 非法", ErrInvalidConfiguration, subject.ID)
		}
		if subject.Period < 1 || subject.Period > numPeriods {
			return nil, fmt.Errorf("%w: 科目 %d 的学期 %d 超出范围 [1, %d]", ErrInvalidConfiguration, subject.ID, subject.Period, numPeriods)
		}
		if subject.Workload < 0 {
			return nil, fmt.Errorf("%w: 科目 %d 的课时数不能为负数", ErrInvalidConfiguration, subject.ID)
		}
		if _, exists := c.subjects[subject.ID]; exists {
			return nil, fmt.Errorf("%w: 科目 ID %d 重复", ErrInvalidConfiguration, subject.ID)
		}

		c.subjects[subject.ID] = subject
		c.periods[subject.Period-1] = append(c.periods[subject.Period-1], subject)
	}

	// 按 ID 排序，保证相同种子下的随机过程可复现
	for i := range c.periods {
		slices.SortFunc(c.periods[i], func(a, b *domain.Subject) int {
			switch {
			case a.ID < b.ID:
				return -1
			case a.ID > b.ID:
				return 1
			default:
				return 0
			}
		})
		c.empties[i] = domain.NewEmptySlot(i + 1)
	}

	return c, nil
}

func (c *MapCatalog) ByID(id int64) (*domain.Subject, error) {
	if id == domain.EmptySubjectID {
		return c.empty, nil
	}

	subject, exists := c.subjects[id]
	if !exists {
		return nil, fmt.Errorf("%w: ID %d", ErrNotFound, id)
	}

	return subject, nil
}

func (c *MapCatalog) SubjectsForPeriod(period int) []*domain.Subject {
	if period < 0 || period >= len(c.periods) {
		return nil
	}
	return c.periods[period]
}

func (c *MapCatalog) EmptySlotFor(period int) *domain.Subject {
	if period < 0 || period >= len(c.empties) {
		return c.empty
	}
	return c.empties[period]
}
