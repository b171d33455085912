package domain

import "time"

// EmptySubjectID 是空课时占位科目的 ID，每个学期都有一个
const EmptySubjectID int64 = 0

type Subject struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Teacher     string    `json:"teacher"`
	Workload    int       `json:"workload"` // 每周课时数
	Period      int       `json:"period"`   // 所属学期，从 1 开始
	IsEmptySlot bool      `json:"isEmptySlot"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}

// NewEmptySlot 返回指定学期的空课时占位科目
func NewEmptySlot(period int) *Subject {
	return &Subject{
		ID:          EmptySubjectID,
		Name:        "空",
		Period:      period,
		IsEmptySlot: true,
	}
}
