package repository

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

func TestLabelCell(t *testing.T) {
	cell := domain.SchedulingResultCell{Period: 2, SubjectID: 7}
	labelCell(&cell, sql.NullString{String: "数据结构", Valid: true}, sql.NullString{String: "韩亚历", Valid: true})
	assert.Equal(t, "数据结构", cell.SubjectName)
	assert.Equal(t, "韩亚历", cell.Teacher)

	// 空课不会联表到任何科目
	empty := domain.SchedulingResultCell{Period: 2, SubjectID: domain.EmptySubjectID}
	labelCell(&empty, sql.NullString{}, sql.NullString{})
	assert.Equal(t, domain.NewEmptySlot(2).Name, empty.SubjectName)
	assert.Empty(t, empty.Teacher)

	deleted := domain.SchedulingResultCell{Period: 1, SubjectID: 42}
	labelCell(&deleted, sql.NullString{}, sql.NullString{})
	assert.Equal(t, deletedSubjectName, deleted.SubjectName)
	assert.Empty(t, deleted.Teacher)
}
