package utils

import (
	"regexp"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

func TestGenerateRandomPassword(t *testing.T) {
	password := GenerateRandomPassword(12)
	assert.Equal(t, 12, utf8.RuneCountInString(password))
}

func TestGenerateUsernameFromChineseName(t *testing.T) {
	username := GenerateUsernameFromChineseName("王小明")
	assert.Regexp(t, regexp.MustCompile(`^w[a-z]*x[a-z]*m[a-z]*[0-9]{1,3}$`), username)
}

func TestGenerateRandomUser(t *testing.T) {
	user, err := GenerateRandomUser("password", "example.com")
	require.NoError(t, err)
	assert.Contains(t, []domain.Role{domain.RoleStaff, domain.RoleAdmin}, user.Role)
	assert.Equal(t, user.Username+"@example.com", user.Email)
	assert.NotEqual(t, "password", user.PasswordHash)
}

func TestValidatePeriodCapacity(t *testing.T) {
	subjects := []*domain.Subject{
		{ID: 1, Name: "高等数学", Workload: 10, Period: 1},
		{ID: 2, Name: "程序设计", Workload: 8, Period: 1},
		{ID: 3, Name: "数据结构", Workload: 15, Period: 2},
	}

	// 新增
	assert.NoError(t, ValidatePeriodCapacity(subjects, &domain.Subject{Workload: 2, Period: 1}, 20))
	assert.Error(t, ValidatePeriodCapacity(subjects, &domain.Subject{Workload: 3, Period: 1}, 20))

	// 修改时替换原有的课时
	assert.NoError(t, ValidatePeriodCapacity(subjects, &domain.Subject{ID: 2, Workload: 10, Period: 1}, 20))
	assert.Error(t, ValidatePeriodCapacity(subjects, &domain.Subject{ID: 2, Workload: 11, Period: 1}, 20))

	// 换学期
	assert.NoError(t, ValidatePeriodCapacity(subjects, &domain.Subject{ID: 3, Workload: 20, Period: 2}, 20))
	assert.Error(t, ValidatePeriodCapacity(subjects, &domain.Subject{ID: 3, Workload: 11, Period: 1}, 20))
}

func TestPeriodWorkloads(t *testing.T) {
	subjects := []*domain.Subject{
		{ID: 1, Workload: 10, Period: 1},
		{ID: 2, Workload: 8, Period: 1},
		{ID: 3, Workload: 15, Period: 3},
	}
	assert.Equal(t, map[int]int{1: 18, 3: 15}, PeriodWorkloads(subjects))
}

func TestValidateRunPeriods(t *testing.T) {
	subjects := []*domain.Subject{{ID: 1, Name: "高等数学", Period: 6}}
	assert.NoError(t, ValidateRunPeriods(subjects, 6))
	assert.Error(t, ValidateRunPeriods(subjects, 5))
}
