package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/utils"
)

// periodCapacity 为默认课表尺寸下每个学期一周可排的课时数
func (h *Handler) periodCapacity() int {
	return h.config.Scheduler.NumDays * h.config.Scheduler.NumSlots
}

// checkSubject 检查科目的学期是否在范围内，以及写入后该学期的总课时是否放得下
// 返回 false 时已经写入了响应
func (h *Handler) checkSubject(w http.ResponseWriter, r *http.Request, subject *domain.Subject) bool {
	if subject.Period > h.config.Scheduler.NumPeriods {
		h.fail(w, r, fmt.Sprintf("学期不能大于 %d", h.config.Scheduler.NumPeriods))
		return false
	}

	subjects, err := h.repository.GetAllSubjects()
	if err != nil {
		h.serverError(w, r, err)
		return false
	}
	if err := utils.ValidatePeriodCapacity(subjects, subject, h.periodCapacity()); err != nil {
		h.invalid(w, r, err)
		return false
	}
	return true
}

func (h *Handler) handleSubjectWriteError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch pgErr.ConstraintName {
		case "subjects_name_period_key":
			h.fail(w, r, "同一学期中已存在同名科目")
		default:
			h.serverError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.fail(w, r, "科目已被修改，请重试")
	default:
		h.serverError(w, r, err)
	}
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Teacher  string `json:"teacher" validate:"required"`
		Workload int    `json:"workload" validate:"gte=0"`
		Period   int    `json:"period" validate:"required,min=1"`
	}

	if !h.decode(w, r, &req) {
		return
	}

	subject := &domain.Subject{
		Name:     req.Name,
		Teacher:  req.Teacher,
		Workload: req.Workload,
		Period:   req.Period,
	}

	if !h.checkSubject(w, r, subject) {
		return
	}

	if err := h.repository.CreateSubject(subject); err != nil {
		h.handleSubjectWriteError(w, r, err)
		return
	}

	h.ok(w, r, "创建科目成功", subject)
}

func (h *Handler) GetAllSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.repository.GetAllSubjects()
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "获取科目列表成功", subjects)
}

func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	subject := currentSubject(r)
	h.ok(w, r, "获取科目成功", subject)
}

func (h *Handler) UpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name" validate:"omitempty,min=1"`
		Teacher  *string `json:"teacher" validate:"omitempty,min=1"`
		Workload *int    `json:"workload" validate:"omitempty,gte=0"`
		Period   *int    `json:"period" validate:"omitempty,min=1"`
	}

	if !h.decode(w, r, &req) {
		return
	}

	subject := currentSubject(r)

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.Teacher != nil {
		subject.Teacher = *req.Teacher
	}
	if req.Workload != nil {
		subject.Workload = *req.Workload
	}
	if req.Period != nil {
		subject.Period = *req.Period
	}

	if !h.checkSubject(w, r, subject) {
		return
	}

	if err := h.repository.UpdateSubject(subject); err != nil {
		h.handleSubjectWriteError(w, r, err)
		return
	}

	h.ok(w, r, "更新科目成功", subject)
}

func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	subject := currentSubject(r)

	// 删除科目不影响已保存的排课结果，结果中会显示为已删除的科目
	if err := h.repository.DeleteSubject(subject.ID); err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "删除科目成功", nil)
}
