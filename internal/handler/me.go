package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, "获取个人信息成功", currentUser(r))
}

// GetMySchedulingRuns 返回当前用户发起的排课任务
func (h *Handler) GetMySchedulingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetSchedulingRunsByCreator(currentUser(r).ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.ok(w, r, "获取我的排课任务成功", runs)
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	user := currentUser(r)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.fail(w, r, "旧密码错误")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	user.PasswordHash = string(hash)

	if err := h.repository.UpdateUser(user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.fail(w, r, "账号信息已被修改，请重试")
			return
		}
		h.serverError(w, r, err)
		return
	}

	// 修改密码后需要重新登录
	h.clearSessionCookie(w)
	h.ok(w, r, "更新密码成功，请重新登录", nil)
}
