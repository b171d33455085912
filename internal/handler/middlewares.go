package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

// statusRecorder 记录写出的状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

// logRequests 记录每个请求，附带请求涉及的用户、科目和排课任务
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, ri := withRequestInfo(r)
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := append([]any{
			"status", rec.status,
			"ip", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		}, ri.attrs()...)
		slog.Log(r.Context(), level, "已处理请求", attrs...)
	})
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("处理请求时发生 panic", "path", r.URL.Path, "stack", string(debug.Stack()))
			h.serverError(w, r, fmt.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate 校验会话 cookie 中的令牌
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			h.fail(w, r, "用户未登录")
			return
		}

		p, err := h.parseToken(cookie.Value)
		if err != nil {
			h.fail(w, r, "登录已失效，请重新登录")
			return
		}

		requestInfoFrom(r).userID = p.UserID
		next.ServeHTTP(w, withValue(r, principalKey, p))
	})
}

// loadUser 读取当前登录的用户，被停用的账号不能继续使用已签发的令牌
func (h *Handler) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.repository.GetUserByID(principalFrom(r).UserID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.fail(w, r, "用户不存在")
			default:
				h.serverError(w, r, err)
			}
			return
		}
		if !user.IsActive {
			h.fail(w, r, "账号已被停用")
			return
		}

		next.ServeHTTP(w, withValue(r, userKey, user))
	})
}

func (h *Handler) requireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, principalFrom(r).Role) {
				h.fail(w, r, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loadByID 按路径中的 id 读取对象放进 context，并记到 requestInfo 上
func loadByID[T any](h *Handler, noun string, key contextKey, get func(int64) (T, error), mark func(*requestInfo, int64)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil || id <= 0 {
				h.fail(w, r, noun+"ID无效")
				return
			}
			mark(requestInfoFrom(r), id)

			v, err := get(id)
			if err != nil {
				switch {
				case errors.Is(err, sql.ErrNoRows):
					h.fail(w, r, noun+"不存在")
				default:
					h.serverError(w, r, err)
				}
				return
			}

			next.ServeHTTP(w, withValue(r, key, v))
		})
	}
}

func (h *Handler) loadSubject(next http.Handler) http.Handler {
	return loadByID(h, "科目", subjectKey, h.repository.GetSubjectByID, func(ri *requestInfo, id int64) { ri.subjectID = id })(next)
}

func (h *Handler) loadRun(next http.Handler) http.Handler {
	return loadByID(h, "排课任务", runKey, h.repository.GetSchedulingRunByID, func(ri *requestInfo, id int64) { ri.runID = id })(next)
}

// requireRunOwner 只允许管理员和任务的发起者操作排课任务
func (h *Handler) requireRunOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !canOperateRun(principalFrom(r), currentRun(r)) {
			h.fail(w, r, "只能操作自己发起的排课任务")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func canOperateRun(p principal, run *domain.SchedulingRun) bool {
	return p.Role == domain.RoleAdmin || p.UserID == run.CreatedBy
}
