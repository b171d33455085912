package handler

import (
	"context"
	"net/http"

	"github.com/sysu-ecnc-dev/timetable-generator/backend/internal/domain"
)

type contextKey int

const (
	requestInfoKey contextKey = iota
	principalKey
	userKey
	subjectKey
	runKey
)

// principal 是从会话令牌中得到的身份
type principal struct {
	UserID int64
	Role   domain.Role
}

// requestInfo 由日志中间件创建，之后的中间件把请求涉及的对象记在上面
type requestInfo struct {
	userID    int64
	subjectID int64
	runID     int64
}

func (ri *requestInfo) attrs() []any {
	attrs := make([]any, 0, 6)
	if ri.userID != 0 {
		attrs = append(attrs, "user_id", ri.userID)
	}
	if ri.subjectID != 0 {
		attrs = append(attrs, "subject_id", ri.subjectID)
	}
	if ri.runID != 0 {
		attrs = append(attrs, "run_id", ri.runID)
	}
	return attrs
}

func withRequestInfo(r *http.Request) (*http.Request, *requestInfo) {
	ri := &requestInfo{}
	return r.WithContext(context.WithValue(r.Context(), requestInfoKey, ri)), ri
}

// requestInfoFrom 在没有经过日志中间件时返回一个空的 requestInfo
func requestInfoFrom(r *http.Request) *requestInfo {
	if ri, ok := r.Context().Value(requestInfoKey).(*requestInfo); ok {
		return ri
	}
	return &requestInfo{}
}

func withValue(r *http.Request, key contextKey, v any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), key, v))
}

func principalFrom(r *http.Request) principal {
	return r.Context().Value(principalKey).(principal)
}

func currentUser(r *http.Request) *domain.User {
	return r.Context().Value(userKey).(*domain.User)
}

func currentSubject(r *http.Request) *domain.Subject {
	return r.Context().Value(subjectKey).(*domain.Subject)
}

func currentRun(r *http.Request) *domain.SchedulingRun {
	return r.Context().Value(runKey).(*domain.SchedulingRun)
}
