package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 请求体的最大字节数
const maxBodyBytes = 1 << 20

// envelope 是所有接口统一的响应格式，业务错误同样使用 200 状态码返回
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		h.logServerError(r, err)
		http.Error(w, "服务器内部错误", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeEnvelope(w, r, http.StatusOK, envelope{Success: true, Message: msg, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeEnvelope(w, r, http.StatusOK, envelope{Success: false, Message: msg})
}

// invalid 返回参数错误，校验错误只翻译第一条
func (h *Handler) invalid(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		h.fail(w, r, validationErrors[0].Translate(h.translator))
		return
	}
	h.fail(w, r, err.Error())
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logServerError(r, err)
	h.writeEnvelope(w, r, http.StatusInternalServerError, envelope{Success: false, Message: "服务器内部错误"})
}

func (h *Handler) logServerError(r *http.Request, err error) {
	attrs := append([]any{"method", r.Method, "path", r.URL.Path, "error", err}, requestInfoFrom(r).attrs()...)
	slog.Error("服务器内部错误", attrs...)
}

// decode 读取 JSON 请求体并校验，返回 false 时已经写入了响应
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		h.fail(w, r, describeDecodeError(err))
		return false
	}
	if dec.More() {
		h.fail(w, r, "请求体只能包含一个 JSON 对象")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.invalid(w, r, err)
		return false
	}
	return true
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return "请求体不能为空"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "请求体不是完整的 JSON"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("请求体在第 %d 个字节处格式错误", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("字段 %s 的类型错误", typeErr.Field)
	case errors.As(err, &maxBytesErr):
		return fmt.Sprintf("请求体不能超过 %d 字节", maxBytesErr.Limit)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "未知字段 " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "请求体格式错误"
	}
}
