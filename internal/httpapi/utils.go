package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuqie6/PlayPulse/internal/service"
)

// UserHeader 由外层网关解析好的用户 ID
const UserHeader = "X-User-ID"

type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, e APIError) {
	if strings.TrimSpace(e.Error) == "" {
		e.Error = http.StatusText(status)
	}
	writeJSON(w, status, e)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeAPIError(w, status, APIError{Error: msg})
}

// writeServiceError 把服务层错误映射为 HTTP 状态码
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTransition):
		writeAPIError(w, http.StatusConflict, APIError{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, service.ErrNotFound):
		writeAPIError(w, http.StatusNotFound, APIError{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, service.ErrValidation):
		writeAPIError(w, http.StatusBadRequest, APIError{Error: err.Error(), Code: "validation"})
	default:
		slog.Error("请求处理失败", "error", err)
		writeAPIError(w, http.StatusInternalServerError, APIError{Error: err.Error(), Code: "internal"})
	}
}

func readJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func parseInt64Param(value string) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("参数为空")
	}
	return strconv.ParseInt(v, 10, 64)
}

// userID 从请求头读取用户
func userID(r *http.Request) (int64, error) {
	id, err := parseInt64Param(r.Header.Get(UserHeader))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("缺少或无效的 %s", UserHeader)
	}
	return id, nil
}

func parseRFC3339(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s 格式应为 RFC3339", field)
	}
	return t, nil
}
