package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/visiblee-backend/internal/platform/apierr"
)

// Error is returned for every failed engine call. Transport failures and
// timeouts are ENGINE_UNAVAILABLE; any non-2xx answer is ENGINE_ERROR.
type Error struct {
	Code       string
	Path       string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "engine error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("engine %s: status=%d message=%s", e.Path, e.StatusCode, msg)
	}
	return fmt.Sprintf("engine %s: %s", e.Path, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) ErrorCode() string { return e.Code }

func (e *Error) HTTPStatus() int {
	if e.Code == apierr.CodeEngineUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func IsUnavailable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == apierr.CodeEngineUnavailable
}

func unavailable(path string, err error) *Error {
	return &Error{Code: apierr.CodeEngineUnavailable, Path: path, Message: "engine unreachable", Err: err}
}

// parseHTTPError reads FastAPI's {"detail": ...} envelope. detail is a string
// for HTTPException and a list of objects for request validation errors.
func parseHTTPError(path string, status int, raw []byte) *Error {
	body := strings.TrimSpace(string(raw))
	e := &Error{Code: apierr.CodeEngineError, Path: path, StatusCode: status, Body: body}

	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Detail) == 0 {
		return e
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		e.Message = strings.TrimSpace(s)
		return e
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		e.Message = strings.Join(msgs, "; ")
	}
	return e
}

func retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Code == apierr.CodeEngineUnavailable {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
