package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeInsufficientInput      = "INSUFFICIENT_INPUT"
	CodeNoEligibleContent      = "NO_ELIGIBLE_CONTENT"
	CodeInsufficientEmbeddings = "INSUFFICIENT_EMBEDDINGS"
	CodeJobAlreadyActive       = "JOB_ALREADY_ACTIVE"
	CodeJobNotRestartable      = "JOB_NOT_RESTARTABLE"
	CodeEngineUnavailable      = "ENGINE_UNAVAILABLE"
	CodeEngineError            = "ENGINE_ERROR"
	CodeDuplicateContent       = "DUPLICATE_CONTENT"
	CodeInternal               = "INTERNAL"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy carrying extra response fields.
func (e *Error) WithDetails(kv map[string]any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(kv))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range kv {
		cp.Details[k] = v
	}
	return &cp
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func newf(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(http.StatusBadRequest, CodeValidation, format, args...)
}

func Unauthorized(msg string) *Error {
	return newf(http.StatusUnauthorized, CodeUnauthorized, "%s", msg)
}

func Forbidden(msg string) *Error {
	return newf(http.StatusForbidden, CodeForbidden, "%s", msg)
}

func NotFound(what string) *Error {
	return newf(http.StatusNotFound, CodeNotFound, "%s not found", what)
}

func InsufficientInput(format string, args ...any) *Error {
	return newf(http.StatusUnprocessableEntity, CodeInsufficientInput, format, args...)
}

func NoEligibleContent(format string, args ...any) *Error {
	return newf(http.StatusUnprocessableEntity, CodeNoEligibleContent, format, args...)
}

func InsufficientEmbeddings(eligible, required int) *Error {
	e := newf(http.StatusUnprocessableEntity, CodeInsufficientEmbeddings,
		"at least %d embedded items are required, found %d", required, eligible)
	e.Details = map[string]any{"eligible": eligible, "required": required}
	return e
}

func JobAlreadyActive(jobType string, activeID fmt.Stringer) *Error {
	e := newf(http.StatusConflict, CodeJobAlreadyActive, "a %s job is already pending or running", jobType)
	if activeID != nil {
		e.Details = map[string]any{"activeJobId": activeID.String()}
	}
	return e
}

func JobNotRestartable(status string) *Error {
	return newf(http.StatusConflict, CodeJobNotRestartable, "job in status %s cannot be restarted", status)
}

func DuplicateContent(err error) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeDuplicateContent, Message: "content already exists in this project", Err: err}
}

func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
}

// Coder is implemented by errors that know their own taxonomy code, such as
// engine client failures.
type Coder interface {
	error
	ErrorCode() string
	HTTPStatus() int
}

// From classifies any error into an *Error. Unknown errors become INTERNAL.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var c Coder
	if errors.As(err, &c) {
		return &Error{Status: c.HTTPStatus(), Code: c.ErrorCode(), Message: c.Error(), Err: err}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found", Err: err}
	}
	if IsUniqueViolation(err) {
		return DuplicateContent(err)
	}
	return Internal(err)
}

// Code returns the taxonomy code of err, or "" for nil.
func Code(err error) string {
	if ae := From(err); ae != nil {
		return ae.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsTxConflict reports a deadlock or serialization failure: the transaction
// was rolled back and can be run again as is.
func IsTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
}
