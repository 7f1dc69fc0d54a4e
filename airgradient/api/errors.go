package api

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrorCodeInternalError ErrorCode = "INTERNAL_SERVER_ERROR"
)

// ErrorClass says where a failure originated. Callers decide whether to
// retry by matching on it.
type ErrorClass int

const (
	ClassClientError ErrorClass = iota
	ClassServerError
	ClassNetworkError
	ClassConfigError
)

func (class ErrorClass) String() string {
	switch class {
	case ClassClientError:
		return "client_error"
	case ClassServerError:
		return "server_error"
	case ClassNetworkError:
		return "network_error"
	case ClassConfigError:
		return "config_error"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails.
type Error struct {
	Code       ErrorCode
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request could succeed.
func (e *Error) Retryable() bool {
	return e.Class == ClassServerError || e.Class == ClassNetworkError
}

func newStatusError(status int, body string) *Error {
	code, class := classifyStatus(status)
	return &Error{
		Code:       code,
		Class:      class,
		StatusCode: status,
		Message:    fmt.Sprintf("Air Gradient API error: %s", body),
	}
}

func newNetworkError(err error) *Error {
	return &Error{
		Code:    ErrorCodeInternalError,
		Class:   ClassNetworkError,
		Message: "failed to communicate with Air Gradient API",
		Err:     err,
	}
}

func classifyStatus(status int) (ErrorCode, ErrorClass) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorCodeUnauthorized, ClassClientError
	case status == http.StatusNotFound:
		return ErrorCodeNotFound, ClassClientError
	case status >= 400 && status < 500:
		return ErrorCodeBadRequest, ClassClientError
	default:
		return ErrorCodeInternalError, ClassServerError
	}
}
