package apperr

import (
	"errors"
	"fmt"
)

// Error is a coded application error. Code doubles as the envelope code and
// the HTTP status of the response that carries it.
type Error struct {
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func UnsupportedFormat(ext string) *Error {
	return &Error{
		Code:    400,
		Message: fmt.Sprintf("unsupported document format %q: supported formats are pdf, docx, md, txt", ext),
	}
}

func InvalidCriteria(detail string) *Error {
	return &Error{
		Code:    400,
		Message: "invalid criteria format: " + detail,
	}
}

func CorruptDocument(err error) *Error {
	return &Error{
		Code:    422,
		Message: "document could not be parsed",
		cause:   err,
	}
}

// EngineUnavailable deliberately drops the upstream error from the message so
// that provider diagnostics and credentials never reach the client. The cause
// is still wrapped for logging.
func EngineUnavailable(err error) *Error {
	return &Error{
		Code:    502,
		Message: "scoring service is unavailable, retrying will not help until it recovers",
		cause:   err,
	}
}

func EngineTimeout(err error) *Error {
	return &Error{
		Code:    504,
		Message: "scoring service timed out, retrying the request may help",
		cause:   err,
	}
}

// From extracts an *Error from err's chain, or wraps err as a generic 500.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Code: 500, Message: "internal server error", cause: err}
}
