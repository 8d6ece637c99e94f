package media

import (
	"errors"
	"fmt"
)

// Error codes shared by every pipeline.
const (
	ErrCodeInit       = "INIT_ERROR"
	ErrCodeCodec      = "CODEC_ERROR"
	ErrCodeMux        = "MUX_ERROR"
	ErrCodeIO         = "IO_ERROR"
	ErrCodeNotRunning = "NOT_RUNNING"
)

// Error is the structured error carried inside the pipelines. The boolean
// entry points collapse it to success or failure.
type Error struct {
	Code    string
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code, so errors.Is(err,
// media.ErrNotRunning) works for any NOT_RUNNING error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Cause == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrInit       = &Error{Code: ErrCodeInit}
	ErrCodec      = &Error{Code: ErrCodeCodec}
	ErrMux        = &Error{Code: ErrCodeMux}
	ErrIO         = &Error{Code: ErrCodeIO}
	ErrNotRunning = &Error{Code: ErrCodeNotRunning}
)

// NewError builds an *Error. format may be empty.
func NewError(code, op string, cause error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Op: op, Message: msg, Cause: cause}
}

func InitError(op string, cause error, format string, args ...any) *Error {
	return NewError(ErrCodeInit, op, cause, format, args...)
}

func CodecError(op string, cause error, format string, args ...any) *Error {
	return NewError(ErrCodeCodec, op, cause, format, args...)
}

func MuxError(op string, cause error, format string, args ...any) *Error {
	return NewError(ErrCodeMux, op, cause, format, args...)
}

func IOError(op string, cause error, format string, args ...any) *Error {
	return NewError(ErrCodeIO, op, cause, format, args...)
}

func NotRunning(op string, format string, args ...any) *Error {
	return NewError(ErrCodeNotRunning, op, nil, format, args...)
}

// CodeOf returns the code of the outermost *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Coerce wraps err in an *Error with code unless it already carries one.
func Coerce(err error, code, op string) error {
	if err == nil || CodeOf(err) != "" {
		return err
	}
	return NewError(code, op, err, "")
}
