package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 10

// Error carries an ErrorCode plus the message and details that go out in API
// responses. Err keeps the cause for errors.Is/As.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error

	pcs []uintptr
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format prints the cause chain for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		fmt.Fprintf(s, "[%d] %s", e.Code, e.Error())
		if e.Err != nil {
			fmt.Fprintf(s, ": %+v", e.Err)
		}
	case verb == 'q':
		fmt.Fprintf(s, "%q", e.Error())
	default:
		fmt.Fprint(s, e.Error())
	}
}

// Stack renders the frames captured when the error was created.
func (e *Error) Stack() string {
	if len(e.pcs) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			return b.String()
		}
	}
}

func newError(code ErrorCode, msg string, cause error) *Error {
	pcs := make([]uintptr, maxStackDepth)
	// Skip runtime.Callers, newError and the exported constructor.
	n := runtime.Callers(3, pcs)
	return &Error{Code: code, Message: msg, Err: cause, pcs: pcs[:n]}
}

func New(code ErrorCode) *Error {
	return newError(code, code.Message(), nil)
}

func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code to err and keeps err's text as the message.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	return newError(code, err.Error(), err)
}

// Wrapf attaches code to err with a new message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(code, fmt.Sprintf(format, args...), err)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetCode returns the outermost code in err's chain, Success for nil and
// InternalServerError for errors that carry no code.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return InternalServerError
}

// GetError returns the outermost *Error in err's chain, wrapping plain
// errors as InternalServerError.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, InternalServerError)
}

// Is reports whether any *Error in err's chain has code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	for stderrors.As(err, &e) {
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

func BadRequest(msg string) *Error {
	return newError(InvalidParams, msg, nil)
}

// ValidationError reports a bad request field with the reason in Details.
func ValidationError(field, reason string) *Error {
	return newError(ValidationFailed, ValidationFailed.Message(), nil).
		WithDetail("field", field).
		WithDetail("reason", reason)
}
