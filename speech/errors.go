package speech

import "errors"

// ErrorCode is the stable numeric error namespace of the engine boundary.
// The values are additive: callers must treat codes they do not know as
// generic failures.
type ErrorCode int

const (
	CodeOK ErrorCode = 0x0000

	// Missing inputs.
	CodeNoModel ErrorCode = 0x1000

	// Invalid parameters.
	CodeInvalidAlphabet   ErrorCode = 0x2000
	CodeInvalidShape      ErrorCode = 0x2001
	CodeInvalidLM         ErrorCode = 0x2002
	CodeModelIncompatible ErrorCode = 0x2003

	// Runtime failures.
	CodeFailInitMmap      ErrorCode = 0x3000
	CodeFailInitSession   ErrorCode = 0x3001
	CodeFailInterpreter   ErrorCode = 0x3002
	CodeFailRunSession    ErrorCode = 0x3003
	CodeFailCreateStream  ErrorCode = 0x3004
	CodeFailReadModel     ErrorCode = 0x3005
	CodeFailCreateSession ErrorCode = 0x3006
	CodeFailCreateModel   ErrorCode = 0x3007

	// CodeUnknown is returned by CodeOf for errors outside the namespace.
	CodeUnknown ErrorCode = -1
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNoModel:
		return "missing model"
	case CodeInvalidAlphabet:
		return "invalid alphabet"
	case CodeInvalidShape:
		return "invalid shape"
	case CodeInvalidLM:
		return "invalid language model"
	case CodeModelIncompatible:
		return "incompatible model"
	case CodeFailInitMmap:
		return "mmap initialization failed"
	case CodeFailInitSession:
		return "session initialization failed"
	case CodeFailInterpreter:
		return "interpreter failure"
	case CodeFailRunSession:
		return "session run failed"
	case CodeFailCreateStream:
		return "stream creation failed"
	case CodeFailReadModel:
		return "model file read failed"
	case CodeFailCreateSession:
		return "session creation failed"
	case CodeFailCreateModel:
		return "model creation failed"
	default:
		return "unknown failure"
	}
}

// Error pairs an ErrorCode with detail. Every fallible engine operation
// returns either nil or an *Error (possibly wrapping a cause).
type Error struct {
	Code  ErrorCode
	msg   string
	cause error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.msg != "" {
		s += ": " + e.msg
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, msg: msg, cause: cause}
}

// CodeOf extracts the ErrorCode from err. It returns CodeOK for nil and
// CodeUnknown for errors outside the namespace.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ErrStreamDone reports an operation on a stream that was already
// finalized or discarded. Use-after-finish is a caller contract
// violation; this sentinel exists so tests and defensive callers can
// detect it.
var ErrStreamDone = errors.New("stream already finalized")
