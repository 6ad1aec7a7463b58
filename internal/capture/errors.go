package capture

import "errors"

// Code is the closed set of capture error codes.
type Code string

const (
	CodePermissionDenied    Code = "permission-denied"
	CodeNoMicrophone        Code = "no-microphone"
	CodeRecorderUnsupported Code = "recorder-unsupported"
	CodeRecordingFailed     Code = "recording-failed"
	CodeAlreadyRecording    Code = "already-recording"
	CodeNotRecording        Code = "not-recording"
	CodeHostUnsupported     Code = "host-unsupported"
)

// Error is a capture error tagged with a code, carrying a human-readable
// message and the originating low-level cause if any.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "capture error"
	}
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// IsCode reports whether err is a capture Error with the given code.
func IsCode(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
