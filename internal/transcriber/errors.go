package transcriber

import (
	"errors"
	"strings"
)

// Non-critical recognition conditions. These are expected during normal
// use and are swallowed rather than surfaced to the caller.
var (
	ErrNoSpeech = errors.New("no speech detected")
	ErrAborted  = errors.New("recognition aborted")
)

// FatalTranscriptionError marks an error as non-recoverable for the current session.
type FatalTranscriptionError struct {
	Err error
}

func (e *FatalTranscriptionError) Error() string {
	if e == nil || e.Err == nil {
		return "fatal transcription error"
	}
	return e.Err.Error()
}

func (e *FatalTranscriptionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func NewFatalTranscriptionError(err error) error {
	if err == nil {
		return nil
	}
	return &FatalTranscriptionError{Err: err}
}

func IsFatalTranscriptionError(err error) bool {
	var fatal *FatalTranscriptionError
	return errors.As(err, &fatal)
}

// IsNonCritical reports whether a recognition error should be silently
// ignored (no speech, aborted recognition).
func IsNonCritical(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no speech") || strings.Contains(msg, "aborted")
}
