// Package capture implements the dual-mode capture engine: it records
// encoded audio for later processing while running a best-effort live
// transcription stream, monitors signal amplitude for the level meter and
// silence cutoff, and coordinates every subsystem through one state
// machine with deterministic teardown on all exit paths.
package capture

import (
	"fmt"
	"time"
)

type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting-permission"
	StateRecording            State = "recording"
	StatePaused               State = "paused"
	StateStopping             State = "stopping"
	StateCompleted            State = "completed"
	StateError                State = "error"
)

// Active reports whether a capture attempt is in flight in this state.
func (s State) Active() bool {
	switch s {
	case StateRequestingPermission, StateRecording, StatePaused, StateStopping:
		return true
	}
	return false
}

// StopReason identifies what ended a capture attempt. Exactly one reason
// is attached to every completed or failed capture.
type StopReason string

const (
	ReasonUser             StopReason = "user"
	ReasonSilence          StopReason = "silence"
	ReasonMaxDuration      StopReason = "max-duration"
	ReasonError            StopReason = "error"
	ReasonPermissionDenied StopReason = "permission-denied"
)

// Config is the caller-supplied capture session configuration, immutable
// for the lifetime of one attempt.
type Config struct {
	Language          string
	SilenceTimeout    time.Duration
	SilenceThreshold  float64 // normalized RMS amplitude in [0,1]
	MaxDuration       time.Duration
	PreferredEncoding string // empty falls back to the first supported encoding
	LiveTranscription bool
	SampleRate        int
}

func DefaultConfig() Config {
	return Config{
		Language:          "",
		SilenceTimeout:    5 * time.Second,
		SilenceThreshold:  0.01,
		MaxDuration:       5 * time.Minute,
		PreferredEncoding: "",
		LiveTranscription: true,
		SampleRate:        16000,
	}
}

func (c Config) Validate() error {
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("invalid SilenceTimeout: %v", c.SilenceTimeout)
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("invalid SilenceThreshold: %v (must be in [0,1])", c.SilenceThreshold)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("invalid MaxDuration: %v", c.MaxDuration)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.SampleRate)
	}
	return nil
}

// Result is produced exactly once per successful capture, then immutable.
// The engine retains no reference after handing it to the caller.
type Result struct {
	Payload    []byte
	Encoding   string
	Duration   float64 // seconds
	Transcript string  // best-effort live transcript, may be empty
	Reason     StopReason
	StartedAt  time.Time
	EndedAt    time.Time
}
