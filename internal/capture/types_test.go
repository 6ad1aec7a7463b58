package capture

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"zero silence timeout", func(c *Config) { c.SilenceTimeout = 0 }, true},
		{"negative silence timeout", func(c *Config) { c.SilenceTimeout = -time.Second }, true},
		{"threshold above one", func(c *Config) { c.SilenceThreshold = 1.5 }, true},
		{"negative threshold", func(c *Config) { c.SilenceThreshold = -0.1 }, true},
		{"zero threshold is valid", func(c *Config) { c.SilenceThreshold = 0 }, false},
		{"zero max duration", func(c *Config) { c.MaxDuration = 0 }, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateActive(t *testing.T) {
	active := map[State]bool{
		StateIdle:                 false,
		StateRequestingPermission: true,
		StateRecording:            true,
		StatePaused:               true,
		StateStopping:             true,
		StateCompleted:            false,
		StateError:                false,
	}
	for state, want := range active {
		if got := state.Active(); got != want {
			t.Errorf("%s.Active() = %v, want %v", state, got, want)
		}
	}
}

func TestErrorUnwrapAndIsCode(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewError(CodeRecordingFailed, "capture broke", cause)

	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if !IsCode(err, CodeRecordingFailed) {
		t.Error("IsCode failed on direct error")
	}
	if IsCode(err, CodePermissionDenied) {
		t.Error("IsCode matched the wrong code")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsCode(wrapped, CodeRecordingFailed) {
		t.Error("IsCode failed on wrapped error")
	}

	if IsCode(nil, CodeRecordingFailed) {
		t.Error("IsCode matched nil")
	}
	if IsCode(fmt.Errorf("plain"), CodeRecordingFailed) {
		t.Error("IsCode matched a plain error")
	}
}
