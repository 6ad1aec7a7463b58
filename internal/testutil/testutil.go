package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/config"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	return &config.Config{
		Recording: config.RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			BufferSize:        4096,
			Device:            "",
			ChannelBufferSize: 30,
		},
		Capture: config.CaptureConfig{
			SilenceTimeout:    5 * time.Second,
			SilenceThreshold:  0.01,
			MaxDuration:       5 * time.Minute,
			Encoding:          "",
			LiveTranscription: true,
		},
		Transcription: config.TranscriptionConfig{
			Provider: "deepgram",
			Language: "",
			Model:    "nova-3",
		},
		Providers: map[string]config.ProviderConfig{
			"deepgram": {APIKey: "test-api-key"},
		},
		Notifications: config.NotificationsConfig{
			Enabled: true,
			Type:    "log",
		},
	}
}

// TestConfigWithInvalidValues returns a config with invalid values for testing validation
func TestConfigWithInvalidValues() *config.Config {
	return &config.Config{
		Recording: config.RecordingConfig{
			SampleRate:        0,  // Invalid
			Channels:          0,  // Invalid
			Format:            "", // Invalid
			BufferSize:        0,  // Invalid
			ChannelBufferSize: 0,  // Invalid
		},
		Capture: config.CaptureConfig{
			SilenceTimeout:   0,  // Invalid
			SilenceThreshold: -1, // Invalid
			MaxDuration:      0,  // Invalid
		},
		Transcription: config.TranscriptionConfig{
			Provider: "", // Invalid
		},
		Notifications: config.NotificationsConfig{
			Type: "invalid", // Invalid
		},
	}
}

// TempDir creates a temp directory cleaned up with the test.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteFile writes a file under dir, failing the test on error.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
