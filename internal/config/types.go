package config

import "time"

// GeneralConfig holds global settings that apply across the application.
type GeneralConfig struct {
	// Language is the default spoken-language hint (ISO-639-1). Empty
	// means auto-detect. transcription.language overrides it.
	Language string `toml:"language"`
}

type Config struct {
	General       GeneralConfig             `toml:"general"`
	Recording     RecordingConfig           `toml:"recording"`
	Capture       CaptureConfig             `toml:"capture"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Output        OutputConfig              `toml:"output"`
	Providers     map[string]ProviderConfig `toml:"providers"`
}

// ProviderConfig holds the API key for a transcription provider.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"`
	BufferSize        int    `toml:"buffer_size"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

// CaptureConfig drives the capture state machine: automatic cutoffs and
// the output encoding.
type CaptureConfig struct {
	SilenceTimeout    time.Duration `toml:"silence_timeout"`
	SilenceThreshold  float64       `toml:"silence_threshold"` // normalized RMS in [0,1]
	MaxDuration       time.Duration `toml:"max_duration"`
	Encoding          string        `toml:"encoding"` // empty picks the first supported
	LiveTranscription bool          `toml:"live_transcription"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"`
	Language string `toml:"language"`
	Model    string `toml:"model"`
	Endpoint string `toml:"endpoint"` // streaming endpoint override
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

// OutputConfig says where completed captures land: the payload file plus
// a transcript sidecar, named by capture timestamp.
type OutputConfig struct {
	Directory string `toml:"directory"`
}
