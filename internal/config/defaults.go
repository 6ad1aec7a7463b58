package config

import "time"

// DefaultConfig returns the initial configuration used for onboarding.
func DefaultConfig() *Config {
	return &Config{
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "s16le",
			BufferSize:        4096,
			Device:            "",
			ChannelBufferSize: 30,
		},
		Capture: CaptureConfig{
			SilenceTimeout:    5 * time.Second,
			SilenceThreshold:  0.01,
			MaxDuration:       5 * time.Minute,
			Encoding:          "",
			LiveTranscription: true,
		},
		Transcription: TranscriptionConfig{
			Provider: "deepgram",
			Language: "",
			Model:    "nova-3",
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Type:    "none",
		},
		Output: OutputConfig{
			Directory: "",
		},
		Providers: make(map[string]ProviderConfig),
	}
}

// DefaultModelForProvider returns the transcription model used when the
// config leaves the model empty. Model names are provider-specific:
// nova-3 would be rejected by the whisper endpoint and vice versa.
func DefaultModelForProvider(provider string) string {
	switch provider {
	case "openai":
		return "whisper-1"
	case "deepgram":
		return "nova-3"
	default:
		return ""
	}
}
