package config

import (
	"os"

	"github.com/fieldscribe/fieldscribe/internal/capture"
	"github.com/fieldscribe/fieldscribe/internal/recording"
	"github.com/fieldscribe/fieldscribe/internal/transcriber"
)

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		BufferSize:        c.Recording.BufferSize,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

func (c *Config) ToCaptureConfig() capture.Config {
	return capture.Config{
		Language:          c.resolveEffectiveLanguage(),
		SilenceTimeout:    c.Capture.SilenceTimeout,
		SilenceThreshold:  c.Capture.SilenceThreshold,
		MaxDuration:       c.Capture.MaxDuration,
		PreferredEncoding: c.Capture.Encoding,
		LiveTranscription: c.Capture.LiveTranscription,
		SampleRate:        c.Recording.SampleRate,
	}
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	cfg := transcriber.Config{
		Provider:   c.Transcription.Provider,
		Language:   c.resolveEffectiveLanguage(),
		Model:      c.Transcription.Model,
		SampleRate: c.Recording.SampleRate,
		Endpoint:   c.Transcription.Endpoint,
	}
	cfg.APIKey = c.resolveAPIKeyForProvider(c.Transcription.Provider)
	return cfg
}

// resolveEffectiveLanguage returns the effective language for
// transcription. transcription.language overrides general.language.
func (c *Config) resolveEffectiveLanguage() string {
	if c.Transcription.Language != "" {
		return c.Transcription.Language
	}
	return c.General.Language
}

// resolveAPIKeyForProvider checks the providers table first, then the
// provider's environment variable.
func (c *Config) resolveAPIKeyForProvider(provider string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[provider]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}

	switch provider {
	case "deepgram":
		return os.Getenv(transcriber.EnvDeepgramKey)
	case "openai":
		return os.Getenv(transcriber.EnvOpenAIKey)
	}
	return ""
}
