// Package transcriber implements the live transcription subsystem: a
// best-effort stream of interim and final transcript fragments, decoupled
// from the recording subsystem's success or failure.
package transcriber

import (
	"fmt"
	"os"
)

// Provider names accepted in configuration.
const (
	ProviderDeepgram = "deepgram"
	ProviderOpenAI   = "openai"
)

// Environment variable names for API keys.
const (
	EnvDeepgramKey = "DEEPGRAM_API_KEY"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// Config selects and configures a transcription backend.
type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Endpoint   string // websocket endpoint override, empty for the provider default
}

func DefaultConfig() Config {
	return Config{
		Provider:   ProviderDeepgram,
		Model:      "nova-3",
		Language:   "",
		SampleRate: 16000,
	}
}

// ResolveAPIKey fills the API key from the environment when the config
// leaves it empty.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.Provider {
	case ProviderDeepgram:
		return os.Getenv(EnvDeepgramKey)
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIKey)
	}
	return ""
}

// Available reports whether the configured provider is usable (API key
// resolvable). The capability prober consults this.
func (c *Config) Available() bool {
	switch c.Provider {
	case ProviderDeepgram, ProviderOpenAI:
		return c.ResolveAPIKey() != ""
	}
	return false
}

// New builds the live transcription subsystem for the configured
// provider. emit receives transcript events (text plus finality flag);
// active guards supervised restarts — the subsystem only restarts itself
// while active reports true.
func New(config Config, emit func(text string, final bool), active func() bool) (Live, error) {
	apiKey := config.ResolveAPIKey()

	switch config.Provider {
	case ProviderDeepgram:
		if apiKey == "" {
			return nil, fmt.Errorf("Deepgram API key required")
		}
		cfg := config
		cfg.APIKey = apiKey
		return NewStreamingLive(func() StreamingAdapter {
			return NewDeepgramAdapter(cfg)
		}, config.Language, emit, active), nil

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		cfg := config
		cfg.APIKey = apiKey
		return NewBatchLive(NewOpenAIAdapter(cfg), cfg.SampleRate, emit), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}
