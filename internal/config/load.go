package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	appDir := filepath.Join(configDir, "fieldscribe")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(appDir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run fieldscribe configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	log.Printf("config: loading configuration from %s", configPath)
	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}

	config.applyDefaults()

	log.Printf("config: configuration loaded successfully")
	return &config, nil
}

// LoadOrDefault returns the stored configuration, or the defaults when
// none has been written yet.
func LoadOrDefault() (*Config, error) {
	cfg, err := Load()
	if errors.Is(err, ErrConfigNotFound) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save writes the configuration to the config path. Used by the
// configure wizard.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", configPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	log.Printf("config: configuration saved to %s", configPath)
	return nil
}

// applyDefaults fills zero values the TOML file omitted with the shipped
// defaults, so a sparse config stays valid.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Recording.SampleRate == 0 {
		c.Recording.SampleRate = def.Recording.SampleRate
	}
	if c.Recording.Channels == 0 {
		c.Recording.Channels = def.Recording.Channels
	}
	if c.Recording.Format == "" {
		c.Recording.Format = def.Recording.Format
	}
	if c.Recording.BufferSize == 0 {
		c.Recording.BufferSize = def.Recording.BufferSize
	}
	if c.Recording.ChannelBufferSize == 0 {
		c.Recording.ChannelBufferSize = def.Recording.ChannelBufferSize
	}

	if c.Capture.SilenceTimeout == 0 {
		c.Capture.SilenceTimeout = def.Capture.SilenceTimeout
	}
	if c.Capture.SilenceThreshold == 0 {
		c.Capture.SilenceThreshold = def.Capture.SilenceThreshold
	}
	if c.Capture.MaxDuration == 0 {
		c.Capture.MaxDuration = def.Capture.MaxDuration
	}

	if c.Transcription.Provider == "" {
		c.Transcription.Provider = def.Transcription.Provider
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = DefaultModelForProvider(c.Transcription.Provider)
	}

	if c.Notifications.Type == "" {
		c.Notifications.Type = def.Notifications.Type
	}
}

// ResolveOutputDir returns the handoff directory for completed captures,
// creating it if needed. An empty configured directory falls back to the
// user data dir.
func (c *Config) ResolveOutputDir() (string, error) {
	dir := c.Output.Directory
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share", "fieldscribe", "captures")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return dir, nil
}
