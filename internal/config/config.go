// Package config provides the configuration structure for the speak-service.
package config

import (
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Default values applied by Defaults when a field is left empty.
const (
	DefaultVoice            = "en-US-JennyNeural"
	defaultTimeoutSeconds   = 30
	defaultTokenTTLSeconds  = 600
	defaultTokenMarginSecs  = 60
	defaultSettingsBucket   = "TTS_SETTINGS"
	defaultSpeakSubject     = "tts.speak"
	defaultPopupListenAddr  = "127.0.0.1:8088"
	defaultResampleQuality  = 4
	defaultBufferMillis     = 100
	defaultSettingsFileName = "settings.toml"
)

// AzureConfig holds the speech service connection settings.
type AzureConfig struct {
	// APIKey and Region seed the settings store on first start; the store is
	// authoritative afterwards.
	APIKey             string `toml:"api_key"`
	Region             string `toml:"region"`
	DefaultVoice       string `toml:"default_voice"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	TokenTTLSeconds    int    `toml:"token_ttl_seconds"`
	TokenMarginSeconds int    `toml:"token_margin_seconds"`
	TokenEndpoint      string `toml:"token_endpoint"`
	VoicesEndpoint     string `toml:"voices_endpoint"`
	SynthesisEndpoint  string `toml:"synthesis_endpoint"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL            string `toml:"url"`
	SettingsBucket string `toml:"settings_bucket"`
	SpeakSubject   string `toml:"speak_subject"`
}

// PopupConfig holds the configuration for the local settings HTTP surface.
type PopupConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// PlaybackConfig holds speaker settings.
type PlaybackConfig struct {
	ResampleQuality int `toml:"resample_quality"`
	BufferMillis    int `toml:"buffer_millis"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir  string `toml:"base_logs_dir"`
	SettingsFile string `toml:"settings_file"`
}

// Config is the root configuration structure.
type Config struct {
	Azure    AzureConfig    `toml:"azure"`
	NATS     NATSConfig     `toml:"nats"`
	Popup    PopupConfig    `toml:"popup"`
	Playback PlaybackConfig `toml:"playback"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for the speak-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.Defaults()

	return &cfg, nil
}

// Defaults fills every unset field with its default value.
func (c *Config) Defaults() {
	if c.Azure.DefaultVoice == "" {
		c.Azure.DefaultVoice = DefaultVoice
	}

	if c.Azure.TimeoutSeconds <= 0 {
		c.Azure.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Azure.TokenTTLSeconds <= 0 {
		c.Azure.TokenTTLSeconds = defaultTokenTTLSeconds
	}

	if c.Azure.TokenMarginSeconds <= 0 {
		c.Azure.TokenMarginSeconds = defaultTokenMarginSecs
	}

	if c.NATS.SettingsBucket == "" {
		c.NATS.SettingsBucket = defaultSettingsBucket
	}

	if c.NATS.SpeakSubject == "" {
		c.NATS.SpeakSubject = defaultSpeakSubject
	}

	if c.Popup.ListenAddr == "" {
		c.Popup.ListenAddr = defaultPopupListenAddr
	}

	if c.Playback.ResampleQuality <= 0 {
		c.Playback.ResampleQuality = defaultResampleQuality
	}

	if c.Playback.BufferMillis <= 0 {
		c.Playback.BufferMillis = defaultBufferMillis
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = defaultLogsDir()
	}

	if c.Paths.SettingsFile == "" {
		c.Paths.SettingsFile = defaultSettingsFile()
	}
}

// Timeout returns the HTTP timeout for speech service calls.
func (a AzureConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// TokenTTL returns the issuer-stated token validity.
func (a AzureConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLSeconds) * time.Second
}

// TokenMargin returns how long before real expiry a cached token is dropped.
func (a AzureConfig) TokenMargin() time.Duration {
	return time.Duration(a.TokenMarginSeconds) * time.Second
}

// Buffer returns the speaker buffer length.
func (p PlaybackConfig) Buffer() time.Duration {
	return time.Duration(p.BufferMillis) * time.Millisecond
}
