// Package config_test tests the configuration loading for the speak-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/speak-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[azure]
api_key = "secret"
region = "westeurope"
default_voice = "en-GB-SoniaNeural"
timeout_seconds = 15
token_ttl_seconds = 600
token_margin_seconds = 60

[nats]
url = "nats://127.0.0.1:4222"
settings_bucket = "SETTINGS"
speak_subject = "speak.now"

[popup]
listen_addr = "127.0.0.1:9000"

[paths]
base_logs_dir = "/var/log/speak"
settings_file = "/etc/speak/settings.toml"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	cfg.Defaults()

	assert.Equal(t, "secret", cfg.Azure.APIKey)
	assert.Equal(t, "westeurope", cfg.Azure.Region)
	assert.Equal(t, "en-GB-SoniaNeural", cfg.Azure.DefaultVoice)
	assert.Equal(t, 15*time.Second, cfg.Azure.Timeout())
	assert.Equal(t, 10*time.Minute, cfg.Azure.TokenTTL())
	assert.Equal(t, time.Minute, cfg.Azure.TokenMargin())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "SETTINGS", cfg.NATS.SettingsBucket)
	assert.Equal(t, "speak.now", cfg.NATS.SpeakSubject)
	assert.Equal(t, "127.0.0.1:9000", cfg.Popup.ListenAddr)
	assert.Equal(t, "/var/log/speak", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/etc/speak/settings.toml", cfg.Paths.SettingsFile)
}

func TestDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(config.EnvDataDir, dataDir)

	var cfg config.Config

	cfg.Defaults()

	assert.Equal(t, config.DefaultVoice, cfg.Azure.DefaultVoice)
	assert.Equal(t, 30*time.Second, cfg.Azure.Timeout())
	assert.Equal(t, 10*time.Minute, cfg.Azure.TokenTTL())
	assert.Equal(t, time.Minute, cfg.Azure.TokenMargin())
	assert.Equal(t, "TTS_SETTINGS", cfg.NATS.SettingsBucket)
	assert.Equal(t, "tts.speak", cfg.NATS.SpeakSubject)
	assert.Equal(t, "127.0.0.1:8088", cfg.Popup.ListenAddr)
	assert.Equal(t, 4, cfg.Playback.ResampleQuality)
	assert.Equal(t, 100*time.Millisecond, cfg.Playback.Buffer())
	assert.Equal(t, filepath.Join(dataDir, "settings.toml"), cfg.Paths.SettingsFile)
	assert.Equal(t, filepath.Join(dataDir, "logs"), cfg.Paths.BaseLogsDir)
}

func TestDataDir(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		t.Setenv(config.EnvDataDir, "/custom/speak")

		assert.Equal(t, "/custom/speak", config.DataDir())
	})

	t.Run("home default", func(t *testing.T) {
		t.Setenv(config.EnvDataDir, "")

		homeDir, err := os.UserHomeDir()
		if err != nil {
			t.Skip("Skipping test: could not determine user home directory")
		}

		assert.Equal(t, filepath.Join(homeDir, ".cache", "speak-service"), config.DataDir())
	})
}
