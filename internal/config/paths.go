package config

import (
	"os"
	"path/filepath"
)

// EnvDataDir overrides the directory holding settings and logs.
const EnvDataDir = "SPEAK_DATA_DIR"

const (
	appName     = "speak-service"
	dotCache    = ".cache"
	logsDirName = "logs"
)

// DataDir returns the directory for the settings file and logs, honouring
// SPEAK_DATA_DIR and falling back to ~/.cache/speak-service, or a directory
// under the system temp dir when there is no home.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// defaultLogsDir is where logs go when paths.base_logs_dir is unset.
func defaultLogsDir() string {
	return filepath.Join(DataDir(), logsDirName)
}

// defaultSettingsFile is the settings file used when paths.settings_file is
// unset.
func defaultSettingsFile() string {
	return filepath.Join(DataDir(), defaultSettingsFileName)
}
