// Package paths resolves configuration, data and sync directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDirName is the per-application directory under the platform roots.
const AppDirName = "workspaces"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "WORKSPACES_CONFIG_DIR"
	EnvDataDir   = "WORKSPACES_DATA_DIR"
	EnvSyncDir   = "WORKSPACES_SYNC_DIR"
)

// SyncDirName is the default shared directory name inside the data dir.
const SyncDirName = "sync"

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	hostname      func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	hostname:      os.Hostname,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/workspaces (fallback ~/.config/workspaces)
// macOS:   ~/Library/Application Support/workspaces
// Windows: %APPDATA%/workspaces
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppDirName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDirName), nil
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/workspaces (fallback ~/.local/share/workspaces)
// macOS and Windows: same as the config directory.
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", AppDirName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDirName), nil
}

// ResolveConfigDir applies flag > WORKSPACES_CONFIG_DIR > DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir applies flag > config value > WORKSPACES_DATA_DIR >
// DefaultDataDir.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ResolveSyncDir applies flag > config value > WORKSPACES_SYNC_DIR >
// <dataDir>/sync.
func ResolveSyncDir(flag, configValue, dataDir string) (string, error) {
	switch {
	case flag != "":
		return filepath.Abs(flag)
	case configValue != "":
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvSyncDir); env != "" {
		return filepath.Abs(env)
	}
	return filepath.Join(dataDir, SyncDirName), nil
}

// DeviceID returns configured when set, else the host name.
func DeviceID(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return platformDir.hostname()
}
