// Package config resolves application paths and reads the TOML config file.
package config

import (
	"os"
	"path/filepath"
)

const appName = "typetest"

// xdgDir returns $env when it holds an absolute path, otherwise the fallback
// under the home directory. Relative XDG values are invalid and ignored.
func xdgDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" && filepath.IsAbs(v) {
		return filepath.Join(v, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

func configDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }
func dataDir() string   { return xdgDir("XDG_DATA_HOME", ".local", "share") }
func stateDir() string  { return xdgDir("XDG_STATE_HOME", ".local", "state") }
func cacheDir() string  { return xdgDir("XDG_CACHE_HOME", ".cache") }

// DefaultConfigPath returns the TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultWordListDir holds user supplied <lang>.txt lists.
func DefaultWordListDir() string {
	return filepath.Join(configDir(), "wordlists")
}

// DefaultDBPath returns the local results database.
func DefaultDBPath() string {
	return filepath.Join(dataDir(), appName+".db")
}

// DefaultServerDBPath returns the database used by the serve command.
func DefaultServerDBPath() string {
	return filepath.Join(dataDir(), "server.db")
}

// DefaultLogPath returns the log file written during TUI runs.
func DefaultLogPath() string {
	return filepath.Join(stateDir(), appName+".log")
}

// DefaultWordfreqCacheDir keeps downloaded wordfreq wheels.
func DefaultWordfreqCacheDir() string {
	return filepath.Join(cacheDir(), "wordfreq")
}
