package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Remote   RemoteConfig   `toml:"remote"`
	Server   ServerConfig   `toml:"server"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Mode        *string  `toml:"mode"`
	Time        *int     `toml:"time"`
	Words       *int     `toml:"words"`
	Lang        *string  `toml:"lang"`
	Punctuation *bool    `toml:"punctuation"`
	Numbers     *bool    `toml:"numbers"`
	Freedom     *bool    `toml:"freedom"`
	HideExtra   *bool    `toml:"hide-extra"`
	Difficulty  *string  `toml:"difficulty"`
	Username    *string  `toml:"username"`
	Caps        *float64 `toml:"caps"`
	FocusWeak   *bool    `toml:"focus-weak"`
	WeakTop     *int     `toml:"weak-top"`
	WeakFactor  *float64 `toml:"weak-factor"`
	WeakWindow  *int     `toml:"weak-window"`
}

// RemoteConfig points the practice client at a results server.
type RemoteConfig struct {
	URL        *string `toml:"url"`
	APIKey     *string `toml:"api-key"`
	TimeoutSec *int    `toml:"timeout-sec"`
}

// ServerConfig maps serve command settings.
type ServerConfig struct {
	Addr   *string `toml:"addr"`
	DB     *string `toml:"db"`
	APIKey *string `toml:"api-key"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
