// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides (FOCUS_TIMER_SLEEP_THRESHOLD).
const EnvPrefix = "FOCUS_"

// FileConfig represents the TOML configuration file. Unset keys stay nil.
type FileConfig struct {
	Timer     TimerFileConfig     `toml:"timer" koanf:"timer"`
	Companion CompanionFileConfig `toml:"companion" koanf:"companion"`
	API       APIFileConfig       `toml:"api" koanf:"api"`
	Review    ReviewFileConfig    `toml:"review" koanf:"review"`
	Log       LogFileConfig       `toml:"log" koanf:"log"`
	Serve     ServeFileConfig     `toml:"serve" koanf:"serve"`
}

// TimerFileConfig maps timer settings.
type TimerFileConfig struct {
	DefaultType    *string   `toml:"default-type" koanf:"default_type"`
	SleepThreshold *Duration `toml:"sleep-threshold" koanf:"sleep_threshold"`
	RecoveryWindow *Duration `toml:"recovery-window" koanf:"recovery_window"`
	TickInterval   *Duration `toml:"tick-interval" koanf:"tick_interval"`
}

// CompanionFileConfig maps background sync settings.
type CompanionFileConfig struct {
	URL          *string   `toml:"url" koanf:"url"`
	MaxRetries   *int      `toml:"max-retries" koanf:"max_retries"`
	RetryBackoff *Duration `toml:"retry-backoff" koanf:"retry_backoff"`
	RateLimit    *float64  `toml:"rate-limit" koanf:"rate_limit"`
	Burst        *int      `toml:"burst" koanf:"burst"`
}

// APIFileConfig maps collaborator API settings.
type APIFileConfig struct {
	URL *string `toml:"url" koanf:"url"`
}

// ReviewFileConfig maps review scheduler settings.
type ReviewFileConfig struct {
	PollInterval *Duration `toml:"poll-interval" koanf:"poll_interval"`
}

// LogFileConfig maps logging settings.
type LogFileConfig struct {
	Level  *string `toml:"level" koanf:"level"`
	Format *string `toml:"format" koanf:"format"`
	File   *string `toml:"file" koanf:"file"`
}

// ServeFileConfig maps companion server settings.
type ServeFileConfig struct {
	Addr *string `toml:"addr" koanf:"addr"`
	DB   *string `toml:"db" koanf:"db"`
}

// LoadConfig reads a TOML config from the given path and applies FOCUS_* environment
// overrides. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	var cfg FileConfig
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := applyEnv(&cfg, EnvPrefix); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of the decoded file.
//
//	FOCUS_TIMER_SLEEP_THRESHOLD -> timer.sleep_threshold
//	FOCUS_COMPANION_URL         -> companion.url
func applyEnv(cfg *FileConfig, prefix string) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 1 {
			return key
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}
