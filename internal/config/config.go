// Package config loads and saves ~/.memscan/config.toml: the engine
// tunables (worker count, block size, freeze-tick interval, history
// cap, region-filter toggles). Saves go through natefinch/atomic so a
// crash or power loss mid-write never leaves a half-written file, the
// same guarantee the example pack's ticket store relies on for its own
// on-disk state.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"
)

// Config is the ~/.memscan/config.toml shape.
type Config struct {
	Workers          int   `toml:"workers,omitempty" json:"workers"`
	BlockSizeBytes   int64 `toml:"block_size_bytes,omitempty" json:"block_size_bytes"`
	FreezeTickMillis int64 `toml:"freeze_tick_millis,omitempty" json:"freeze_tick_millis"`
	HistoryCap       int   `toml:"history_cap,omitempty" json:"history_cap"`
	SkipSystemLibs   bool  `toml:"skip_system_libs" json:"skip_system_libs"`
	MinRegionBytes   int64 `toml:"min_region_bytes,omitempty" json:"min_region_bytes"`
}

// Defaults mirrors session.DefaultOptions and workerpool.DefaultSize so
// a freshly written config.toml documents the engine's built-in
// defaults rather than shipping a blank file.
func Defaults() Config {
	return Config{
		Workers:          0, // 0 means workerpool.DefaultSize() at engine construction
		BlockSizeBytes:   10 << 20,
		FreezeTickMillis: 500,
		HistoryCap:       20,
		SkipSystemLibs:   true,
		MinRegionBytes:   1 << 20,
	}
}

var configDirOverride string

// SetConfigDir overrides the config directory, for the --config-dir flag.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// Home returns the config directory. Precedence: --config-dir flag >
// MEMSCAN_HOME env var > ~/.memscan.
func Home() string {
	if configDirOverride != "" {
		return configDirOverride
	}
	if v := os.Getenv("MEMSCAN_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".memscan")
	}
	return filepath.Join(home, ".memscan")
}

// Path returns the full path to config.toml.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// HistoryPath returns the full path to the REPL's persisted query history.
func HistoryPath() string {
	return filepath.Join(Home(), "repl_history")
}

// EnsureDir creates the memscan home directory if it does not exist.
func EnsureDir() error {
	return os.MkdirAll(Home(), 0o755)
}

// Load reads config.toml, falling back to Defaults() if it doesn't exist.
func Load() (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	return &cfg, nil
}

// Save atomically writes cfg to config.toml.
func Save(cfg *Config) error {
	if err := EnsureDir(); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return atomic.WriteFile(Path(), bytes.NewReader(data))
}

// validKeys lists the keys Get/Set accept, mirroring the teacher's flat
// validKeys map.
var validKeys = map[string]bool{
	"workers":            true,
	"block_size_bytes":   true,
	"freeze_tick_millis": true,
	"history_cap":        true,
	"skip_system_libs":   true,
	"min_region_bytes":   true,
}

// Get retrieves a single config value by key.
func Get(key string) (string, error) {
	if !validKeys[key] {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return getField(cfg, key), nil
}

// Set sets a single config value by key and saves the result.
func Set(key, value string) error {
	if !validKeys[key] {
		return fmt.Errorf("unknown config key: %s", key)
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if err := setField(cfg, key, value); err != nil {
		return err
	}
	return Save(cfg)
}

// Keys returns every valid config key, for `memscan config` listing.
func Keys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	return keys
}

func getField(cfg *Config, key string) string {
	switch key {
	case "workers":
		return strconv.Itoa(cfg.Workers)
	case "block_size_bytes":
		return strconv.FormatInt(cfg.BlockSizeBytes, 10)
	case "freeze_tick_millis":
		return strconv.FormatInt(cfg.FreezeTickMillis, 10)
	case "history_cap":
		return strconv.Itoa(cfg.HistoryCap)
	case "skip_system_libs":
		return strconv.FormatBool(cfg.SkipSystemLibs)
	case "min_region_bytes":
		return strconv.FormatInt(cfg.MinRegionBytes, 10)
	default:
		return ""
	}
}

func setField(cfg *Config, key, value string) error {
	switch key {
	case "workers":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing workers: %w", err)
		}
		cfg.Workers = v
	case "block_size_bytes":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing block_size_bytes: %w", err)
		}
		cfg.BlockSizeBytes = v
	case "freeze_tick_millis":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing freeze_tick_millis: %w", err)
		}
		cfg.FreezeTickMillis = v
	case "history_cap":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parsing history_cap: %w", err)
		}
		cfg.HistoryCap = v
	case "skip_system_libs":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("parsing skip_system_libs: %w", err)
		}
		cfg.SkipSystemLibs = v
	case "min_region_bytes":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing min_region_bytes: %w", err)
		}
		cfg.MinRegionBytes = v
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
