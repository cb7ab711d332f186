package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds the device and region parameters wearctl uses when they
// are not given as flags.
type Config struct {
	DeviceSize int `json:"device_size,omitempty"` //nolint:tagliatelle // snake_case for config file
	Start      int `json:"start,omitempty"`
	Items      int `json:"items,omitempty"`
	ItemSize   int `json:"item_size,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".wearctl.json"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigInvalid      = errors.New("invalid config file")
)

// DefaultConfig returns the default configuration: a 4 KiB device with a
// single 16-record region of 16-byte payloads at address 0.
func DefaultConfig() Config {
	return Config{
		DeviceSize: 4096,
		Start:      0,
		Items:      16,
		ItemSize:   16,
	}
}

// getGlobalConfigPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/wearctl/config.json if set, otherwise
// ~/.config/wearctl/config.json. Returns empty string if the home
// directory cannot be determined.
func getGlobalConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "wearctl", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "wearctl", "config.json")
	}

	return ""
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/wearctl/config.json)
// 3. Project config file (.wearctl.json in workDir, if it exists)
// 4. Explicit config file via configPath (if non-empty).
//
// Flag overrides are applied by the caller on top of the result.
func LoadConfig(workDir, configPath string) (Config, error) {
	cfg := DefaultConfig()

	if globalPath := getGlobalConfigPath(); globalPath != "" {
		globalCfg, loaded, err := loadConfigFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = mergeConfig(cfg, globalCfg)
		}
	}

	cfgFile := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true
	}

	fileCfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = mergeConfig(cfg, fileCfg)
	}

	err = validateConfig(cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadConfigFile loads a config file. If mustExist is false, missing
// files return zero config. The file may contain JSONC (comments and
// trailing commas).
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}

		return Config{}, false, nil
	}

	cfg, parseErr := parseConfig(data)
	if parseErr != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, parseErr)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	// Standardize JSONC to JSON.
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.DeviceSize != 0 {
		base.DeviceSize = overlay.DeviceSize
	}

	if overlay.Start != 0 {
		base.Start = overlay.Start
	}

	if overlay.Items != 0 {
		base.Items = overlay.Items
	}

	if overlay.ItemSize != 0 {
		base.ItemSize = overlay.ItemSize
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.DeviceSize < 1 {
		return fmt.Errorf("%w: device_size must be >= 1", errConfigInvalid)
	}

	if cfg.Items < 1 || cfg.Items > 255 {
		return fmt.Errorf("%w: items must be in [1,255]", errConfigInvalid)
	}

	if cfg.ItemSize < 1 {
		return fmt.Errorf("%w: item_size must be >= 1", errConfigInvalid)
	}

	if cfg.Start < 0 {
		return fmt.Errorf("%w: start must be >= 0", errConfigInvalid)
	}

	return nil
}
