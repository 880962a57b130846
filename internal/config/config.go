// Package config loads gateway configuration from a YAML file with
// environment-variable overrides, following the layering the teacher's
// own config package uses (file defaults, thin os.Getenv overrides).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "tgstream-gateway"

	// DefaultChunkSize is the upstream fetch unit; not configurable, it is
	// part of the protocol alignment contract (spec §4.E).
	DefaultChunkSize = 1024 * 1024
)

// ClientConfig describes one upstream authenticated identity: its home
// datacenter and the credentials needed to start a session there.
type ClientConfig struct {
	Index       int    `yaml:"index"`
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	HomeDC      int    `yaml:"home_dc"`
	SessionPath string `yaml:"session_path,omitempty"`
}

// Config is the complete gateway configuration. Field names match spec §6's
// enumerated configuration surface one-for-one.
type Config struct {
	// Port is the HTTP listener (env: PORT).
	Port int `yaml:"port"`

	// Parallel feeds the prefetch queue's capacity (spec §9: the name is
	// swapped relative to its effect, kept verbatim). (env: PARALLEL)
	Parallel int `yaml:"parallel"`

	// PreFetch feeds the number of concurrent in-flight chunk fetches per
	// stream (spec §9). (env: PRE_FETCH)
	PreFetch int `yaml:"pre_fetch"`

	// BaseURL is used to mint stream URLs in the (out-of-scope) catalog
	// layer; carried here only so it can be read by that collaborator.
	// (env: BASE_URL)
	BaseURL string `yaml:"base_url,omitempty"`

	// HideCatalog suppresses catalog endpoints (catalog layer only, not
	// consulted by the core). (env: HIDE_CATALOG)
	HideCatalog bool `yaml:"hide_catalog,omitempty"`

	// IDSecret derives the key for the opaque-id codec (internal/idcodec).
	// (env: ID_SECRET)
	IDSecret string `yaml:"id_secret"`

	// QuotaStorePath is where the default file-backed token store persists
	// usage counters (internal/quota). (env: QUOTA_STORE_PATH)
	QuotaStorePath string `yaml:"quota_store_path,omitempty"`

	// Clients enumerates every upstream identity the pool may use, and
	// their DC assignment (client_dc_map in spec §6).
	Clients []ClientConfig `yaml:"clients"`
}

// Dir returns the standard config directory, mirroring the teacher's
// ConfigDir (Windows: %APPDATA%, else ~/.config).
func Dir() (string, error) {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Default returns a Config with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Port:           8080,
		Parallel:       3,
		PreFetch:       2,
		QuotaStorePath: "",
	}
}

// Load reads the config file if present, then applies environment
// overrides for every scalar field spec §6 enumerates.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, yamlErr)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Port <= 0 {
		return nil, fmt.Errorf("config: port must be positive, got %d", cfg.Port)
	}
	if len(cfg.Clients) == 0 {
		return nil, fmt.Errorf("config: at least one client must be configured")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallel = n
		}
	}
	if v := os.Getenv("PRE_FETCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PreFetch = n
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("HIDE_CATALOG"); v != "" {
		cfg.HideCatalog = v == "1" || v == "true"
	}
	if v := os.Getenv("ID_SECRET"); v != "" {
		cfg.IDSecret = v
	}
	if v := os.Getenv("QUOTA_STORE_PATH"); v != "" {
		cfg.QuotaStorePath = v
	}
}
