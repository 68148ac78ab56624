package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"
)

type Config struct {
	APIKey    string `json:"api_key"`
	APIURL    string `json:"api_url"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	CacheDir  string `json:"cache_dir"`
	Cache     struct {
		Enabled        bool `json:"enabled"`
		MaxSessions    int  `json:"max_sessions"`
		PageSize       int  `json:"page_size"`
		MaxPages       int  `json:"max_pages"`
		Compress       bool `json:"compress"`
		MemoTTLSeconds int  `json:"memo_ttl_seconds"`
	} `json:"cache"`
	HTTP struct {
		TimeoutSeconds int `json:"timeout_seconds"`
		MaxAttempts    int `json:"max_attempts"`
	} `json:"http"`
	Watch struct {
		Schedule string `json:"schedule"`
	} `json:"watch"`
}

// DefaultPath returns $XDG_CONFIG_HOME/gules/config.json, falling back to
// ~/.config/gules/config.json.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "gules", "config.json")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".cache")
	}
	return filepath.Join(dir, "gules")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		APIURL:    "https://jules.googleapis.com/v1alpha",
		LogLevel:  "info",
		LogFormat: "text",
		CacheDir:  defaultCacheDir(),
	}
	cfg.Cache.Enabled = true
	cfg.Cache.MaxSessions = 50
	cfg.Cache.PageSize = 50
	cfg.Cache.MaxPages = 20
	cfg.Cache.MemoTTLSeconds = 300
	cfg.HTTP.TimeoutSeconds = 30
	cfg.HTTP.MaxAttempts = 3
	cfg.Watch.Schedule = "@every 5m"
	return cfg
}

// Load reads the config file at path over the defaults. A missing file is
// created with the defaults. Comments and trailing commas are accepted.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("JULES_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if apiURL := os.Getenv("JULES_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dir := os.Getenv("GULES_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	if level := os.Getenv("GULES_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// MemoTTL is how long decoded session caches stay in memory.
func (c *Config) MemoTTL() time.Duration {
	return time.Duration(c.Cache.MemoTTLSeconds) * time.Second
}

// HTTPTimeout is the per-request timeout of the API client.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a nested map using its JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns cfg as a flat map of dot-separated keys, with secrets
// masked when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}

// GetValue returns the value stored under a dot-separated key in the config
// file, creating the file with defaults if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v, nil
}

// SetValue stores value under a dotted key in an existing config file. The
// key must name a setting and the value must parse as that setting's type.
// Keys already in the file that this version does not know are preserved.
func SetValue(path, key, value string) error {
	k, err := LookupKey(strings.TrimSpace(key))
	if err != nil {
		return err
	}
	typed, err := k.Parse(value)
	if err != nil {
		return err
	}
	m, err := readRaw(path)
	if err != nil {
		return err
	}

	flat := Flatten(m)
	flat[k.Name] = typed
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}
