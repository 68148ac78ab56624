package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"JULES_API_KEY", "JULES_API_URL", "GULES_CACHE_DIR", "GULES_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("defaults should be written: %v", err)
	}
	if !cfg.Cache.Enabled || cfg.Cache.MaxSessions != 50 || cfg.Cache.PageSize != 50 || cfg.Cache.MaxPages != 20 {
		t.Errorf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.APIURL != "https://jules.googleapis.com/v1alpha" {
		t.Errorf("unexpected api_url %s", cfg.APIURL)
	}
	if cfg.HTTPTimeout().Seconds() != 30 || cfg.MemoTTL().Seconds() != 300 {
		t.Errorf("unexpected durations %v %v", cfg.HTTPTimeout(), cfg.MemoTTL())
	}
	if cfg.Watch.Schedule != "@every 5m" {
		t.Errorf("unexpected watch schedule %q", cfg.Watch.Schedule)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	original := Default()
	original.APIKey = "key-round-trip"
	original.LogLevel = "debug"
	original.CacheDir = "/tmp/gules-cache"
	original.Cache.MaxSessions = 7
	original.Cache.Compress = true
	original.HTTP.MaxAttempts = 5

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.APIKey != original.APIKey {
		t.Errorf("APIKey mismatch: %v != %v", loaded.APIKey, original.APIKey)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel mismatch: %v", loaded.LogLevel)
	}
	if loaded.CacheDir != "/tmp/gules-cache" {
		t.Errorf("CacheDir mismatch: %v", loaded.CacheDir)
	}
	if loaded.Cache.MaxSessions != 7 || !loaded.Cache.Compress {
		t.Errorf("Cache mismatch: %+v", loaded.Cache)
	}
	if loaded.HTTP.MaxAttempts != 5 {
		t.Errorf("HTTP.MaxAttempts mismatch: %v", loaded.HTTP.MaxAttempts)
	}
}

func TestLoad_AcceptsComments(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	data := `{
  // personal key
  "api_key": "abc",
  "cache": {
    "max_sessions": 3, /* small laptop */
  },
}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "abc" || cfg.Cache.MaxSessions != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Cache.Enabled {
		t.Error("unset fields should keep defaults")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	cfg := Default()
	cfg.APIKey = "from-file"
	writeTestConfig(t, path, cfg)

	t.Setenv("JULES_API_KEY", "from-env")
	t.Setenv("JULES_API_URL", "http://localhost:9999")
	t.Setenv("GULES_CACHE_DIR", "/tmp/env-cache")
	t.Setenv("GULES_LOG_LEVEL", "warn")

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIKey != "from-env" || loaded.APIURL != "http://localhost:9999" ||
		loaded.CacheDir != "/tmp/env-cache" || loaded.LogLevel != "warn" {
		t.Errorf("env overrides not applied: %+v", loaded)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := tempConfigPath(t)
	os.WriteFile(path, []byte(`{"cache": [}`), 0o600)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	if err := Save(path, Default()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file should not exist after successful save: %s", e.Name())
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved config: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestToMap(t *testing.T) {
	cfg := &Config{LogLevel: "debug", CacheDir: "/tmp/test"}
	cfg.Cache.MaxSessions = 12

	m, err := ToMap(cfg)
	if err != nil {
		t.Fatalf("ToMap failed: %v", err)
	}
	if m["cache_dir"] != "/tmp/test" {
		t.Errorf("expected cache_dir=/tmp/test, got %v", m["cache_dir"])
	}
	cache, ok := m["cache"].(map[string]any)
	if !ok {
		t.Fatalf("expected cache to be map, got %T", m["cache"])
	}
	// JSON numbers are float64
	if cache["max_sessions"] != float64(12) {
		t.Errorf("expected cache.max_sessions=12, got %v", cache["max_sessions"])
	}
}

func TestListValues_Mask(t *testing.T) {
	cfg := &Config{LogLevel: "info", APIKey: "secret-key-1234"}

	flat, err := ListValues(cfg, false)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["api_key"] != "secret-key-1234" {
		t.Errorf("expected unmasked api_key, got %v", flat["api_key"])
	}

	flat, err = ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["api_key"] != "***1234" {
		t.Errorf("expected masked api_key=***1234, got %v", flat["api_key"])
	}
	if flat["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", flat["log_level"])
	}
	if flat["cache.enabled"] != false {
		t.Errorf("expected cache.enabled=false, got %v", flat["cache.enabled"])
	}
}

func TestGetValue_ExistingKey(t *testing.T) {
	path := tempConfigPath(t)
	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.Cache.PageSize = 25
	writeTestConfig(t, path, cfg)

	v, err := GetValue(path, "log_level")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "debug" {
		t.Errorf("expected log_level=debug, got %v", v)
	}

	v, err = GetValue(path, "cache.page_size")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != float64(25) {
		t.Errorf("expected cache.page_size=25, got %v (%T)", v, v)
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	expected := "unknown config key: nonexistent.key"
	if err.Error() != expected {
		t.Errorf("expected error %q, got %q", expected, err.Error())
	}
}

func TestGetValue_NonexistentFile(t *testing.T) {
	path := tempConfigPath(t)

	// Load creates the file with defaults.
	v, err := GetValue(path, "cache.max_sessions")
	if err != nil {
		t.Fatalf("GetValue on new config failed: %v", err)
	}
	if v != float64(50) {
		t.Errorf("expected default cache.max_sessions=50, got %v", v)
	}
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"log_level", "debug", "debug"},
		{"cache.max_sessions", "16", float64(16)},
		{"cache.compress", "true", true},
		{"watch.schedule", "@every 1m", "@every 1m"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			path := tempConfigPath(t)
			cfg := Default()
			cfg.APIURL = "http://preserved"
			writeTestConfig(t, path, cfg)

			if err := SetValue(path, tt.key, tt.value); err != nil {
				t.Fatalf("SetValue failed: %v", err)
			}
			v, err := GetValue(path, tt.key)
			if err != nil {
				t.Fatalf("GetValue failed: %v", err)
			}
			if v != tt.want {
				t.Errorf("expected %s=%v, got %v (%T)", tt.key, tt.want, v, v)
			}
			v, _ = GetValue(path, "api_url")
			if v != "http://preserved" {
				t.Errorf("expected api_url preserved, got %v", v)
			}
		})
	}
}

func TestSetValue_RejectsUnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())
	before, _ := os.ReadFile(path)

	for _, key := range []string{"cache.max_sesions", "custom.setting", "cache", ""} {
		if err := SetValue(path, key, "7"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("%q: expected ErrUnknownKey, got %v", key, err)
		}
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("rejected keys must not modify the file")
	}
}

func TestSetValue_RejectsMistypedValue(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	if err := SetValue(path, "cache.max_sessions", "lots"); err == nil {
		t.Error("expected an error for a non-integer max_sessions")
	}
	if err := SetValue(path, "cache.enabled", "sometimes"); err == nil {
		t.Error("expected an error for a non-bool enabled")
	}
	v, _ := GetValue(path, "cache.max_sessions")
	if v != float64(50) {
		t.Errorf("expected max_sessions unchanged, got %v", v)
	}
}

func TestSetValue_TypedValueLoads(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	if err := SetValue(path, "cache.max_pages", "3"); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.MaxPages != 3 {
		t.Errorf("expected max_pages=3, got %d", cfg.Cache.MaxPages)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config.json")

	if err := Save(path, &Config{LogLevel: "warn"}); err != nil {
		t.Fatalf("Save should create parent directory, got: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file should exist: %v", err)
	}
}
