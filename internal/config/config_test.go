package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/synthdesk/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.API.CacheTTL != DefaultCacheTTL {
		t.Errorf("API.CacheTTL = %v, want %v", cfg.API.CacheTTL, DefaultCacheTTL)
	}
	if cfg.Socket.ConnectTimeout != 10*time.Second {
		t.Errorf("Socket.ConnectTimeout = %v, want 10s", cfg.Socket.ConnectTimeout)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendMemory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !errors.Is(err, errors.CategoryConfig) {
		t.Errorf("missing config error category = %q", errors.CategoryOf(err))
	}

	configYAML := `server:
  addr: ":9090"
api:
  baseURL: https://example.com/api/
  cacheTTL: 5s
  endpoints:
    model: /models/:id
socket:
  url: wss://example.com/ws
  maxReconnectAttempts: 3
storage:
  backend: sqlite
log:
  level: debug
  format: json
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.API.BaseURL != "https://example.com/api" {
		t.Errorf("API.BaseURL = %q, trailing slash should be trimmed", cfg.API.BaseURL)
	}
	if cfg.API.CacheTTL != 5*time.Second {
		t.Errorf("API.CacheTTL = %v, want 5s", cfg.API.CacheTTL)
	}
	if cfg.API.Endpoints["model"] != "/models/:id" {
		t.Errorf("API.Endpoints = %v", cfg.API.Endpoints)
	}
	if cfg.Socket.MaxReconnectAttempts != 3 {
		t.Errorf("Socket.MaxReconnectAttempts = %d", cfg.Socket.MaxReconnectAttempts)
	}
	if cfg.Socket.HeartbeatInterval != DefaultHeartbeat {
		t.Errorf("unset heartbeat should default, got %v", cfg.Socket.HeartbeatInterval)
	}
	if cfg.Storage.Path != "synthdesk.db" {
		t.Errorf("Storage.Path = %q, want sqlite default", cfg.Storage.Path)
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, false},
		{"http socket url", func(c *Config) { c.Socket.URL = "http://x/ws" }, false},
		{"negative attempts", func(c *Config) { c.Socket.MaxReconnectAttempts = -1 }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, false},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = BackendS3 }, false},
		{"s3 with bucket", func(c *Config) {
			c.Storage.Backend = BackendS3
			c.Storage.Bucket = "state"
		}, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := New()
	cfg.API.CacheTTL = 90 * time.Second
	cfg.Storage.Backend = BackendFile
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.API.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", loaded.API.CacheTTL)
	}
	if loaded.Storage.Backend != BackendFile {
		t.Errorf("Backend = %q", loaded.Storage.Backend)
	}
}

func TestLoadExplicitZeros(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	data := "api:\n  cacheTTL: 0s\nsocket:\n  maxReconnectAttempts: 0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.API.CacheTTL != 0 {
		t.Errorf("CacheTTL = %v, want 0 (caching off)", cfg.API.CacheTTL)
	}
	if cfg.Socket.MaxReconnectAttempts != 0 {
		t.Errorf("MaxReconnectAttempts = %d, want 0", cfg.Socket.MaxReconnectAttempts)
	}

	// Both survive a save and reload.
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if again.API.CacheTTL != 0 || again.Socket.MaxReconnectAttempts != 0 {
		t.Errorf("after save: cacheTTL=%v attempts=%d", again.API.CacheTTL, again.Socket.MaxReconnectAttempts)
	}
}

func TestEndpointDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	data := "api:\n  endpoints:\n    models: /v2/models\n    custom: /custom/:id\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := DefaultEndpoints()
	want[EndpointModels] = "/v2/models"
	want["custom"] = "/custom/:id"
	for name, template := range want {
		if got := cfg.API.Endpoints[name]; got != template {
			t.Errorf("Endpoints[%q] = %q, want %q", name, got, template)
		}
	}
	if New().API.Endpoints[EndpointModel] != "/models/:id" {
		t.Error("New() should seed the model endpoint")
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := New().Save(); err == nil {
		t.Error("Save() without a path should fail")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := LoadFromEnv()
	if err != nil || cfg.Server.Addr != DefaultAddr {
		t.Fatalf("LoadFromEnv() = %+v, %v", cfg, err)
	}

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":7000\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigFile, path)
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected json record, got %q", out)
	}
}
