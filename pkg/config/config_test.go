package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir is the pre-Go-1.24 equivalent of t.Chdir.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleetpulse.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfigFile(t, "server_url: http://127.0.0.1:8080/api\n"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.ServerURL != "http://127.0.0.1:8080/api" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.StatusInterval() != 30*time.Second {
		t.Errorf("StatusInterval = %v, want 30s", cfg.StatusInterval())
	}
	if cfg.ConsoleInterval() != 5*time.Second {
		t.Errorf("ConsoleInterval = %v, want 5s", cfg.ConsoleInterval())
	}
	if cfg.RetentionWindow() != 24*time.Hour {
		t.Errorf("RetentionWindow = %v, want 24h", cfg.RetentionWindow())
	}
	if cfg.MaxRetainedSamples != 2880 {
		t.Errorf("MaxRetainedSamples = %d, want 2880", cfg.MaxRetainedSamples)
	}
	if cfg.DebounceWindow() != 10*time.Second {
		t.Errorf("DebounceWindow = %v, want 10s", cfg.DebounceWindow())
	}
	if cfg.BucketCount != 24 {
		t.Errorf("BucketCount = %d, want 24", cfg.BucketCount)
	}
	if cfg.PushMaxReconnects != 5 {
		t.Errorf("PushMaxReconnects = %d, want 5", cfg.PushMaxReconnects)
	}
	if cfg.PushInitialBackoff() != time.Second || cfg.PushMaxBackoff() != 30*time.Second {
		t.Errorf("push backoff = %v/%v, want 1s/30s", cfg.PushInitialBackoff(), cfg.PushMaxBackoff())
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
	if cfg.CacheKey != "fleetpulse:history" {
		t.Errorf("CacheKey = %q", cfg.CacheKey)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.PushURL != "" {
		t.Errorf("PushURL should default to empty, got %q", cfg.PushURL)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := LoadFile(writeConfigFile(t, `
server_url: http://dash:9000/api
push_url: ws://dash:9000/push
status_interval_seconds: 10
retention_hours: 48
max_retained_samples: 100
bucket_count: 48
log_level: debug
`))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.PushURL != "ws://dash:9000/push" {
		t.Errorf("PushURL = %q", cfg.PushURL)
	}
	if cfg.StatusInterval() != 10*time.Second {
		t.Errorf("StatusInterval = %v, want 10s", cfg.StatusInterval())
	}
	if cfg.RetentionWindow() != 48*time.Hour {
		t.Errorf("RetentionWindow = %v, want 48h", cfg.RetentionWindow())
	}
	if cfg.MaxRetainedSamples != 100 {
		t.Errorf("MaxRetainedSamples = %d, want 100", cfg.MaxRetainedSamples)
	}
	if cfg.BucketCount != 48 {
		t.Errorf("BucketCount = %d, want 48", cfg.BucketCount)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FLEETPULSE_STATUS_INTERVAL_SECONDS", "7")
	t.Setenv("FLEETPULSE_REDIS_ADDR", "redis.internal:6379")

	cfg, err := LoadFile(writeConfigFile(t, "server_url: http://127.0.0.1:8080/api\nstatus_interval_seconds: 60\n"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.StatusInterval() != 7*time.Second {
		t.Errorf("StatusInterval = %v, want the env override 7s", cfg.StatusInterval())
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("RedisAddr = %q, want the env override", cfg.RedisAddr)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing server url", "log_level: info\n"},
		{"zero status interval", "server_url: http://x\nstatus_interval_seconds: 0\n"},
		{"negative retention", "server_url: http://x\nretention_hours: -1\n"},
		{"zero bucket count", "server_url: http://x\nbucket_count: 0\n"},
		{"negative debounce", "server_url: http://x\ndebounce_window_seconds: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfigFile(t, tt.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Setenv("FLEETPULSE_SERVER_URL", "http://127.0.0.1:8080/api")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:8080/api" {
		t.Errorf("ServerURL = %q, want the env value", cfg.ServerURL)
	}
	if cfg.StatusInterval() != 30*time.Second {
		t.Errorf("StatusInterval = %v, want the default 30s", cfg.StatusInterval())
	}
}

func TestEnvironmentOnlyConfiguration(t *testing.T) {
	// Every default-less key must be reachable through the environment alone.
	t.Setenv("FLEETPULSE_SERVER_URL", "http://dash:9000/api")
	t.Setenv("FLEETPULSE_PUSH_URL", "ws://dash:9000/push")
	t.Setenv("FLEETPULSE_REDIS_PASSWORD", "hunter2")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ServerURL != "http://dash:9000/api" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.PushURL != "ws://dash:9000/push" {
		t.Errorf("PushURL = %q", cfg.PushURL)
	}
	if cfg.RedisPassword != "hunter2" {
		t.Errorf("RedisPassword = %q", cfg.RedisPassword)
	}
}
