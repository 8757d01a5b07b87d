package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Proxy.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want %q", cfg.Proxy.ListenAddress, DefaultListenAddress)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamBaseURL)
	}
	if cfg.Admission.MaxParallel != 0 {
		t.Errorf("MaxParallel = %d, want 0 (auto)", cfg.Admission.MaxParallel)
	}
	if cfg.Admission.MaxQueue != DefaultMaxQueue {
		t.Errorf("MaxQueue = %d, want %d", cfg.Admission.MaxQueue, DefaultMaxQueue)
	}
	if cfg.Guard.ScanCadenceChars != DefaultScanCadenceChars {
		t.Errorf("ScanCadenceChars = %d, want %d", cfg.Guard.ScanCadenceChars, DefaultScanCadenceChars)
	}
	if cfg.Guard.BlockOnInputScanError == nil || !*cfg.Guard.BlockOnInputScanError {
		t.Error("BlockOnInputScanError should default to fail-closed")
	}
	if cfg.RateLimit.Enabled == nil || !*cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled should default to true")
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
}

func TestLoadFileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:9090"
admission:
  max_parallel: 8
  queue_timeout: 10s
ratelimit:
  enabled: false
guard:
  block_on_output_scan_error: false
  config_version: "v7"
cache:
  backend: redis
  redis_url: "redis://127.0.0.1:6379/0"
allowlist:
  - "10.0.0.0/8"
  - "192.168.1.50"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Admission.MaxParallel != 8 {
		t.Errorf("MaxParallel = %d, want 8", cfg.Admission.MaxParallel)
	}
	if cfg.Admission.QueueTimeout != 10*time.Second {
		t.Errorf("QueueTimeout = %v, want 10s", cfg.Admission.QueueTimeout)
	}
	// Explicit false must survive defaulting.
	if cfg.RateLimit.Enabled == nil || *cfg.RateLimit.Enabled {
		t.Error("explicit ratelimit.enabled=false was overridden by defaults")
	}
	if cfg.Guard.BlockOnOutputScanError == nil || *cfg.Guard.BlockOnOutputScanError {
		t.Error("explicit block_on_output_scan_error=false was overridden by defaults")
	}
	if cfg.Guard.ConfigVersion != "v7" {
		t.Errorf("ConfigVersion = %q, want v7", cfg.Guard.ConfigVersion)
	}
	if len(cfg.Allowlist) != 2 {
		t.Errorf("Allowlist = %v", cfg.Allowlist)
	}
}

func TestMaxParallelAuto(t *testing.T) {
	cfg, err := Load(writeConfig(t, "admission:\n  max_parallel: auto\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Admission.MaxParallel != 0 {
		t.Errorf("MaxParallel = %d, want 0 for auto", cfg.Admission.MaxParallel)
	}

	if _, err := Load(writeConfig(t, "admission:\n  max_parallel: lots\n")); err == nil {
		t.Error("expected error for non-numeric max_parallel")
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad cache backend",
			yaml: "cache:\n  backend: memcached\n",
			want: "cache.backend",
		},
		{
			name: "redis backend without url",
			yaml: "cache:\n  backend: redis\n",
			want: "cache.redis_url",
		},
		{
			name: "bad allowlist entry",
			yaml: "allowlist:\n  - \"not-an-ip\"\n",
			want: "allowlist[0]",
		},
		{
			name: "bad cron schedule",
			yaml: "audit:\n  prune_schedule: \"whenever\"\n",
			want: "audit.prune_schedule",
		},
		{
			name: "bad upstream url",
			yaml: "upstream:\n  base_url: \"ftp://backend\"\n",
			want: "upstream.base_url",
		},
		{
			name: "bad logging level",
			yaml: "telemetry:\n  logging:\n    level: loud\n",
			want: "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name field %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GUARDGATE_PROXY_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("GUARDGATE_ADMISSION_MAX_PARALLEL", "16")
	t.Setenv("GUARDGATE_GUARD_BLOCK_ON_INPUT_SCAN_ERROR", "false")
	t.Setenv("GUARDGATE_CACHE_TTL", "90s")
	t.Setenv("GUARDGATE_ALLOWLIST", "10.0.0.0/8, 172.16.0.1")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, "proxy:\n  listen_address: \"127.0.0.1:8080\"\n"))
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("ListenAddress = %q, env override lost", cfg.Proxy.ListenAddress)
	}
	if cfg.Admission.MaxParallel != 16 {
		t.Errorf("MaxParallel = %d, want 16", cfg.Admission.MaxParallel)
	}
	if cfg.Guard.BlockOnInputScanError == nil || *cfg.Guard.BlockOnInputScanError {
		t.Error("env override to fail-open lost")
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	if len(cfg.Allowlist) != 2 || cfg.Allowlist[1] != "172.16.0.1" {
		t.Errorf("Allowlist = %v", cfg.Allowlist)
	}
}

func TestEnvOverrideMaxParallelAuto(t *testing.T) {
	t.Setenv("GUARDGATE_ADMISSION_MAX_PARALLEL", "auto")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, "admission:\n  max_parallel: 4\n"))
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides: %v", err)
	}
	if cfg.Admission.MaxParallel != 0 {
		t.Errorf("MaxParallel = %d, want 0 (auto)", cfg.Admission.MaxParallel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatcherDeliversReload(t *testing.T) {
	path := writeConfig(t, "ratelimit:\n  burst: 5\n")

	watcher, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watcher.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watch loop a moment to start before touching the file.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("ratelimit:\n  burst: 7\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.RateLimit.Burst != 7 {
			t.Errorf("reloaded burst = %d, want 7", cfg.RateLimit.Burst)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload delivered within 3s")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	path := writeConfig(t, "ratelimit:\n  burst: 5\n")

	watcher, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reloaded := make(chan *Config, 1)
	go watcher.Watch(ctx, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	time.Sleep(100 * time.Millisecond)

	// Invalid config must be rejected, keeping the previous one in effect.
	if err := os.WriteFile(path, []byte("cache:\n  backend: bogus\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("invalid configuration was delivered: %+v", cfg)
	case <-time.After(time.Second):
	}
}
