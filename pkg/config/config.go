package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for GuardGate. It contains all
// configuration sections for the proxy server, the upstream backend, the
// admission controller, rate limiting, the guard scanners, the decision
// cache, the audit store, and telemetry.
type Config struct {
	// Proxy contains HTTP server configuration: listen address and
	// timeouts.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream configures the connection pool to the inference backend.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Admission bounds concurrent upstream calls and the wait queue.
	Admission AdmissionConfig `yaml:"admission"`

	// RateLimit holds the per-client request quotas.
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	// Allowlist is the set of client IPs and CIDR ranges permitted to use
	// the proxy. Empty means all clients are allowed.
	Allowlist []string `yaml:"allowlist"`

	// Guard configures the content-safety scan service and scan policy.
	Guard GuardConfig `yaml:"guard"`

	// Cache configures the guard decision cache backend.
	Cache CacheConfig `yaml:"cache"`

	// Audit configures the persistent record of guard block events.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on, "host:port".
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. A healthy generation stream can
	// legitimately outlast any fixed timeout, so the default is disabled.
	// Default: 0 (no timeout)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is how long keep-alive connections may sit idle.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// RequestTimeout bounds non-streaming request handling end to end.
	// Zero disables the bound. Streaming requests are exempt.
	// Default: 0
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is how long graceful shutdown waits for in-flight
	// requests before forcing the server down.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig configures the forwarding client for the backend.
type UpstreamConfig struct {
	// BaseURL is the backend root, e.g. "http://127.0.0.1:11434".
	// Default: "http://127.0.0.1:11434"
	BaseURL string `yaml:"base_url"`

	// Timeout bounds non-streaming round trips to the backend.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxConnections bounds total connections to the backend host.
	// Default: 100
	MaxConnections int `yaml:"max_connections"`

	// MaxIdleConns bounds the keep-alive connection pool.
	// Default: 20
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout closes idle pooled connections after this long.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// InlineBodyLimit is the payload size in bytes above which request
	// bodies are streamed to the backend instead of buffered.
	// Default: 1048576 (1MB)
	InlineBodyLimit int `yaml:"inline_body_limit"`
}

// MaxParallel is an integer slot count that also accepts the string "auto"
// in YAML, meaning "derive from hardware concurrency at startup".
type MaxParallel int

// UnmarshalYAML accepts either an integer or the string "auto" (0).
func (m *MaxParallel) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!str" {
		if strings.EqualFold(value.Value, "auto") {
			*m = 0
			return nil
		}
		return fmt.Errorf("invalid max_parallel %q (want an integer or \"auto\")", value.Value)
	}

	var n int
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid max_parallel: %w", err)
	}
	*m = MaxParallel(n)
	return nil
}

// AdmissionConfig configures the concurrency admission controller.
type AdmissionConfig struct {
	// MaxParallel is the maximum number of concurrent upstream calls.
	// "auto" (or 0) derives the count from hardware concurrency.
	// Default: auto
	MaxParallel MaxParallel `yaml:"max_parallel"`

	// MaxQueue is how many requests may wait for a slot; the next
	// simultaneous waiter is rejected immediately.
	// Default: 100
	MaxQueue int `yaml:"max_queue"`

	// QueueTimeout bounds how long a request may wait in queue.
	// Default: 30s
	QueueTimeout time.Duration `yaml:"queue_timeout"`
}

// RateLimitConfig holds the per-client request quotas.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is applied at all.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Burst is the maximum requests per client in any rolling second.
	// Default: 10
	Burst int `yaml:"burst"`

	// PerMinute is the rolling one-minute quota per client.
	// Default: 60
	PerMinute int `yaml:"per_minute"`

	// PerHour is the rolling one-hour quota per client.
	// Default: 1000
	PerHour int `yaml:"per_hour"`
}

// GuardConfig configures the content-safety scan service and scan policy.
type GuardConfig struct {
	// ServiceURL is the scan service endpoint.
	// Default: "http://127.0.0.1:8001"
	ServiceURL string `yaml:"service_url"`

	// Timeout bounds a single scan invocation.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ScanCadenceChars triggers an incremental output scan once this much
	// new text has accumulated since the last pass.
	// Default: 500
	ScanCadenceChars int `yaml:"scan_cadence_chars"`

	// MinOutputLengthForScan is the floor below which output scanning is
	// skipped.
	// Default: 50
	MinOutputLengthForScan int `yaml:"min_output_length_for_scan"`

	// BlockOnInputScanError selects fail-closed (true) or fail-open
	// (false) handling of input scanner faults.
	// Default: true (fail-closed)
	BlockOnInputScanError *bool `yaml:"block_on_input_scan_error"`

	// BlockOnOutputScanError is the same policy for output scans.
	// Default: true (fail-closed)
	BlockOnOutputScanError *bool `yaml:"block_on_output_scan_error"`

	// ConfigVersion tags cached verdicts with the active scanner
	// configuration. Bump it when the scanner set changes to invalidate
	// prior decisions.
	// Default: "v1"
	ConfigVersion string `yaml:"config_version"`
}

// CacheConfig configures the guard decision cache.
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" or "redis".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// TTL is how long cached verdicts stay valid.
	// Default: 5m
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries bounds the memory backend (LRU eviction once full).
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// RedisURL is the connection URL for the redis backend,
	// "redis://host:port/db".
	RedisURL string `yaml:"redis_url"`
}

// AuditConfig configures the persistent record of guard block events.
type AuditConfig struct {
	// Enabled controls whether block events are recorded at all.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long block events are kept. Zero keeps them
	// forever.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *" (daily at 03:00)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output encoding: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is where the metrics handler is mounted.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes all metric names.
	// Default: "guardgate"
	Namespace string `yaml:"namespace"`
}
