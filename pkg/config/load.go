package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies defaults, and
// validates. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// GUARDGATE_* environment variable overrides on top. Environment variables
// always take precedence over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies GUARDGATE_SECTION_FIELD environment variables
// to the configuration. Unparseable values are ignored in favor of the file
// value.
func applyEnvOverrides(cfg *Config) {
	// Proxy
	envString("GUARDGATE_PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("GUARDGATE_PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("GUARDGATE_PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("GUARDGATE_PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("GUARDGATE_PROXY_REQUEST_TIMEOUT", &cfg.Proxy.RequestTimeout)
	envDuration("GUARDGATE_PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)

	// Upstream
	envString("GUARDGATE_UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	envDuration("GUARDGATE_UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	envInt("GUARDGATE_UPSTREAM_MAX_CONNECTIONS", &cfg.Upstream.MaxConnections)
	envInt("GUARDGATE_UPSTREAM_MAX_IDLE_CONNS", &cfg.Upstream.MaxIdleConns)
	envDuration("GUARDGATE_UPSTREAM_IDLE_CONN_TIMEOUT", &cfg.Upstream.IdleConnTimeout)
	envInt("GUARDGATE_UPSTREAM_INLINE_BODY_LIMIT", &cfg.Upstream.InlineBodyLimit)

	// Admission: accepts an integer or "auto".
	if val := os.Getenv("GUARDGATE_ADMISSION_MAX_PARALLEL"); val != "" {
		if strings.EqualFold(val, "auto") {
			cfg.Admission.MaxParallel = 0
		} else if n, err := strconv.Atoi(val); err == nil {
			cfg.Admission.MaxParallel = MaxParallel(n)
		}
	}
	envInt("GUARDGATE_ADMISSION_MAX_QUEUE", &cfg.Admission.MaxQueue)
	envDuration("GUARDGATE_ADMISSION_QUEUE_TIMEOUT", &cfg.Admission.QueueTimeout)

	// Rate limit
	envBoolPtr("GUARDGATE_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	envInt("GUARDGATE_RATELIMIT_BURST", &cfg.RateLimit.Burst)
	envInt("GUARDGATE_RATELIMIT_PER_MINUTE", &cfg.RateLimit.PerMinute)
	envInt("GUARDGATE_RATELIMIT_PER_HOUR", &cfg.RateLimit.PerHour)

	// Allowlist: comma-separated list replaces the file value entirely.
	if val := os.Getenv("GUARDGATE_ALLOWLIST"); val != "" {
		var entries []string
		for _, entry := range strings.Split(val, ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				entries = append(entries, entry)
			}
		}
		cfg.Allowlist = entries
	}

	// Guard
	envString("GUARDGATE_GUARD_SERVICE_URL", &cfg.Guard.ServiceURL)
	envDuration("GUARDGATE_GUARD_TIMEOUT", &cfg.Guard.Timeout)
	envInt("GUARDGATE_GUARD_SCAN_CADENCE_CHARS", &cfg.Guard.ScanCadenceChars)
	envInt("GUARDGATE_GUARD_MIN_OUTPUT_LENGTH_FOR_SCAN", &cfg.Guard.MinOutputLengthForScan)
	envBoolPtr("GUARDGATE_GUARD_BLOCK_ON_INPUT_SCAN_ERROR", &cfg.Guard.BlockOnInputScanError)
	envBoolPtr("GUARDGATE_GUARD_BLOCK_ON_OUTPUT_SCAN_ERROR", &cfg.Guard.BlockOnOutputScanError)
	envString("GUARDGATE_GUARD_CONFIG_VERSION", &cfg.Guard.ConfigVersion)

	// Cache
	envString("GUARDGATE_CACHE_BACKEND", &cfg.Cache.Backend)
	envDuration("GUARDGATE_CACHE_TTL", &cfg.Cache.TTL)
	envInt("GUARDGATE_CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	envString("GUARDGATE_CACHE_REDIS_URL", &cfg.Cache.RedisURL)

	// Audit
	envBoolPtr("GUARDGATE_AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("GUARDGATE_AUDIT_PATH", &cfg.Audit.Path)
	envInt("GUARDGATE_AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)
	envString("GUARDGATE_AUDIT_PRUNE_SCHEDULE", &cfg.Audit.PruneSchedule)

	// Telemetry
	envString("GUARDGATE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("GUARDGATE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBoolPtr("GUARDGATE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("GUARDGATE_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envString("GUARDGATE_TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBoolPtr(key string, dst **bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}
