package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "proxy.listen_address".
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and returned together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any rules fail, nil otherwise.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAdmission(&cfg.Admission)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateAllowlist(cfg.Allowlist)...)
	errs = append(errs, validateGuard(&cfg.Guard)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"proxy.listen_address", "must not be empty"})
	}
	errs = append(errs, nonNegative("proxy.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, nonNegative("proxy.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, nonNegative("proxy.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, nonNegative("proxy.request_timeout", cfg.RequestTimeout)...)
	errs = append(errs, nonNegative("proxy.shutdown_timeout", cfg.ShutdownTimeout)...)

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateURL("upstream.base_url", cfg.BaseURL)...)
	errs = append(errs, nonNegative("upstream.timeout", cfg.Timeout)...)
	if cfg.MaxConnections < 0 {
		errs = append(errs, FieldError{"upstream.max_connections", "must not be negative"})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{"upstream.max_idle_conns", "must not be negative"})
	}
	if cfg.InlineBodyLimit < 0 {
		errs = append(errs, FieldError{"upstream.inline_body_limit", "must not be negative"})
	}

	return errs
}

func validateAdmission(cfg *AdmissionConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxParallel < 0 {
		errs = append(errs, FieldError{"admission.max_parallel", "must be a non-negative integer or \"auto\""})
	}
	if cfg.MaxQueue < 0 {
		errs = append(errs, FieldError{"admission.max_queue", "must not be negative"})
	}
	errs = append(errs, nonNegative("admission.queue_timeout", cfg.QueueTimeout)...)

	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.Burst < 0 {
		errs = append(errs, FieldError{"ratelimit.burst", "must not be negative"})
	}
	if cfg.PerMinute < 0 {
		errs = append(errs, FieldError{"ratelimit.per_minute", "must not be negative"})
	}
	if cfg.PerHour < 0 {
		errs = append(errs, FieldError{"ratelimit.per_hour", "must not be negative"})
	}

	return errs
}

func validateAllowlist(entries []string) []FieldError {
	var errs []FieldError

	for i, entry := range entries {
		field := fmt.Sprintf("allowlist[%d]", i)
		if strings.Contains(entry, "/") {
			if _, err := netip.ParsePrefix(entry); err != nil {
				errs = append(errs, FieldError{field, fmt.Sprintf("invalid CIDR range %q", entry)})
			}
		} else if _, err := netip.ParseAddr(entry); err != nil {
			errs = append(errs, FieldError{field, fmt.Sprintf("invalid IP address %q", entry)})
		}
	}

	return errs
}

func validateGuard(cfg *GuardConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateURL("guard.service_url", cfg.ServiceURL)...)
	errs = append(errs, nonNegative("guard.timeout", cfg.Timeout)...)
	if cfg.ScanCadenceChars <= 0 {
		errs = append(errs, FieldError{"guard.scan_cadence_chars", "must be positive"})
	}
	if cfg.MinOutputLengthForScan < 0 {
		errs = append(errs, FieldError{"guard.min_output_length_for_scan", "must not be negative"})
	}
	if cfg.ConfigVersion == "" {
		errs = append(errs, FieldError{"guard.config_version", "must not be empty"})
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.MaxEntries <= 0 {
			errs = append(errs, FieldError{"cache.max_entries", "must be positive for the memory backend"})
		}
	case "redis":
		if cfg.RedisURL == "" {
			errs = append(errs, FieldError{"cache.redis_url", "required for the redis backend"})
		}
	default:
		errs = append(errs, FieldError{"cache.backend", fmt.Sprintf("unknown backend %q (want \"memory\" or \"redis\")", cfg.Backend)})
	}
	errs = append(errs, nonNegative("cache.ttl", cfg.TTL)...)

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled != nil && !*cfg.Enabled {
		return nil
	}

	if cfg.Path == "" {
		errs = append(errs, FieldError{"audit.path", "must not be empty"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{"audit.retention_days", "must not be negative"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{"audit.prune_schedule", fmt.Sprintf("invalid cron expression %q: %v", cfg.PruneSchedule, err)})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q (want \"json\" or \"text\")", cfg.Logging.Format)})
	}

	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with \"/\""})
	}

	return errs
}

func validateURL(field, raw string) []FieldError {
	if raw == "" {
		return []FieldError{{field, "must not be empty"}}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return []FieldError{{field, fmt.Sprintf("invalid URL %q (want http:// or https://)", raw)}}
	}
	return nil
}

func nonNegative(field string, d time.Duration) []FieldError {
	if d < 0 {
		return []FieldError{{field, "must not be negative"}}
	}
	return nil
}
