package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 0 // streams outlast any fixed write timeout
	DefaultIdleTimeout     = 120 * time.Second
	DefaultRequestTimeout  = 0
	DefaultShutdownTimeout = 30 * time.Second

	// Upstream defaults
	DefaultUpstreamBaseURL = "http://127.0.0.1:11434"
	DefaultUpstreamTimeout = 60 * time.Second
	DefaultMaxConnections  = 100
	DefaultMaxIdleConns    = 20
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultInlineBodyLimit = 1 << 20 // 1MB

	// Admission defaults
	DefaultMaxQueue     = 100
	DefaultQueueTimeout = 30 * time.Second

	// Rate limit defaults
	DefaultRateLimitEnabled = true
	DefaultBurst            = 10
	DefaultPerMinute        = 60
	DefaultPerHour          = 1000

	// Guard defaults
	DefaultGuardServiceURL        = "http://127.0.0.1:8001"
	DefaultGuardTimeout           = 10 * time.Second
	DefaultScanCadenceChars       = 500
	DefaultMinOutputLengthForScan = 50
	DefaultBlockOnScanError       = true
	DefaultConfigVersion          = "v1"

	// Cache defaults
	DefaultCacheBackend    = "memory"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 10000

	// Audit defaults
	DefaultAuditEnabled   = true
	DefaultAuditPath      = "data/audit.db"
	DefaultRetentionDays  = 90
	DefaultPruneSchedule  = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel    = "info"
	DefaultLoggingFormat   = "json"
	DefaultMetricsEnabled  = true
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNamespace = "guardgate"
)

// ApplyDefaults fills unset fields with their default values. Booleans
// whose default is true are declared as *bool so an explicit false in the
// file survives defaulting.
func ApplyDefaults(cfg *Config) {
	// Proxy
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Upstream
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxConnections == 0 {
		cfg.Upstream.MaxConnections = DefaultMaxConnections
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if cfg.Upstream.InlineBodyLimit == 0 {
		cfg.Upstream.InlineBodyLimit = DefaultInlineBodyLimit
	}

	// Admission: MaxParallel zero means "auto", which is the default.
	if cfg.Admission.MaxQueue == 0 {
		cfg.Admission.MaxQueue = DefaultMaxQueue
	}
	if cfg.Admission.QueueTimeout == 0 {
		cfg.Admission.QueueTimeout = DefaultQueueTimeout
	}

	// Rate limit
	if cfg.RateLimit.Enabled == nil {
		cfg.RateLimit.Enabled = boolPtr(DefaultRateLimitEnabled)
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = DefaultBurst
	}
	if cfg.RateLimit.PerMinute == 0 {
		cfg.RateLimit.PerMinute = DefaultPerMinute
	}
	if cfg.RateLimit.PerHour == 0 {
		cfg.RateLimit.PerHour = DefaultPerHour
	}

	// Guard
	if cfg.Guard.ServiceURL == "" {
		cfg.Guard.ServiceURL = DefaultGuardServiceURL
	}
	if cfg.Guard.Timeout == 0 {
		cfg.Guard.Timeout = DefaultGuardTimeout
	}
	if cfg.Guard.ScanCadenceChars == 0 {
		cfg.Guard.ScanCadenceChars = DefaultScanCadenceChars
	}
	if cfg.Guard.MinOutputLengthForScan == 0 {
		cfg.Guard.MinOutputLengthForScan = DefaultMinOutputLengthForScan
	}
	if cfg.Guard.BlockOnInputScanError == nil {
		cfg.Guard.BlockOnInputScanError = boolPtr(DefaultBlockOnScanError)
	}
	if cfg.Guard.BlockOnOutputScanError == nil {
		cfg.Guard.BlockOnOutputScanError = boolPtr(DefaultBlockOnScanError)
	}
	if cfg.Guard.ConfigVersion == "" {
		cfg.Guard.ConfigVersion = DefaultConfigVersion
	}

	// Cache
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = DefaultCacheMaxEntries
	}

	// Audit
	if cfg.Audit.Enabled == nil {
		cfg.Audit.Enabled = boolPtr(DefaultAuditEnabled)
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultPruneSchedule
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = boolPtr(DefaultMetricsEnabled)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

func boolPtr(v bool) *bool {
	return &v
}
