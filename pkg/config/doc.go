// Package config provides configuration management for GuardGate.
//
// Configuration is loaded from a YAML file, defaulted, optionally overridden
// by GUARDGATE_* environment variables, and validated before use:
//
//	cfg, err := config.LoadWithEnvOverrides("guardgate.yaml")
//
// The loading sequence is:
//
//  1. Parse YAML from file
//  2. Apply default values (defaults.go)
//  3. Apply environment variable overrides (GUARDGATE_SECTION_FIELD)
//  4. Validate the final configuration (fails fast if invalid)
//
// Environment variables always take precedence over file values, e.g.
// GUARDGATE_PROXY_LISTEN_ADDRESS overrides proxy.listen_address and
// GUARDGATE_CACHE_REDIS_URL overrides cache.redis_url.
//
// A subset of the configuration is reloadable at runtime: the allowlist,
// rate limits, and guard scan knobs. Watcher observes the config file with
// fsnotify and delivers a freshly validated Config to its callback on
// change; the server applies only that reloadable subset.
package config
