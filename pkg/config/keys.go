package config

// Configuration key constants
// These constants centralize all configuration key names to eliminate magic
// strings; the same keys work in the YAML file and, upper-cased with the
// FLEETPULSE_ prefix, in the environment.

const (
	// Backend endpoints
	KeyServerURL = "server_url"
	KeyPushURL   = "push_url"

	// Poll cadences and request bounds
	KeyStatusIntervalSeconds  = "status_interval_seconds"
	KeyHistoryIntervalSeconds = "history_interval_seconds"
	KeyConsoleIntervalSeconds = "console_interval_seconds"
	KeyRequestTimeoutSeconds  = "request_timeout_seconds"

	// History reconciliation
	KeyRetentionHours        = "retention_hours"
	KeyMaxRetainedSamples    = "max_retained_samples"
	KeyDebounceWindowSeconds = "debounce_window_seconds"
	KeyBucketCount           = "bucket_count"

	// Push-channel reconnect policy
	KeyPushMaxReconnects         = "push_max_reconnects"
	KeyPushInitialBackoffSeconds = "push_initial_backoff_seconds"
	KeyPushMaxBackoffSeconds     = "push_max_backoff_seconds"

	// History cache
	KeyRedisAddr     = "redis_addr"
	KeyRedisPassword = "redis_password"
	KeyRedisDB       = "redis_db"
	KeyCacheKey      = "cache_key"

	// Logging
	KeyLogLevel = "log_level"
)

// Default values for configuration
const (
	DefaultStatusIntervalSeconds  = 30
	DefaultHistoryIntervalSeconds = 30
	DefaultConsoleIntervalSeconds = 5
	DefaultRequestTimeoutSeconds  = 10

	DefaultRetentionHours        = 24
	DefaultMaxRetainedSamples    = 2880
	DefaultDebounceWindowSeconds = 10
	DefaultBucketCount           = 24

	DefaultPushMaxReconnects         = 5
	DefaultPushInitialBackoffSeconds = 1
	DefaultPushMaxBackoffSeconds     = 30

	DefaultRedisAddr = "127.0.0.1:6379"
	DefaultRedisDB   = 0
	DefaultCacheKey  = "fleetpulse:history"

	DefaultLogLevel = "info"
)

// EnvPrefix is prepended (upper-cased, underscore-joined) to every key when
// read from the environment, e.g. FLEETPULSE_SERVER_URL.
const EnvPrefix = "FLEETPULSE"
