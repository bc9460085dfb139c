package core

import "time"

// Environment variable names used by this module. config.Load reads the
// OMEN_MAX_STEPS, OMEN_FRESHNESS_*, OMEN_SAFE_MODE_ON_CRITICAL and
// OMEN_BUDGET_WARNING_THRESHOLD variables by their literal names, not
// through these constants; no package reads OMEN_REDIS_URL,
// OMEN_LOG_LEVEL or OMEN_LOG_FORMAT.
const (
	EnvRedisURL = "OMEN_REDIS_URL" // Redis connection URL for the episode record store

	EnvMaxSteps               = "OMEN_MAX_STEPS"                // Runner: max steps per episode
	EnvFreshnessRealtime      = "OMEN_FRESHNESS_REALTIME_SECONDS"
	EnvFreshnessOperational   = "OMEN_FRESHNESS_OPERATIONAL_SECONDS"
	EnvSafeModeOnCritical     = "OMEN_SAFE_MODE_ON_CRITICAL"     // Transition to S9_SAFEMODE on CRITICAL integrity alerts
	EnvBudgetWarningThreshold = "OMEN_BUDGET_WARNING_THRESHOLD"  // Fraction (0-1) at which budget WARNING fires
	EnvLogLevel               = "OMEN_LOG_LEVEL"
	EnvLogFormat              = "OMEN_LOG_FORMAT"
)

// DefaultRedisKeyPrefix has the same value as the store package's own
// record-key prefix (format: <prefix><correlation_id>); the store
// package does not read this constant.
const DefaultRedisKeyPrefix = "omen:episode:"

// DefaultEpisodeRecordTTL is an episode-record TTL that no package reads;
// store.New applies its own 7-day TTL to every record it writes.
const DefaultEpisodeRecordTTL = 72 * time.Hour
