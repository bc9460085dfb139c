// Package config loads the runtime's tunable ceilings and behavior
// flags from OMEN_* environment variables with typed defaults,
// grounded on gomind's core.DefaultConfig()/LoadFromEnv() three-layer
// priority (defaults, then env vars, then functional options) scaled
// down to the flat set of knobs this protocol actually needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/invariant"
	"github.com/Tpanarchist/omen/ledger"
)

// Config holds every env-overridable default for a running instance.
type Config struct {
	// Budgets seeds ledger.Create's ceiling for every new episode
	// unless a template overrides them explicitly.
	BudgetDefaultTokens       int64   `env:"OMEN_BUDGET_DEFAULT_TOKENS" default:"100000"`
	BudgetDefaultToolCalls    int64   `env:"OMEN_BUDGET_DEFAULT_TOOL_CALLS" default:"50"`
	BudgetDefaultTimeSeconds  int64   `env:"OMEN_BUDGET_DEFAULT_TIME_SECONDS" default:"3600"`
	BudgetDefaultRiskMax      float64 `env:"OMEN_BUDGET_DEFAULT_RISK_MAX" default:"1.0"`

	// Freshness windows feed INV-004's evidence-staleness check.
	FreshnessRealtimeSeconds    int64 `env:"OMEN_FRESHNESS_REALTIME_SECONDS" default:"60"`
	FreshnessOperationalSeconds int64 `env:"OMEN_FRESHNESS_OPERATIONAL_SECONDS" default:"3600"`

	// MaxSteps and StepTimeout are loaded and validated here but are not
	// passed to the runner by any package: runner.New takes its step cap
	// as an argument (DefaultMaxSteps when <= 0), and runStep uses
	// runner.DefaultStepTimeout absent an episode time_budget_seconds.
	MaxSteps int `env:"OMEN_MAX_STEPS" default:"64"`

	StepTimeout time.Duration `env:"OMEN_STEP_TIMEOUT" default:"30s"`

	// SafeModeOnCritical is loaded and defaults on, but no package reads
	// it: a CRITICAL IntegrityAlert always drives the ledger's FSM to
	// S9_SAFEMODE, and the overlay's containment ladder moves only
	// through integrity.Demote/Promote.
	SafeModeOnCritical bool `env:"OMEN_SAFE_MODE_ON_CRITICAL" default:"true"`

	// BudgetWarningThreshold/BudgetHighThreshold are loaded and validated
	// here, but integrity.CheckBudget compares against its own
	// BudgetWarningThreshold/BudgetHighThreshold constants (0.80/1.00)
	// and does not read these fields.
	BudgetWarningThreshold float64 `env:"OMEN_BUDGET_WARNING_THRESHOLD" default:"0.80"`
	BudgetHighThreshold    float64 `env:"OMEN_BUDGET_HIGH_THRESHOLD" default:"1.00"`
}

// Default returns a Config populated with the defaults named in every
// field's struct tag, before any environment override is applied.
func Default() *Config {
	return &Config{
		BudgetDefaultTokens:      100000,
		BudgetDefaultToolCalls:   50,
		BudgetDefaultTimeSeconds: 3600,
		BudgetDefaultRiskMax:     1.0,

		FreshnessRealtimeSeconds:    60,
		FreshnessOperationalSeconds: 3600,

		MaxSteps:    64,
		StepTimeout: 30 * time.Second,

		SafeModeOnCritical: true,

		BudgetWarningThreshold: 0.80,
		BudgetHighThreshold:    1.00,
	}
}

// Load builds a Config from defaults, then overrides every field whose
// env var is set, then validates the result. Malformed values are
// reported as a FrameworkError wrapping core.ErrInvalidConfiguration
// rather than silently falling back to the default, since a typo'd
// budget ceiling failing open is worse than a startup error.
func Load() (*Config, error) {
	cfg := Default()

	if err := loadInt64(&cfg.BudgetDefaultTokens, "OMEN_BUDGET_DEFAULT_TOKENS"); err != nil {
		return nil, err
	}
	if err := loadInt64(&cfg.BudgetDefaultToolCalls, "OMEN_BUDGET_DEFAULT_TOOL_CALLS"); err != nil {
		return nil, err
	}
	if err := loadInt64(&cfg.BudgetDefaultTimeSeconds, "OMEN_BUDGET_DEFAULT_TIME_SECONDS"); err != nil {
		return nil, err
	}
	if err := loadFloat64(&cfg.BudgetDefaultRiskMax, "OMEN_BUDGET_DEFAULT_RISK_MAX"); err != nil {
		return nil, err
	}
	if err := loadInt64(&cfg.FreshnessRealtimeSeconds, "OMEN_FRESHNESS_REALTIME_SECONDS"); err != nil {
		return nil, err
	}
	if err := loadInt64(&cfg.FreshnessOperationalSeconds, "OMEN_FRESHNESS_OPERATIONAL_SECONDS"); err != nil {
		return nil, err
	}
	if err := loadInt(&cfg.MaxSteps, "OMEN_MAX_STEPS"); err != nil {
		return nil, err
	}
	if err := loadDuration(&cfg.StepTimeout, "OMEN_STEP_TIMEOUT"); err != nil {
		return nil, err
	}
	if v := os.Getenv("OMEN_SAFE_MODE_ON_CRITICAL"); v != "" {
		cfg.SafeModeOnCritical = parseBool(v)
	}
	if err := loadFloat64(&cfg.BudgetWarningThreshold, "OMEN_BUDGET_WARNING_THRESHOLD"); err != nil {
		return nil, err
	}
	if err := loadFloat64(&cfg.BudgetHighThreshold, "OMEN_BUDGET_HIGH_THRESHOLD"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every loaded value is in a usable range.
func (c *Config) Validate() error {
	switch {
	case c.BudgetDefaultTokens <= 0:
		return configErr("token budget must be positive")
	case c.BudgetDefaultToolCalls <= 0:
		return configErr("tool call budget must be positive")
	case c.BudgetDefaultTimeSeconds <= 0:
		return configErr("time budget must be positive")
	case c.BudgetDefaultRiskMax <= 0:
		return configErr("risk max must be positive")
	case c.FreshnessRealtimeSeconds <= 0 || c.FreshnessOperationalSeconds <= 0:
		return configErr("freshness windows must be positive")
	case c.MaxSteps <= 0:
		return configErr("max steps must be positive")
	case c.StepTimeout <= 0:
		return configErr("step timeout must be positive")
	case c.BudgetWarningThreshold <= 0 || c.BudgetHighThreshold <= 0:
		return configErr("budget thresholds must be positive")
	case c.BudgetWarningThreshold >= c.BudgetHighThreshold:
		return configErr("budget warning threshold must be below the high threshold")
	}
	return nil
}

// LedgerBudgets converts the loaded defaults to ledger.Budgets, for
// callers compiling an episode whose template carries no explicit
// budget override.
func (c *Config) LedgerBudgets() ledger.Budgets {
	return ledger.Budgets{
		TokenBudget:       c.BudgetDefaultTokens,
		ToolCallBudget:    c.BudgetDefaultToolCalls,
		TimeBudgetSeconds: c.BudgetDefaultTimeSeconds,
		RiskMax:           c.BudgetDefaultRiskMax,
	}
}

// ApplyFreshnessWindows pushes the loaded freshness windows into the
// invariant package's package-level INV-004 knobs. Called once at
// startup; invariant.Rule's fixed (packet, LedgerView) signature has no
// room for a config parameter, so the package-level var is how
// per-deployment overrides reach the rule.
func (c *Config) ApplyFreshnessWindows() {
	invariant.RealtimeFreshnessWindowSeconds = c.FreshnessRealtimeSeconds
	invariant.OperationalFreshnessWindowSeconds = c.FreshnessOperationalSeconds
}

func configErr(msg string) error {
	return core.NewFrameworkError("config.Validate", "config", fmt.Errorf("%s: %w", msg, core.ErrInvalidConfiguration))
}

func loadInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return core.NewFrameworkError("config.Load", "config", fmt.Errorf("%s=%q: %w", key, v, core.ErrInvalidConfiguration))
	}
	*dst = n
	return nil
}

func loadInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return core.NewFrameworkError("config.Load", "config", fmt.Errorf("%s=%q: %w", key, v, core.ErrInvalidConfiguration))
	}
	*dst = n
	return nil
}

func loadFloat64(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return core.NewFrameworkError("config.Load", "config", fmt.Errorf("%s=%q: %w", key, v, core.ErrInvalidConfiguration))
	}
	*dst = f
	return nil
}

func loadDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return core.NewFrameworkError("config.Load", "config", fmt.Errorf("%s=%q: %w", key, v, core.ErrInvalidConfiguration))
	}
	*dst = d
	return nil
}

// parseBool accepts "true"/"1"/"yes"/"on" (case-insensitive) as true,
// matching gomind's own core.parseBool convention.
func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
