package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tpanarchist/omen/invariant"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"OMEN_BUDGET_DEFAULT_TOKENS", "OMEN_BUDGET_DEFAULT_TOOL_CALLS", "OMEN_BUDGET_DEFAULT_TIME_SECONDS",
		"OMEN_BUDGET_DEFAULT_RISK_MAX", "OMEN_FRESHNESS_REALTIME_SECONDS", "OMEN_FRESHNESS_OPERATIONAL_SECONDS",
		"OMEN_MAX_STEPS", "OMEN_STEP_TIMEOUT", "OMEN_SAFE_MODE_ON_CRITICAL",
		"OMEN_BUDGET_WARNING_THRESHOLD", "OMEN_BUDGET_HIGH_THRESHOLD",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadWithNoEnvOverridesReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OMEN_BUDGET_DEFAULT_TOKENS", "5000")
	t.Setenv("OMEN_MAX_STEPS", "10")
	t.Setenv("OMEN_STEP_TIMEOUT", "5s")
	t.Setenv("OMEN_SAFE_MODE_ON_CRITICAL", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), cfg.BudgetDefaultTokens)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.StepTimeout)
	assert.False(t, cfg.SafeModeOnCritical)
}

func TestLoadRejectsMalformedEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("OMEN_MAX_STEPS", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsWarningThresholdAtOrAboveHigh(t *testing.T) {
	cfg := Default()
	cfg.BudgetWarningThreshold = 1.0
	cfg.BudgetHighThreshold = 1.0
	assert.Error(t, cfg.Validate())
}

func TestLedgerBudgetsMirrorsLoadedDefaults(t *testing.T) {
	cfg := Default()
	b := cfg.LedgerBudgets()
	assert.Equal(t, cfg.BudgetDefaultTokens, b.TokenBudget)
	assert.Equal(t, cfg.BudgetDefaultToolCalls, b.ToolCallBudget)
	assert.Equal(t, cfg.BudgetDefaultTimeSeconds, b.TimeBudgetSeconds)
	assert.Equal(t, cfg.BudgetDefaultRiskMax, b.RiskMax)
}

func TestApplyFreshnessWindowsPushesIntoInvariantPackage(t *testing.T) {
	defer func() {
		invariant.RealtimeFreshnessWindowSeconds = 60
		invariant.OperationalFreshnessWindowSeconds = 3600
	}()

	cfg := Default()
	cfg.FreshnessRealtimeSeconds = 30
	cfg.FreshnessOperationalSeconds = 1800
	cfg.ApplyFreshnessWindows()

	assert.Equal(t, int64(30), invariant.RealtimeFreshnessWindowSeconds)
	assert.Equal(t, int64(1800), invariant.OperationalFreshnessWindowSeconds)
}
