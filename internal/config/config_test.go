package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func validEnv() map[string]string {
	return map[string]string{
		"GRID_STRATEGY_ID":      "test-strategy",
		"GRID_SYMBOL":           "BTC",
		"EXCHANGE":              "mock",
		"GRID_LEVELS":           "5",
		"GRID_SPACING_MODE":     "ABS",
		"GRID_SPACING":          "10",
		"GRID_QUANTITY":         "0.01",
		"GRID_POST_ONLY":        "true",
		"GRID_CANCEL_TIMEOUT_MS": "5000",
		"GRID_MAX_POSITION":     "1",
		"GRID_MAX_OPEN_ORDERS":  "10",
	}
}

func TestLoadValidABSConfig(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Exchange)
	assert.Equal(t, 5, cfg.Grid.Levels)
	assert.True(t, cfg.Manager.PostOnly)
	assert.Equal(t, "test-strategy", cfg.Manager.StrategyID)
	// Design-value timings fill in even though unset by env.
	assert.NotZero(t, cfg.Manager.MarkShiftConfirm)
	assert.NotZero(t, cfg.Manager.PositionFreshWindow)
}

func TestLoadDefaultsStrategyID(t *testing.T) {
	env := validEnv()
	delete(env, "GRID_STRATEGY_ID")
	setEnv(t, env)
	os.Unsetenv("GRID_STRATEGY_ID")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "grid-default", cfg.Manager.StrategyID)
}

func TestLoadPercentModeRequiresSpacingPercent(t *testing.T) {
	env := validEnv()
	env["GRID_SPACING_MODE"] = "PERCENT"
	delete(env, "GRID_SPACING")
	setEnv(t, env)
	os.Unsetenv("GRID_SPACING")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_SPACING_PERCENT")
}

func TestLoadRejectsMissingSymbol(t *testing.T) {
	env := validEnv()
	delete(env, "GRID_SYMBOL")
	setEnv(t, env)
	os.Unsetenv("GRID_SYMBOL")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_SYMBOL")
}

func TestLoadRejectsNonPositiveQuantity(t *testing.T) {
	env := validEnv()
	env["GRID_QUANTITY"] = "0"
	setEnv(t, env)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_QUANTITY")
}

func TestLoadRejectsInvalidSpacingMode(t *testing.T) {
	env := validEnv()
	env["GRID_SPACING_MODE"] = "WEIRD"
	setEnv(t, env)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_SPACING_MODE")
}

func TestConfigStringRendersYAML(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := Load()
	require.NoError(t, err)

	out := cfg.String()
	assert.Contains(t, out, "exchange: mock")
	assert.Contains(t, out, "symbol: BTC")
}

func TestLoadAccumulatesMultipleErrors(t *testing.T) {
	setEnv(t, map[string]string{
		"GRID_SPACING_MODE": "ABS",
	})
	for _, k := range []string{"GRID_STRATEGY_ID", "GRID_SYMBOL", "EXCHANGE", "GRID_LEVELS", "GRID_SPACING",
		"GRID_QUANTITY", "GRID_POST_ONLY", "GRID_CANCEL_TIMEOUT_MS", "GRID_MAX_POSITION", "GRID_MAX_OPEN_ORDERS"} {
		os.Unsetenv(k)
	}

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_SYMBOL")
	assert.Contains(t, err.Error(), "EXCHANGE")
	assert.Contains(t, err.Error(), "GRID_LEVELS")
}
