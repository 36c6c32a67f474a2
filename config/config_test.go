package config_test

import (
	"testing"
	"time"

	"github.com/factwatch/factwatch/config"
	"github.com/factwatch/factwatch/internal/watch/event"
	"github.com/factwatch/factwatch/internal/watch/pump"
	"github.com/factwatch/factwatch/util/conf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Defaults:  config.DefaultConfig,
		EnvPrefix: "FACTWATCH_CONFIG_TEST_",
	})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "FactorioWatch", cfg.Notify.Sender)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Supervisor.DrainTimeout)
	assert.Zero(t, cfg.Supervisor.KillAfter)
	assert.False(t, cfg.Supervisor.ForwardSignal)
	assert.Equal(t, 4, cfg.Dispatch.MaxConcurrent)
	assert.Equal(t, event.DefaultPatterns, cfg.Patterns)
	assert.Equal(t, pump.DecodeSkip, cfg.Pump.Decode)
	assert.False(t, cfg.MetricsEnabled())
}

func TestConfig_NestedEnv(t *testing.T) {
	t.Setenv("FACTWATCH_CONFIG_TEST_SUPERVISOR__KILL_AFTER", "30s")
	t.Setenv("FACTWATCH_CONFIG_TEST_SUPERVISOR__COMMAND", "/opt/factorio/bin/x64/factorio")
	t.Setenv("FACTWATCH_CONFIG_TEST_METRICS__PORT", "9100")

	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Defaults:  config.DefaultConfig,
		EnvPrefix: "FACTWATCH_CONFIG_TEST_",
	})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Supervisor.KillAfter)
	assert.Equal(t, "/opt/factorio/bin/x64/factorio", cfg.Supervisor.Process.Cmd)
	assert.True(t, cfg.MetricsEnabled())
}
