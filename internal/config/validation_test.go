package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "signalengine",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "console",
		},
		Engine: EngineConfig{
			PercentSlippage:      0.1,
			PercentFee:           0.1,
			ScheduleAwaitMinutes: 60,
			AvgPriceCandlesCount: 5,
		},
		Redis: RedisConfig{Enabled: false},
		NATS:  NATSConfig{Enabled: false},
		Exchanges: map[string]ExchangeConfig{
			"binance": {Testnet: true, RequestsPerSecond: 10},
		},
		Persist: PersistConfig{Enabled: true, Dir: "./data/state"},
		Monitor: MonitoringConfig{PrometheusPort: 9100, EnableMetrics: true},
	}
}

func TestValidate_ValidConfigPasses(t *testing.T) {
	err := validConfig().Validate()
	require.NoError(t, err)
}

func TestValidate_BadEnvironmentRejected(t *testing.T) {
	cfg := validConfig()
	cfg.App.Environment = "prod"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.environment")
}

func TestValidate_NonPositiveScheduleAwaitRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.ScheduleAwaitMinutes = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.schedule_await_minutes")
}

func TestValidate_StopLossDistanceOrderingEnforced(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.MinStopLossDistancePercent = 5
	cfg.Engine.MaxStopLossDistancePercent = 2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_stoploss_distance_percent")
}

func TestValidate_RedisRequiresHostWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Host = ""
	cfg.Redis.Port = 6379
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.host")
}

func TestValidate_PersistenceRequiresDirWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Persist.Enabled = true
	cfg.Persist.Dir = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistence.dir")
}
