package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all engine configuration (§6 "Configuration keys").
type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Engine    EngineConfig              `mapstructure:"engine"`
	Redis     RedisConfig               `mapstructure:"redis"`
	NATS      NATSConfig                `mapstructure:"nats"`
	Exchanges map[string]ExchangeConfig `mapstructure:"exchanges"`
	Persist   PersistConfig             `mapstructure:"persistence"`
	Monitor   MonitoringConfig          `mapstructure:"monitoring"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// EngineConfig carries the signal-lifecycle tuning knobs from §6.
type EngineConfig struct {
	PercentSlippage              float64 `mapstructure:"percent_slippage"`
	PercentFee                   float64 `mapstructure:"percent_fee"`
	ScheduleAwaitMinutes         int     `mapstructure:"schedule_await_minutes"`
	AvgPriceCandlesCount         int     `mapstructure:"avg_price_candles_count"`
	MinTakeProfitDistancePercent float64 `mapstructure:"min_takeprofit_distance_percent"`
	MinStopLossDistancePercent   float64 `mapstructure:"min_stoploss_distance_percent"`
	MaxStopLossDistancePercent   float64 `mapstructure:"max_stoploss_distance_percent"`
	MaxSignalLifetimeMinutes     int     `mapstructure:"max_signal_lifetime_minutes"`
}

// RedisConfig contains the optional average-price cache settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSecs  int    `mapstructure:"ttl_seconds"`
}

// NATSConfig contains the optional event fan-out bridge settings.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Prefix  string `mapstructure:"prefix"`
}

// ExchangeConfig contains per-exchange adapter settings.
type ExchangeConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	SecretKey         string  `mapstructure:"secret_key"`
	Testnet           bool    `mapstructure:"testnet"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// PersistConfig contains live-mode pending-state persistence settings.
type PersistConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// MonitoringConfig contains the Prometheus exposition settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load reads configuration from configPath (or ./configs, . by default),
// layering SIGNALENGINE_-prefixed environment variables on top, and
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SIGNALENGINE")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "signalengine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("engine.percent_slippage", 0.1)
	v.SetDefault("engine.percent_fee", 0.1)
	v.SetDefault("engine.schedule_await_minutes", 60)
	v.SetDefault("engine.avg_price_candles_count", 5)
	v.SetDefault("engine.min_takeprofit_distance_percent", 0.0)
	v.SetDefault("engine.min_stoploss_distance_percent", 0.0)
	v.SetDefault("engine.max_stoploss_distance_percent", 0.0)
	v.SetDefault("engine.max_signal_lifetime_minutes", 0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_seconds", 60)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.prefix", "signalengine")

	v.SetDefault("persistence.enabled", true)
	v.SetDefault("persistence.dir", "./data/state")

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)

	v.SetDefault("exchanges.binance.testnet", true)
	v.SetDefault("exchanges.binance.requests_per_second", 10.0)
}

// GetRedisAddr returns the Redis address in host:port form.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
