package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs comprehensive configuration validation. A ConfigError
// here is fatal at startup (§7) — the process must not start with an
// invalid engine configuration.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateExchanges()...)
	errors = append(errors, c.validatePersistence()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	validEnvs := []string{"development", "staging", "production"}
	if !contains(validEnvs, c.App.Environment) {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("must be one of %v, got %q", validEnvs, c.App.Environment),
		})
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, strings.ToLower(c.App.LogLevel)) {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLevels, c.App.LogLevel),
		})
	}

	return errors
}

func (c *Config) validateEngine() ValidationErrors {
	var errors ValidationErrors
	e := c.Engine

	if e.PercentSlippage < 0 {
		errors = append(errors, ValidationError{"engine.percent_slippage", "must be non-negative"})
	}
	if e.PercentFee < 0 {
		errors = append(errors, ValidationError{"engine.percent_fee", "must be non-negative"})
	}
	if e.ScheduleAwaitMinutes <= 0 {
		errors = append(errors, ValidationError{"engine.schedule_await_minutes", "must be positive"})
	}
	if e.AvgPriceCandlesCount <= 0 {
		errors = append(errors, ValidationError{"engine.avg_price_candles_count", "must be positive"})
	}
	if e.MinStopLossDistancePercent > 0 && e.MaxStopLossDistancePercent > 0 &&
		e.MinStopLossDistancePercent > e.MaxStopLossDistancePercent {
		errors = append(errors, ValidationError{
			Field:   "engine.min_stoploss_distance_percent",
			Message: "must not exceed max_stoploss_distance_percent",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors
	if !c.Redis.Enabled {
		return errors
	}
	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{"redis.host", "required when redis.enabled is true"})
	}
	if c.Redis.Port <= 0 {
		errors = append(errors, ValidationError{"redis.port", "must be positive when redis.enabled is true"})
	}
	return errors
}

func (c *Config) validateNATS() ValidationErrors {
	var errors ValidationErrors
	if !c.NATS.Enabled {
		return errors
	}
	if c.NATS.URL == "" {
		errors = append(errors, ValidationError{"nats.url", "required when nats.enabled is true"})
	}
	return errors
}

func (c *Config) validateExchanges() ValidationErrors {
	var errors ValidationErrors
	for name, ex := range c.Exchanges {
		if ex.RequestsPerSecond < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("exchanges.%s.requests_per_second", name),
				Message: "must be non-negative",
			})
		}
	}
	return errors
}

func (c *Config) validatePersistence() ValidationErrors {
	var errors ValidationErrors
	if c.Persist.Enabled && c.Persist.Dir == "" {
		errors = append(errors, ValidationError{"persistence.dir", "required when persistence.enabled is true"})
	}
	return errors
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
