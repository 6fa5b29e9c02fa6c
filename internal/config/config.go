// Package config provides configuration management for the QuantBench service.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig     `mapstructure:"database" validate:"required"`
	MarketData   MarketDataConfig   `mapstructure:"market_data" validate:"required"`
	Backtest     BacktestConfig     `mapstructure:"backtest" validate:"required"`
	Optimization OptimizationConfig `mapstructure:"optimization" validate:"required"`
	Metrics      MetricsConfig      `mapstructure:"metrics" validate:"required"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Progress     ProgressConfig     `mapstructure:"progress"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// MarketDataConfig represents the candle provider configuration
type MarketDataConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	Burst             int     `mapstructure:"burst" validate:"required,gt=0"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RetryAttempts     int     `mapstructure:"retry_attempts" validate:"gte=0"`
}

// BacktestConfig represents simulation defaults applied when a request
// leaves them unset
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital" validate:"required,gt=0"`
	CommissionRate float64 `mapstructure:"commission_rate" validate:"gte=0,lte=0.1"`
	SlippageRate   float64 `mapstructure:"slippage_rate" validate:"gte=0,lte=0.1"`
	OutputPath     string  `mapstructure:"output_path" validate:"required"`
}

// OptimizationConfig represents grid search configuration
type OptimizationConfig struct {
	MaxCombinations int `mapstructure:"max_combinations" validate:"required,gt=0"`
	CacheTTLMs      int `mapstructure:"cache_ttl_ms" validate:"required,gt=0"`
	TopResults      int `mapstructure:"top_results" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig represents recurring backtest scheduling
type SchedulerConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Jobs    []ScheduledJob `mapstructure:"jobs" validate:"omitempty,dive"`
}

// ScheduledJob represents one recurring backtest definition
type ScheduledJob struct {
	Name      string   `mapstructure:"name" validate:"required"`
	Cron      string   `mapstructure:"cron" validate:"required"`
	Strategy  string   `mapstructure:"strategy" validate:"required"`
	Symbols   []string `mapstructure:"symbols" validate:"required,min=1"`
	Timeframe string   `mapstructure:"timeframe" validate:"required,timeframe"`
	Lookback  string   `mapstructure:"lookback" validate:"required"`
}

// ProgressConfig represents progress streaming configuration
type ProgressConfig struct {
	WebSocketEnabled bool `mapstructure:"websocket_enabled"`
	Port             int  `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// CacheTTL returns the optimization cache TTL as a duration
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Optimization.CacheTTLMs) * time.Millisecond
}
