// Package config provides configuration management for the QuantBench service.
package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const (
	validConfigPath     = "testdata/valid_config.yaml"
	expansionConfigPath = "testdata/expansion_config.yaml"
)

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.App.Name != "quantbench" {
		t.Errorf("expected app name 'quantbench', got '%s'", cfg.App.Name)
	}
	if cfg.App.Environment != "development" {
		t.Errorf("expected environment 'development', got '%s'", cfg.App.Environment)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected database port 5432, got %d", cfg.Database.Port)
	}
	if cfg.MarketData.RequestsPerSecond != 5 {
		t.Errorf("expected 5 requests per second, got %v", cfg.MarketData.RequestsPerSecond)
	}
	if cfg.Optimization.TopResults != 10 {
		t.Errorf("expected top_results 10, got %d", cfg.Optimization.TopResults)
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load("testdata/nonexistent_config.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	os.Setenv("QUANTBENCH_APP_NAME", "quantbench-test")
	defer os.Unsetenv("QUANTBENCH_APP_NAME")

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.App.Name != "quantbench-test" {
		t.Errorf("expected app name 'quantbench-test' from environment, got '%s'", cfg.App.Name)
	}
}

// TestLoadConfigEnvironmentVariableExpansion tests ${VAR} expansion in the file
func TestLoadConfigEnvironmentVariableExpansion(t *testing.T) {
	os.Setenv("TEST_DB_PASSWORD", "expanded_secret_value")
	defer os.Unsetenv("TEST_DB_PASSWORD")

	cfg, err := Load(expansionConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config with expansion, got %v", err)
	}
	if cfg.Database.Password != "expanded_secret_value" {
		t.Errorf("expected password from environment expansion, got '%s'", cfg.Database.Password)
	}
}

// TestLoadWithDefaultsMissingFile tests that a missing file falls back to defaults
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults("testdata/nonexistent_config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file with defaults, got %v", err)
	}

	if cfg.App.Name != "quantbench" {
		t.Errorf("expected default app name, got '%s'", cfg.App.Name)
	}
	if cfg.Backtest.InitialCapital != 10000 {
		t.Errorf("expected default initial capital 10000, got %v", cfg.Backtest.InitialCapital)
	}
	if cfg.Optimization.CacheTTLMs != 86400000 {
		t.Errorf("expected default cache TTL, got %d", cfg.Optimization.CacheTTLMs)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("expected default metrics path, got '%s'", cfg.Metrics.Path)
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidEnvironment tests validation of invalid environment
func TestValidateInvalidEnvironment(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.App.Environment = "invalid"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid environment")
	}
}

// TestValidateInvalidLogLevel tests validation of invalid log level
func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.App.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

// TestValidateSchedulerJobTimeframe tests timeframe validation of scheduled jobs
func TestValidateSchedulerJobTimeframe(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Jobs = []ScheduledJob{{
		Name:      "nightly",
		Cron:      "0 2 * * *",
		Strategy:  "sma_cross",
		Symbols:   []string{"BTC-USD"},
		Timeframe: "2w",
		Lookback:  "720h",
	}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown timeframe")
	}
	if !strings.Contains(err.Error(), "timeframe") {
		t.Errorf("expected timeframe validation error, got: %v", err)
	}

	cfg.Scheduler.Jobs[0].Timeframe = "1h"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no error with valid timeframe, got %v", err)
	}
}

// TestValidateProductionRequiresSSL tests the production SSL cross-field rule
func TestValidateProductionRequiresSSL(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "disable"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for production with SSL disabled")
	}

	cfg.Database.SSLMode = "require"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected no error with SSL required, got %v", err)
	}
}

// TestValidateIdleConnectionsBound tests the connection pool cross-field rule
func TestValidateIdleConnectionsBound(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.Database.MaxIdleConnections = cfg.Database.MaxConnections + 1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for idle connections above max")
	}
}

// TestValidateSchedulerNeedsJobs tests the scheduler cross-field rule
func TestValidateSchedulerNeedsJobs(t *testing.T) {
	cfg := mustLoadValid(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Jobs = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for enabled scheduler without jobs")
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	cfg := mustLoadValid(t)
	dsn := cfg.GetDatabaseDSN()
	if !strings.HasPrefix(dsn, "postgres://") {
		t.Errorf("expected DSN to start with 'postgres://', got '%s'", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("expected DSN to carry ssl mode, got '%s'", dsn)
	}
}

// TestCacheTTL tests cache TTL conversion
func TestCacheTTL(t *testing.T) {
	cfg := &Config{Optimization: OptimizationConfig{CacheTTLMs: 86400000}}
	if cfg.CacheTTL() != 24*time.Hour {
		t.Errorf("expected 24h cache TTL, got %v", cfg.CacheTTL())
	}
}

// TestIsDevelopment tests environment check functions
func TestIsDevelopment(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "development"}}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return true")
	}
	if cfg.IsProduction() {
		t.Error("expected IsProduction() to return false")
	}
}

// TestIsProduction tests production environment check
func TestIsProduction(t *testing.T) {
	cfg := &Config{App: AppConfig{Environment: "production"}}
	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to return true")
	}
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return false")
	}
}

func mustLoadValid(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}
	return cfg
}
