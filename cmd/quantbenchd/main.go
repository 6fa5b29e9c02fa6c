// Package main provides the entry point for the QuantBench daemon.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/config"
	"github.com/yourusername/quantbench/internal/database"
	"github.com/yourusername/quantbench/internal/logger"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/metrics"
	"github.com/yourusername/quantbench/internal/progress"
	"github.com/yourusername/quantbench/internal/repository"
	"github.com/yourusername/quantbench/internal/scheduler"
	"github.com/yourusername/quantbench/internal/service"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
	}).Info("QuantBench daemon starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	appLog.Info("Database connection established")

	repos, err := repository.NewRepositories(db)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize repositories")
	}

	httpLogger := log.New(os.Stdout, "marketdata-http: ", log.LstdFlags)
	httpClient := marketdata.NewRateLimitedHTTPClient(marketdata.HTTPClientConfig{
		Timeout:           time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.MarketData.RetryAttempts,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		RateLimit:         cfg.MarketData.RequestsPerSecond,
		CircuitBreakerMax: 5,
	}, httpLogger)
	defer httpClient.Close()
	provider := marketdata.NewRESTProvider(httpClient, cfg.MarketData.BaseURL, cfg.MarketData.APIKey,
		log.New(os.Stdout, "marketdata: ", log.LstdFlags))

	var hub *progress.WebSocketHub
	var sink progress.Sink = progress.NopSink{}
	if cfg.Progress.WebSocketEnabled {
		hub = progress.NewWebSocketHub(appLog)
		sink = hub
		defer hub.Close()
	}

	svc := service.NewBacktestService(cfg, provider, repos.Backtest, sink, appLog)
	defer svc.Close()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled || cfg.Progress.WebSocketEnabled {
		metrics.InitRegistry()
		mux := http.NewServeMux()
		if cfg.Metrics.Enabled {
			mux.Handle(cfg.Metrics.Path, metrics.Handler())
		}
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.HealthCheck(r.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		if hub != nil {
			mux.Handle("/ws/progress", hub)
		}
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			appLog.WithField("addr", metricsServer.Addr).Info("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(svc, appLog)
		for _, job := range cfg.Scheduler.Jobs {
			if err := sched.ScheduleJob(job); err != nil {
				appLog.WithError(err).Fatal("Failed to schedule job")
			}
		}
		if err := sched.Start(); err != nil {
			appLog.WithError(err).Fatal("Failed to start scheduler")
		}
		appLog.WithField("next_run", sched.GetNextRun()).Info("Scheduler running")
	}

	appLog.WithFields(logrus.Fields{
		"scheduler": cfg.Scheduler.Enabled,
		"metrics":   cfg.Metrics.Enabled,
		"websocket": cfg.Progress.WebSocketEnabled,
	}).Info("QuantBench daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	cancel()
	if sched != nil {
		sched.Stop()
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Metrics server shutdown failed")
		}
		shutdownCancel()
	}

	appLog.Info("QuantBench daemon shut down successfully")
}

func configPath() string {
	if path := os.Getenv("QUANTBENCH_CONFIG_PATH"); path != "" {
		return path
	}
	return "config/config.yaml"
}
