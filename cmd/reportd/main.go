package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/app"
	"github.com/boddenberg/ynab-shared-report/internal/config"
	"github.com/boddenberg/ynab-shared-report/internal/handler"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ynab_api_url", cfg.YNABAPIURL),
		zap.Strings("shared_groups", cfg.SharedGroups),
		zap.Strings("account_holders", cfg.AccountHolders),
		zap.String("report_period", cfg.ReportPeriod),
		zap.Strings("delivery_sinks", cfg.DeliverySinks),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("auth_enabled", cfg.ReportAPISecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ynab-reportd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Service ---
	a, err := app.New(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("failed to build report service", zap.Error(err))
	}
	defer a.Close()

	if cfg.ReportAPISecret == "" {
		logger.Warn("REPORT_API_SECRET not set, /v1 routes are unauthenticated")
	}

	// --- Router ---
	router := handler.NewRouter(a.Service, a.Metrics, logger, cfg.ReportAPISecret)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
