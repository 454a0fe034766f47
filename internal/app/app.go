// Package app wires configuration into a ready ReportService. Both the
// one-shot runner and the preview server start from here.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/ynab-shared-report/internal/config"
	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/infra/cache"
	"github.com/boddenberg/ynab-shared-report/internal/infra/client"
	"github.com/boddenberg/ynab-shared-report/internal/infra/delivery"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"
	"github.com/boddenberg/ynab-shared-report/internal/infra/resilience"
	"github.com/boddenberg/ynab-shared-report/internal/port"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	"go.uber.org/zap"
)

// App holds the wired service and everything that must be released on exit.
type App struct {
	Service *service.ReportService
	Metrics *observability.Metrics

	cleanup []func()
}

// Options adjust wiring for a particular entry point.
type Options struct {
	// SkipDelivery builds no sinks, for dry runs.
	SkipDelivery bool
}

// New builds the report service from cfg. Delivery sinks are opened here, so
// a broken sink configuration fails before any report is produced.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	intent, err := cfg.Intent()
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	cb := resilience.NewCircuitBreaker("ynab-api", logger)
	ynab := client.NewYNABClient(httpClient, cfg.YNABAPIURL, cfg.YNABAPIToken, cfg.YNABBudgetID, cb, cfg.Resilience())

	a := &App{Metrics: metrics}

	var senders []port.ReportSender
	if !opts.SkipDelivery {
		res, err := delivery.NewSenders(ctx, cfg.Delivery(), logger)
		if err != nil {
			return nil, fmt.Errorf("delivery: %w", err)
		}
		senders = res.Senders
		a.cleanup = append(a.cleanup, res.Cleanup)
	}

	reportCache := cache.New[*domain.Report](cfg.CacheTTL)
	a.cleanup = append(a.cleanup, reportCache.Stop)

	a.Service = service.NewReportService(
		ynab,
		ynab,
		senders,
		reportCache,
		metrics,
		logger,
		service.Settings{
			SharedGroups:   cfg.SharedGroups,
			AccountHolders: cfg.Holders(),
			SubjectPrefix:  cfg.EmailSubject,
			DefaultIntent:  intent,
			MaxConcurrency: cfg.MaxConcurrency,
			RunTimeout:     cfg.RunTimeout,
		},
	)
	return a, nil
}

// Close releases sinks and background workers in reverse order.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}
