// Command ynab-report builds the shared-expense report for one window and
// delivers it through the configured sinks, then exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/boddenberg/ynab-shared-report/internal/app"
	"github.com/boddenberg/ynab-shared-report/internal/config"
	"github.com/boddenberg/ynab-shared-report/internal/infra/delivery"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always runs.
func run(args []string) int {
	fs := flag.NewFlagSet("ynab-report", flag.ContinueOnError)
	envFile := fs.String("env", ".env", "dotenv file to load before reading the environment")
	out := fs.String("out", "", "also write the rendered HTML to this path")
	dryRun := fs.Bool("dry-run", false, "build the report without delivering it")
	period := fs.String("period", "", "override REPORT_PERIOD (last_month, last_week)")
	start := fs.String("start", "", "override REPORT_START_DATE (YYYY-MM-DD)")
	end := fs.String("end", "", "override REPORT_END_DATE (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = config.LoadDotEnv(*envFile)
	cfg := config.Load()
	if *period != "" {
		cfg.ReportPeriod = *period
	}
	if *start != "" {
		cfg.ReportStartDate = *start
	}
	if *end != "" {
		cfg.ReportEndDate = *end
	}
	if *dryRun {
		cfg.DeliverySinks = nil
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 2
	}

	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ynab-report")
	if err != nil {
		logger.Error("failed to init tracer", zap.Error(err))
		return 1
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{SkipDelivery: *dryRun})
	if err != nil {
		logger.Error("failed to build report service", zap.Error(err))
		return 1
	}
	defer a.Close()

	report, err := a.Service.Run(ctx, a.Service.DefaultIntent())
	if err != nil {
		logger.Error("report run failed", zap.Error(err))
		return 1
	}

	log := logger.With(observability.RunFields(report.RunID, report.Window.Start, report.Window.End)...)
	log.Info("report ready",
		zap.String("subject", report.Subject),
		zap.String("settlement", service.SettlementLine(report.Summary)),
	)

	if *out != "" {
		if _, err := delivery.NewFileSender(*out).Send(ctx, report); err != nil {
			log.Error("failed to write report", zap.String("path", *out), zap.Error(err))
			return 1
		}
		log.Info("report written", zap.String("path", *out))
	}

	if *dryRun {
		log.Info("dry run, skipping delivery")
		return 0
	}

	receipts, err := a.Service.Deliver(ctx, report)
	if err != nil {
		log.Error("delivery failed", zap.Int("delivered", len(receipts)), zap.Error(err))
		return 1
	}
	for _, r := range receipts {
		log.Info("delivered", zap.String("sink", r.Sink), zap.String("message_id", r.MessageID), zap.String("location", r.Location))
	}
	return 0
}
