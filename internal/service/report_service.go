package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"
	"github.com/boddenberg/ynab-shared-report/internal/infra/resilience"
	"github.com/boddenberg/ynab-shared-report/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service/report")

const defaultRunTimeout = time.Minute

// Settings are the per-deployment inputs of every run.
type Settings struct {
	SharedGroups   []string
	AccountHolders domain.AccountHolders
	SubjectPrefix  string
	DefaultIntent  domain.WindowIntent
	MaxConcurrency int

	// RunTimeout bounds a preview run shared between callers; zero means
	// defaultRunTimeout.
	RunTimeout time.Duration

	// Now is the run clock; nil means time.Now.
	Now func() time.Time
}

// ReportService runs the fetch → normalize → render pipeline and fans the
// result out to the delivery sinks. Each run is sequential and keeps no
// state beyond the optional report cache.
type ReportService struct {
	categories   port.CategorySource
	transactions port.TransactionSource
	senders      []port.ReportSender
	cache        port.Cache[*domain.Report]
	metrics      *observability.Metrics
	logger       *zap.Logger
	settings     Settings
	bulkhead     *resilience.Bulkhead
	inflight     singleflight.Group
}

// NewReportService creates the report service with all dependencies injected.
func NewReportService(
	categories port.CategorySource,
	transactions port.TransactionSource,
	senders []port.ReportSender,
	cache port.Cache[*domain.Report],
	metrics *observability.Metrics,
	logger *zap.Logger,
	settings Settings,
) *ReportService {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.RunTimeout <= 0 {
		settings.RunTimeout = defaultRunTimeout
	}
	return &ReportService{
		categories:   categories,
		transactions: transactions,
		senders:      senders,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		settings:     settings,
		bulkhead:     resilience.NewBulkhead(settings.MaxConcurrency),
	}
}

// DefaultIntent is the configured window intent, used when a caller has none.
func (s *ReportService) DefaultIntent() domain.WindowIntent {
	return s.settings.DefaultIntent
}

// SinkNames lists the configured delivery sinks in order.
func (s *ReportService) SinkNames() []string {
	names := make([]string, len(s.senders))
	for i, snd := range s.senders {
		names[i] = snd.Name()
	}
	return names
}

// Run resolves the window and builds a fresh report. A window that cannot
// be resolved fails before anything is fetched.
func (s *ReportService) Run(ctx context.Context, intent domain.WindowIntent) (*domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ReportService.Run")
	defer span.End()

	window, err := ResolveWindow(intent, s.settings.Now())
	if err != nil {
		s.metrics.IncrRun("config_error")
		return nil, err
	}
	return s.build(ctx, window)
}

// Preview returns a report for the intent, served from the cache when a
// fresh one exists. Concurrent previews of the same window share one run.
func (s *ReportService) Preview(ctx context.Context, intent domain.WindowIntent) (*domain.Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Preview")
	defer span.End()

	window, err := ResolveWindow(intent, s.settings.Now())
	if err != nil {
		s.metrics.IncrRun("config_error")
		return nil, err
	}

	key := window.Key()
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("report")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("report")

	// The shared run outlives any single caller: it keeps the trace values
	// but not the cancellation of whoever started it.
	ch := s.inflight.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.RunTimeout)
		defer cancel()

		if err := s.bulkhead.Acquire(runCtx); err != nil {
			return nil, err
		}
		defer s.bulkhead.Release()

		report, err := s.build(runCtx, window)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, report)
		return report, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		span.SetAttributes(attribute.Bool("report.shared_run", res.Shared))
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Report), nil
	}
}

// Deliver sends the report through every sink in order. The first failing
// sink stops delivery; receipts of the sinks that succeeded are returned.
func (s *ReportService) Deliver(ctx context.Context, report *domain.Report) ([]domain.DeliveryReceipt, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Deliver")
	defer span.End()

	log := s.logger.With(observability.RunFields(report.RunID, report.Window.Start, report.Window.End)...)

	receipts := make([]domain.DeliveryReceipt, 0, len(s.senders))
	for _, snd := range s.senders {
		start := time.Now()
		receipt, err := snd.Send(ctx, report)
		s.metrics.RecordStageDuration("deliver_"+snd.Name(), time.Since(start))
		if err != nil {
			s.metrics.IncrDelivery(snd.Name(), "error")
			log.Error("report delivery failed", zap.String("sink", snd.Name()), zap.Error(err))
			return receipts, &domain.ErrExternalService{Service: snd.Name(), Err: err}
		}
		s.metrics.IncrDelivery(snd.Name(), "success")
		log.Info("report delivered",
			zap.String("sink", receipt.Sink),
			zap.String("message_id", receipt.MessageID),
			zap.String("location", receipt.Location),
		)
		receipts = append(receipts, *receipt)
	}
	return receipts, nil
}

// build performs one sequential run for a resolved window.
func (s *ReportService) build(ctx context.Context, window domain.DateWindow) (*domain.Report, error) {
	runID := uuid.New().String()
	log := s.logger.With(observability.RunFields(runID, window.Start, window.End)...)
	started := time.Now()

	ctx, span := tracer.Start(ctx, "ReportService.build")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.run_id", runID),
		attribute.String("report.window", window.Key()),
	)

	// --- Step 1: categories ---
	stageStart := time.Now()
	groups, err := s.categories.GetCategoryGroups(ctx)
	s.metrics.RecordStageDuration("fetch_categories", time.Since(stageStart))
	if err != nil {
		log.Error("failed to fetch categories", zap.Error(err))
		s.metrics.IncrExternalError("categories")
		s.metrics.IncrRun("fetch_error")
		return nil, fmt.Errorf("categories fetch: %w", err)
	}

	// --- Step 2: transactions ---
	stageStart = time.Now()
	raw, err := s.transactions.GetTransactions(ctx, window.Start)
	s.metrics.RecordStageDuration("fetch_transactions", time.Since(stageStart))
	if err != nil {
		log.Error("failed to fetch transactions", zap.Error(err))
		s.metrics.IncrExternalError("transactions")
		s.metrics.IncrRun("fetch_error")
		return nil, fmt.Errorf("transactions fetch: %w", err)
	}

	// --- Step 3: classify + normalize ---
	stageStart = time.Now()
	shares := BuildCategoryShareMap(groups, s.settings.SharedGroups)
	rows, err := Normalize(raw, shares, s.settings.AccountHolders, window)
	s.metrics.RecordStageDuration("normalize", time.Since(stageStart))
	if err != nil {
		log.Error("transaction data is malformed, no report produced", zap.Error(err))
		s.metrics.IncrRun("data_error")
		return nil, fmt.Errorf("normalize: %w", err)
	}

	if n := countUnattributed(rows); n > 0 {
		log.Warn("rows without an account holder are left out of the settlement",
			zap.Int("rows", n),
			zap.Strings("holders", s.settings.AccountHolders[:]),
		)
	}

	// --- Step 4: render ---
	stageStart = time.Now()
	report, err := RenderReport(rows, window, s.settings.SubjectPrefix)
	s.metrics.RecordStageDuration("render", time.Since(stageStart))
	if err != nil {
		s.metrics.IncrRun("render_error")
		return nil, err
	}
	report.RunID = runID
	report.GeneratedAt = s.settings.Now()

	categorized, uncategorized := SplitRows(rows)
	s.metrics.AddRows("categorized", len(categorized))
	s.metrics.AddRows("uncategorized", len(uncategorized))
	s.metrics.RecordStageDuration("run", time.Since(started))
	s.metrics.IncrRun("success")

	if report.Summary.Ambiguity != nil {
		log.Warn("settlement skipped", zap.Strings("holders_found", report.Summary.Ambiguity.Holders))
	}
	log.Info("report built",
		zap.Int("raw_transactions", len(raw)),
		zap.Int("rows", len(rows)),
		zap.String("settlement", SettlementLine(report.Summary)),
	)
	return report, nil
}

func countUnattributed(rows []domain.NormalizedRow) int {
	n := 0
	for _, r := range rows {
		if r.AccountHolder == "" {
			n++
		}
	}
	return n
}
