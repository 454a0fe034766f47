package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/infra/observability"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// When apiSecret is set, every /v1 route requires an HS256 bearer token.
func NewRouter(svc *service.ReportService, metrics *observability.Metrics, logger *zap.Logger, apiSecret string) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if apiSecret != "" {
			r.Use(JWTAuthMiddleware([]byte(apiSecret), logger))
		}

		// GET  /v1/report          rendered HTML for the requested window
		// GET  /v1/report/summary  settlement as JSON
		// POST /v1/report/send     fresh run delivered to every sink
		r.Get("/report", reportHTMLHandler(svc, logger))
		r.Get("/report/summary", reportSummaryHandler(svc, logger))
		r.Post("/report/send", reportSendHandler(svc, logger))

		r.Get("/metrics/report", reportMetricsHandler(svc, metrics))
	})

	return r
}

// ============================================================
// Report
// ============================================================

func reportHTMLHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/report")
		defer span.End()

		intent, err := parseIntent(r, svc.DefaultIntent())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Preview(ctx, intent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("report.window", report.Window.Key()))

		writeHTML(w, http.StatusOK, report.HTML)
	}
}

type reportSummaryResponse struct {
	RunID       string                   `json:"runId"`
	WindowStart string                   `json:"windowStart"`
	WindowEnd   string                   `json:"windowEnd"`
	Subject     string                   `json:"subject"`
	Settlement  string                   `json:"settlement"`
	Summary     domain.SettlementSummary `json:"summary"`
	Rows        int                      `json:"rows"`
	GeneratedAt string                   `json:"generatedAt"`
}

func newSummaryResponse(report *domain.Report) reportSummaryResponse {
	return reportSummaryResponse{
		RunID:       report.RunID,
		WindowStart: report.Window.Start.Format(domain.DateLayout),
		WindowEnd:   report.Window.End.Format(domain.DateLayout),
		Subject:     report.Subject,
		Settlement:  service.SettlementLine(report.Summary),
		Summary:     report.Summary,
		Rows:        len(report.Rows),
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
	}
}

func reportSummaryHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/report/summary")
		defer span.End()

		intent, err := parseIntent(r, svc.DefaultIntent())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Preview(ctx, intent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, newSummaryResponse(report))
	}
}

type reportSendResponse struct {
	reportSummaryResponse
	Receipts []domain.DeliveryReceipt `json:"receipts"`
}

func reportSendHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/report/send")
		defer span.End()

		intent, err := parseIntent(r, svc.DefaultIntent())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.Run(ctx, intent)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("report.run_id", report.RunID))
		logger.Info("report send requested",
			zap.String("run_id", report.RunID),
			zap.String("subject", SubjectFromContext(ctx)),
		)

		receipts, err := svc.Deliver(ctx, report)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusAccepted, reportSendResponse{
			reportSummaryResponse: newSummaryResponse(report),
			Receipts:              receipts,
		})
	}
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(svc *service.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "ynab-report", Status: "healthy", LastChecked: now},
		}
		if svc != nil {
			for _, sink := range svc.SinkNames() {
				services = append(services, domain.ServiceHealth{
					Name: "sink:" + sink, Status: "configured", LastChecked: now,
				})
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   "healthy",
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func reportMetricsHandler(svc *service.ReportService, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sinks []string
		if svc != nil {
			sinks = svc.SinkNames()
		}
		writeJSON(w, http.StatusOK, metrics.GetReportSnapshot(sinks))
	}
}
