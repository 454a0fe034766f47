package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// parseIntent reads ?period= or ?start=&end= from the query. With none of
// them set, the configured default applies.
func parseIntent(r *http.Request, fallback domain.WindowIntent) (domain.WindowIntent, error) {
	q := r.URL.Query()
	if q.Get("period") == "" && q.Get("start") == "" && q.Get("end") == "" {
		return fallback, nil
	}

	period, err := service.ParsePeriod(q.Get("period"))
	if err != nil {
		return domain.WindowIntent{}, &domain.ErrValidation{Field: "period", Message: "must be last_month or last_week"}
	}
	intent := domain.WindowIntent{Period: period}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &intent.Start}, {"end", &intent.End}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(domain.DateLayout, v)
		if err != nil {
			return domain.WindowIntent{}, &domain.ErrValidation{Field: p.name, Message: "must be YYYY-MM-DD"}
		}
		*p.dst = &t
	}
	return intent, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var configuration *domain.ErrConfiguration
	var notFound *domain.ErrNotFound
	var rateLimited *domain.ErrRateLimited
	var dataShape *domain.ErrDataShape
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &configuration):
		logger.Debug("window not resolvable", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rateLimited), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		logger.Warn("budgeting API unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &dataShape):
		logger.Error("malformed upstream data", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
