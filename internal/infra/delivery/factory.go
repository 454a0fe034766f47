package delivery

import (
	"context"
	"fmt"

	"github.com/boddenberg/ynab-shared-report/internal/port"

	"go.uber.org/zap"
)

// Sink names accepted in DELIVERY_SINKS.
const (
	SinkSMTP   = "smtp"
	SinkFile   = "file"
	SinkAMQP   = "amqp"
	SinkGCS    = "gcs"
	SinkSheets = "sheets"
)

// ValidSinks lists every supported sink name.
var ValidSinks = []string{SinkSMTP, SinkFile, SinkAMQP, SinkGCS, SinkSheets}

// Config selects and configures delivery sinks.
type Config struct {
	Sinks []string

	SMTP SMTPConfig

	FilePath string

	AMQP AMQPConfig

	GCSBucket string
	GCSPrefix string

	SheetsSpreadsheetID   string
	SheetsRange           string
	SheetsCredentialsFile string
}

// Result carries the built senders and a cleanup releasing their connections.
type Result struct {
	Senders []port.ReportSender
	Cleanup func()
}

// NewSenders builds one sender per configured sink, in configuration order.
// If any sink fails to initialize, the ones already built are released.
func NewSenders(ctx context.Context, cfg Config, logger *zap.Logger) (*Result, error) {
	var (
		senders  []port.ReportSender
		closers  []func() error
		buildErr error
	)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close delivery sink", zap.Error(err))
			}
		}
	}

	for _, sink := range cfg.Sinks {
		switch sink {
		case SinkSMTP:
			senders = append(senders, NewSMTPSender(cfg.SMTP))
		case SinkFile:
			senders = append(senders, NewFileSender(cfg.FilePath))
		case SinkAMQP:
			s, err := NewAMQPSender(cfg.AMQP)
			if err != nil {
				buildErr = fmt.Errorf("amqp sink: %w", err)
				break
			}
			senders = append(senders, s)
			closers = append(closers, s.Close)
		case SinkGCS:
			s, err := NewGCSSender(ctx, cfg.GCSBucket, cfg.GCSPrefix)
			if err != nil {
				buildErr = fmt.Errorf("gcs sink: %w", err)
				break
			}
			senders = append(senders, s)
			closers = append(closers, s.Close)
		case SinkSheets:
			s, err := NewSheetsSender(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsRange, cfg.SheetsCredentialsFile)
			if err != nil {
				buildErr = fmt.Errorf("sheets sink: %w", err)
				break
			}
			senders = append(senders, s)
		default:
			buildErr = fmt.Errorf("unsupported delivery sink: %s", sink)
		}

		if buildErr != nil {
			cleanup()
			return nil, buildErr
		}
		logger.Info("delivery sink ready", zap.String("sink", sink))
	}

	return &Result{Senders: senders, Cleanup: cleanup}, nil
}
