package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/service"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReportMessage is the JSON payload published for downstream mailers.
type ReportMessage struct {
	RunID       string                   `json:"run_id"`
	Subject     string                   `json:"subject"`
	WindowStart string                   `json:"window_start"`
	WindowEnd   string                   `json:"window_end"`
	Settlement  string                   `json:"settlement"`
	Summary     domain.SettlementSummary `json:"summary"`
	HTML        string                   `json:"html"`
	Text        string                   `json:"text"`
	Recipients  []string                 `json:"recipients,omitempty"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// NewReportMessage builds the queue payload for a report.
func NewReportMessage(r *domain.Report, recipients []string) ReportMessage {
	return ReportMessage{
		RunID:       r.RunID,
		Subject:     r.Subject,
		WindowStart: r.Window.Start.Format(domain.DateLayout),
		WindowEnd:   r.Window.End.Format(domain.DateLayout),
		Settlement:  service.SettlementLine(r.Summary),
		Summary:     r.Summary,
		HTML:        r.HTML,
		Text:        PlainText(r),
		Recipients:  recipients,
		GeneratedAt: r.GeneratedAt,
	}
}

// AMQPConfig holds broker settings.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Recipients []string
}

// AMQPSender publishes reports to a RabbitMQ exchange.
type AMQPSender struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     AMQPConfig
}

// NewAMQPSender dials the broker and declares a durable direct exchange.
func NewAMQPSender(cfg AMQPConfig) (*AMQPSender, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPSender{conn: conn, channel: channel, cfg: cfg}, nil
}

func (s *AMQPSender) Name() string { return "amqp" }

// Send publishes the report as a persistent JSON message.
func (s *AMQPSender) Send(ctx context.Context, r *domain.Report) (*domain.DeliveryReceipt, error) {
	msg := NewReportMessage(r, s.cfg.Recipients)
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = s.channel.PublishWithContext(
		ctx,
		s.cfg.Exchange,   // exchange
		s.cfg.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    r.RunID,
			Timestamp:    time.Now(),
			Type:         "ynab.shared_report",
			Body:         body,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("publish message: %w", err)
	}

	return &domain.DeliveryReceipt{
		Sink:      s.Name(),
		MessageID: r.RunID,
		Location:  s.cfg.Exchange + "/" + s.cfg.RoutingKey,
	}, nil
}

// Close closes the channel and the connection.
func (s *AMQPSender) Close() error {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
