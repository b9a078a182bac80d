package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Subjects published during a sync pass.
const (
	SubjectProgress = "sync.progress"
	SubjectComplete = "sync.complete"
	SubjectError    = "sync.error"
	SubjectSummary  = "sync.summary"
)

// ProgressEvent is emitted each time an actively syncing symbol enters a
// new state, from fetching through done. Already-current symbols emit
// nothing; failures are reported on the error subject instead.
type ProgressEvent struct {
	Symbol    string    `json:"symbol"`
	State     string    `json:"state"`
	Saved     int       `json:"saved"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is emitted when a symbol reaches the failed state.
type ErrorEvent struct {
	Symbol    string    `json:"symbol"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSClient publishes sync lifecycle events. Publishing is best-effort:
// failures are logged and never fail the sync pass itself.
type NATSClient struct {
	conn   *nats.Conn
	logger *logrus.Entry
	cfg    *config.NATSConfig
}

// NewNATSClient creates a new NATS client.
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		logger: logger.WithField("component", "nats"),
		cfg:    cfg,
	}, nil
}

// Close drains and closes the NATS connection.
func (nc *NATSClient) Close() {
	if nc.conn == nil {
		return
	}
	if err := nc.conn.Drain(); err != nil {
		nc.logger.WithError(err).Warn("Failed to drain NATS connection")
		nc.conn.Close()
	}
}

// IsConnected reports whether the underlying connection is up.
func (nc *NATSClient) IsConnected() bool {
	return nc.conn != nil && nc.conn.IsConnected()
}

// PublishProgress publishes a per-symbol state transition.
func (nc *NATSClient) PublishProgress(symbol, state string, saved int) {
	nc.publish(SubjectProgress, &ProgressEvent{
		Symbol:    symbol,
		State:     state,
		Saved:     saved,
		Timestamp: time.Now().UTC(),
	})
}

// PublishComplete publishes the terminal result of one symbol.
func (nc *NATSClient) PublishComplete(symbol string, result *models.SymbolResult) {
	nc.publish(SubjectComplete, result)
}

// PublishError publishes a symbol failure.
func (nc *NATSClient) PublishError(symbol, reason string) {
	nc.publish(SubjectError, &ErrorEvent{
		Symbol:    symbol,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}

// PublishSummary publishes the run summary after a pass finishes.
func (nc *NATSClient) PublishSummary(stats *models.RunStats) {
	nc.publish(SubjectSummary, stats)
}

func (nc *NATSClient) publish(subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		nc.logger.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
		return
	}
	if err := nc.conn.Publish(subject, data); err != nil {
		nc.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}
