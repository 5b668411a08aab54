// Package bus fans public game events out over NATS so other processes can follow tables.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/config"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher wraps a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// Connect dials cfg.URL with reconnect handling.
func Connect(cfg config.NATSConfig, logger *logrus.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("mighty-server"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warnf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("nats: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("nats: connection closed")
		}),
		nats.Timeout(10 * time.Second),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "mighty"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// GameSubject is where a table's public events are published.
func GameSubject(prefix string, gameID uuid.UUID) string {
	return fmt.Sprintf("%s.game.%s.events", prefix, gameID)
}

// PublishGameEvent JSON-encodes ev onto the table's subject.
func (p *Publisher) PublishGameEvent(gameID uuid.UUID, ev any) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := GameSubject(p.prefix, gameID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Tracef("nats: published %d bytes to %s", len(data), subject)
	return nil
}

// Close drains pending publishes before closing.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// IsConnected reports the connection state.
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}
