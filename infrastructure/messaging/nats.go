// Package messaging 把 outbox 中的事件转发到 NATS
package messaging

import (
	"context"
	"fmt"
	"strings"

	"microgrid/config"
	"microgrid/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Conn the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
}

// Connect dials NATS with reconnect handling from cfg
func Connect(cfg config.MessagingConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", zap.String("url", conn.ConnectedUrl()))
	return conn, nil
}

// Subject maps an event type to its subject: prefix.topology.device_added
func Subject(prefix, eventType string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// NATSPublisher implements the outbox worker's publisher.
// The payload is already JSON and is sent unchanged.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: subjectPrefix}
}

func (p *NATSPublisher) Publish(ctx context.Context, eventType, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	subject := Subject(p.prefix, eventType)
	if err := p.conn.Publish(subject, []byte(payload)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
