package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 10 * time.Second

type NATSConfig struct {
	URL     string
	Subject string
}

// NATS publishes records to a subject and flushes so the server has each
// record before Write returns.
type NATS struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATS(_ context.Context, cfg NATSConfig, logger *slog.Logger) (*NATS, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats sink needs a subject")
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("secevents"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", nc.ConnectedUrl(), "subject", cfg.Subject)

	return &NATS{conn: nc, subject: cfg.Subject, logger: logger}, nil
}

func (n *NATS) Write(ctx context.Context, record string) error {
	if err := n.conn.Publish(n.subject, []byte(record)); err != nil {
		return fmt.Errorf("publish to %s: %w", n.subject, err)
	}
	// FlushWithContext refuses contexts without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
