package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig selects where records are published. QueueName is optional;
// when set, a durable queue is declared and bound so records survive until
// a consumer shows up.
type AMQPConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ publishes one persistent message per record and waits for the
// broker's confirm. Messages are mandatory: a record no queue accepted is a
// failed write. A broken connection is re-established on the next Write.
type RabbitMQ struct {
	cfg    AMQPConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	returns chan amqp.Return
}

func NewRabbitMQ(cfg AMQPConfig, logger *slog.Logger) (*RabbitMQ, error) {
	r := &RabbitMQ{cfg: cfg, logger: logger}
	if err := r.connect(); err != nil {
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, r.cfg); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	// The broker sends basic.return before the ack of the same message, and
	// the channel delivers it here before the confirm is resolved.
	r.returns = ch.NotifyReturn(make(chan amqp.Return, 16))
	r.conn, r.channel = conn, ch
	return nil
}

func declareTopology(ch *amqp.Channel, cfg AMQPConfig) error {
	const durable, autoDelete, internal, exclusive, noWait = true, false, false, false, false

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if cfg.QueueName == "" {
		return nil
	}

	q, err := ch.QueueDeclare(cfg.QueueName, durable, autoDelete, exclusive, noWait, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

func (r *RabbitMQ) Write(ctx context.Context, record string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel == nil || r.channel.IsClosed() {
		r.closeLocked()
		if err := r.connect(); err != nil {
			return err
		}
		r.logger.Info("reconnected to rabbitmq")
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  contentType(record),
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         []byte(record),
	}

	r.drainReturns()

	const mandatory, immediate = true, false
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(ctx, r.cfg.Exchange, r.cfg.RoutingKey, mandatory, immediate, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.cfg.Exchange, err)
	}

	acked, err := confirm.WaitContext(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("wait for confirm of %s: %w", msg.MessageId, err)
	case !acked:
		return fmt.Errorf("broker nacked %s", msg.MessageId)
	}

	select {
	case ret, ok := <-r.returns:
		if !ok {
			return fmt.Errorf("channel closed before %s was confirmed", msg.MessageId)
		}
		return fmt.Errorf("broker returned %s: %d %s (no queue bound to %s with key %q)",
			ret.MessageId, ret.ReplyCode, ret.ReplyText, r.cfg.Exchange, r.cfg.RoutingKey)
	default:
	}

	r.logger.Debug("published record", "message_id", msg.MessageId)
	return nil
}

func (r *RabbitMQ) drainReturns() {
	for {
		select {
		case _, ok := <-r.returns:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func contentType(record string) string {
	if strings.HasPrefix(record, "{") {
		return "application/json"
	}
	return "text/plain"
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *RabbitMQ) closeLocked() error {
	var errs []error
	if r.channel != nil && !r.channel.IsClosed() {
		errs = append(errs, r.channel.Close())
	}
	if r.conn != nil && !r.conn.IsClosed() {
		errs = append(errs, r.conn.Close())
	}
	r.conn, r.channel, r.returns = nil, nil, nil
	return errors.Join(errs...)
}
