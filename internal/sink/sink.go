package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"secevents/internal/domain"
)

// Sink delivers formatted records. A nil error from Write means the record
// has left the process; only then may the caller advance its checkpoint.
type Sink interface {
	Write(ctx context.Context, record string) error
	Close() error
}

const (
	TypeConsole = "console"
	TypeFile    = "file"
	TypeTCP     = "tcp"
	TypeUDP     = "udp"
	TypeAMQP    = "amqp"
	TypeKafka   = "kafka"
	TypeNATS    = "nats"
)

var defaultPorts = map[string]string{
	TypeTCP:   "514",
	TypeUDP:   "514",
	TypeAMQP:  "5672",
	TypeKafka: "9092",
	TypeNATS:  "4222",
}

type Config struct {
	Type string
	// Path is the output file for the file sink.
	Path string
	// Address is HOST[:PORT] (or a full URL for amqp and nats).
	Address     string
	DialTimeout time.Duration

	AMQP  AMQPConfig
	Kafka KafkaConfig
	NATS  NATSConfig
}

// New opens the sink described by cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Sink, error) {
	logger = logger.With("sink", cfg.Type)

	switch cfg.Type {
	case TypeConsole, "":
		return NewConsole(os.Stdout), nil
	case TypeFile:
		return OpenFile(cfg.Path)
	case TypeTCP, TypeUDP:
		addr, err := WithDefaultPort(cfg.Address, cfg.Type)
		if err != nil {
			return nil, err
		}
		return NewSyslog(cfg.Type, addr, cfg.DialTimeout, logger), nil
	case TypeAMQP:
		amqpCfg := cfg.AMQP
		if amqpCfg.URL == "" {
			addr, err := WithDefaultPort(cfg.Address, cfg.Type)
			if err != nil {
				return nil, err
			}
			amqpCfg.URL = "amqp://guest:guest@" + addr + "/"
		}
		return NewRabbitMQ(amqpCfg, logger)
	case TypeKafka:
		kafkaCfg := cfg.Kafka
		if len(kafkaCfg.Brokers) == 0 {
			for _, b := range strings.Split(cfg.Address, ",") {
				addr, err := WithDefaultPort(b, cfg.Type)
				if err != nil {
					return nil, err
				}
				kafkaCfg.Brokers = append(kafkaCfg.Brokers, addr)
			}
		}
		return NewKafka(kafkaCfg, logger)
	case TypeNATS:
		natsCfg := cfg.NATS
		if natsCfg.URL == "" {
			if strings.Contains(cfg.Address, "://") {
				natsCfg.URL = cfg.Address
			} else {
				addr, err := WithDefaultPort(cfg.Address, cfg.Type)
				if err != nil {
					return nil, err
				}
				natsCfg.URL = "nats://" + addr
			}
		}
		return NewNATS(ctx, natsCfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown sink type %q", domain.ErrConfiguration, cfg.Type)
	}
}

// WithDefaultPort appends the protocol's well-known port when addr has none.
func WithDefaultPort(addr, protocol string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("%w: %s sink needs a host", domain.ErrConfiguration, protocol)
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}
	port, ok := defaultPorts[protocol]
	if !ok {
		return "", fmt.Errorf("%w: %q has no port and %s has no default", domain.ErrConfiguration, addr, protocol)
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), port), nil
}
