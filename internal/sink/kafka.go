package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka writes each record synchronously, waiting for all in-sync replicas.
type Kafka struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

func NewKafka(cfg KafkaConfig, logger *slog.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink needs brokers and a topic")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka writer ready", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Kafka{writer: w, topic: cfg.Topic, logger: logger}, nil
}

func (k *Kafka) Write(ctx context.Context, record string) error {
	if err := k.writer.WriteMessages(ctx, kafka.Message{Value: []byte(record)}); err != nil {
		return fmt.Errorf("write to topic %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
