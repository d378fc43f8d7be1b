package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mattysabby19/taskly-api/internal/config"
	"github.com/mattysabby19/taskly-api/internal/model"
	"github.com/mattysabby19/taskly-api/internal/util"
)

// KafkaPublisher streams audit events to the security topic. The monitor
// treats publish failures as best-effort, so the writer keeps retries
// short.
type KafkaPublisher struct {
	writer *kafka.Writer
	cfg    config.KafkaConfig
	logger *zap.Logger
}

func NewKafkaPublisher(cfg *config.Config, logger *zap.Logger) *KafkaPublisher {
	kafkaConfig := cfg.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kafkaConfig.Brokers...),
		Topic:        kafkaConfig.SecurityTopic,
		Balancer:     &kafka.LeastBytes{},
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to write kafka messages",
					zap.Error(err),
					zap.Int("message_count", len(messages)))
			}
		},
	}

	util.Info("Kafka publisher initialized",
		zap.Strings("brokers", kafkaConfig.Brokers),
		zap.String("topic", kafkaConfig.SecurityTopic))

	return &KafkaPublisher{writer: writer, cfg: kafkaConfig, logger: logger}
}

// PublishEvent writes one audit event to the security topic, keyed by
// actor so per-member ordering survives partitioning.
func (p *KafkaPublisher) PublishEvent(ctx context.Context, event *model.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	key := event.ActorID
	if key == "" {
		key = event.IPAddress
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
