package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/pulse/internal/ports/secondary"
)

// KafkaConfig configures a KafkaNotifier.
type KafkaConfig struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single write. Default: 10 seconds.
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the notifier needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications to a Kafka topic for downstream
// delivery services (chat, push, in-app). The recipient is the message key,
// so one recipient's notifications stay ordered on a partition.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// kafkaEvent is the JSON value written for each notification.
type kafkaEvent struct {
	RecipientID string            `json:"recipientId"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
	SentAt      time.Time         `json:"sentAt"`
}

// NewKafkaNotifier creates a notifier writing to cfg.Topic.
func NewKafkaNotifier(cfg KafkaConfig, logger *zap.Logger) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka notifier created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaNotifier(writer, cfg.Topic, logger), nil
}

func newKafkaNotifier(writer messageWriter, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, topic: topic, logger: logger.Named("kafka-notify")}
}

// Notify writes one notification message.
func (n *KafkaNotifier) Notify(ctx context.Context, msg secondary.Notification) error {
	value, err := json.Marshal(kafkaEvent{
		RecipientID: msg.RecipientID,
		Message:     msg.Message,
		Context:     msg.Context,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	headers := []kafka.Header{}
	for _, k := range []string{"trigger_type", "instance_id", "step"} {
		if v, ok := msg.Context[k]; ok {
			headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.RecipientID),
		Value:   value,
		Headers: headers,
	})
	if err != nil {
		n.logger.Warn("failed to publish notification",
			zap.Error(err),
			zap.String("topic", n.topic),
			zap.String("recipient", msg.RecipientID))
		return fmt.Errorf("failed to write notification to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

var _ secondary.Notifier = (*KafkaNotifier)(nil)
