package kafka_client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func NewConsumer(cfg KafkaConfig, topics ...string) (*kafka.Consumer, error) {
	slog.Info("[KafkaClient] Initializing Kafka Consumer...",
		slog.String("broker", cfg.Broker),
		slog.String("group_id", cfg.GroupID),
		slog.String("topics", strings.Join(topics, ", ")))

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
	})
	if err != nil {
		return nil, fmt.Errorf("[KafkaClient] Failed to create consumer: %w", err)
	}

	if err := c.SubscribeTopics(topics, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("[KafkaClient] Failed to subscribe to topics: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Consumer initialized successfully")
	return c, nil
}

// StartConsumer subscribes to topic and hands the consumer to run until ctx
// is done.
func StartConsumer(ctx context.Context, cfg KafkaConfig, topic string, run func(context.Context, *kafka.Consumer)) error {
	consumer, err := NewConsumer(cfg, topic)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			slog.Warn("[KafkaClient] Failed to close consumer", slog.String("error", err.Error()))
		}
	}()

	slog.Info("[KafkaClient] Starting consumer for topic...", slog.String("topic", topic))
	run(ctx, consumer)
	return nil
}

func HandleConsumerError(err error) {
	if err == nil {
		return
	}
	slog.Error("[KafkaClient] Kafka Consumer Error",
		slog.String("error", err.Error()))
}
