package kafka_client

import (
	"testing"

	"github.com/spacesedan/trendlens/config"
	"github.com/stretchr/testify/assert"
)

func TestNewKafkaConfig(t *testing.T) {
	cfg := NewKafkaConfig(config.KafkaConfig{
		Broker:       "kafka:9092",
		GroupID:      "trendlens-indexer",
		ContentTopic: "content-items",
	}, "trendlens-trending")

	assert.Equal(t, "kafka:9092", cfg.Broker)
	assert.Equal(t, "trendlens-indexer", cfg.GroupID)
	assert.Equal(t, "trendlens-trending", cfg.TransactionalID)
}
