package kafka_client

import "github.com/spacesedan/trendlens/config"

type KafkaConfig struct {
	Broker  string
	GroupID string
	// TransactionalID is only needed by producers.
	TransactionalID string
}

func NewKafkaConfig(cfg config.KafkaConfig, transactionalID string) KafkaConfig {
	return KafkaConfig{
		Broker:          cfg.Broker,
		GroupID:         cfg.GroupID,
		TransactionalID: transactionalID,
	}
}
