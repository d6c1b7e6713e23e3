package broker

import (
	"fmt"

	"ruleflow/internal/config"
	"ruleflow/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	case "", "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// NewConsumer builds a consumer for the configured broker. A non-empty groupID overrides the
// configured consumer group.
func NewConsumer(cfg config.BrokerConfig, groupID string, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "kafka":
		kafkaCfg := cfg.Kafka
		if groupID != "" {
			kafkaCfg.GroupID = groupID
		}
		return NewKafkaConsumer(kafkaCfg, log), nil
	case "", "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
