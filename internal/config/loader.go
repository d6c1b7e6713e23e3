package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ruleflow/internal/constants"
)

// LoadConfig reads configFile, applies defaults and environment overrides, and validates the
// result. An empty configFile loads defaults and environment only.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(v, &cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("broker.type", "none")
	v.SetDefault("broker.kafka.group_id", "ruleflow-engine")
	v.SetDefault("broker.kafka.event_topic", constants.DefaultEventTopic)
	v.SetDefault("broker.kafka.rule_change_topic", constants.DefaultRuleChangeTopic)
	v.SetDefault("broker.kafka.notification_topic", constants.DefaultNotificationTopic)
	v.SetDefault("broker.kafka.dlq_topic", constants.DefaultDLQTopic)
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "100ms")
	v.SetDefault("broker.kafka.retry.max_interval", "5s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.store_timeout", constants.DefaultStoreTimeout.String())
	v.SetDefault("engine.action_timeout", constants.DefaultActionTimeout.String())
	v.SetDefault("engine.ledger_timeout", constants.DefaultLedgerTimeout.String())
	v.SetDefault("engine.claim_lease", constants.DefaultClaimLease.String())
	v.SetDefault("engine.claim_wait", constants.DefaultClaimWait.String())
	v.SetDefault("engine.claim_poll_interval", constants.DefaultClaimPollInterval.String())

	v.SetDefault("rules.backend", "postgres")
	v.SetDefault("rules.cache.backend", "memory")
	v.SetDefault("rules.cache.ttl", constants.DefaultRuleCacheTTL.String())

	v.SetDefault("ledger.driver", "postgres")

	v.SetDefault("actions.notify.topic", constants.DefaultNotificationTopic)
	v.SetDefault("actions.ticketing.timeout", constants.DefaultHTTPTimeout.String())
	v.SetDefault("actions.webhook.timeout", constants.DefaultHTTPTimeout.String())
	v.SetDefault("actions.webhook.retry.max_attempts", 2)
	v.SetDefault("actions.webhook.retry.initial_interval", "200ms")
	v.SetDefault("actions.webhook.retry.max_interval", "2s")
	v.SetDefault("actions.webhook.retry.multiplier", 2.0)
	v.SetDefault("actions.records.collection", constants.DefaultRecordsCollection)

	v.SetDefault("management.rate_limit.rps", 50.0)
	v.SetDefault("management.rate_limit.burst", 100)
	v.SetDefault("management.rate_limit.cleanup_interval", 60)
	v.SetDefault("management.rate_limit.max_age", 300)

	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 3)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("broker.type", "BROKER_TYPE")
	v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	v.BindEnv("broker.kafka.event_topic", "BROKER_KAFKA_EVENT_TOPIC")
	v.BindEnv("broker.kafka.rule_change_topic", "BROKER_KAFKA_RULE_CHANGE_TOPIC")
	v.BindEnv("broker.kafka.notification_topic", "BROKER_KAFKA_NOTIFICATION_TOPIC")
	v.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	v.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	v.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	v.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	v.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	v.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	v.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	v.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	v.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	v.BindEnv("ledger.driver", "LEDGER_DRIVER")
	v.BindEnv("ledger.url", "LEDGER_URL")

	v.BindEnv("actions.ticketing.base_url", "ACTIONS_TICKETING_BASE_URL")
	v.BindEnv("actions.ticketing.token", "ACTIONS_TICKETING_TOKEN")
	v.BindEnv("actions.webhook.signing_secret", "ACTIONS_WEBHOOK_SIGNING_SECRET")

	v.BindEnv("server.port", "SERVER_PORT")

	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	v.BindEnv("tracing.environment", "TRACING_ENVIRONMENT")
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	// Env values arrive as one comma separated string.
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}
}
