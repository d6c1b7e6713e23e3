package config

import (
	"fmt"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateDatabase(c.Database) },
		func(c *Config) error { return validateEngine(c.Engine) },
		validateRules,
		validateLedger,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "", "none":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, none)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Enabled() || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Enabled() || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.Enabled() {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateEngine(cfg EngineConfig) error {
	durations := []struct {
		field string
		value time.Duration
	}{
		{"engine.store_timeout", cfg.StoreTimeout},
		{"engine.action_timeout", cfg.ActionTimeout},
		{"engine.ledger_timeout", cfg.LedgerTimeout},
		{"engine.claim_lease", cfg.ClaimLease},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return &ValidationError{Field: d.field, Message: "must be positive"}
		}
	}

	if cfg.ClaimWait < 0 {
		return &ValidationError{Field: "engine.claim_wait", Message: "must be non-negative"}
	}

	if cfg.ClaimWait > 0 && cfg.ClaimPollInterval <= 0 {
		return &ValidationError{Field: "engine.claim_poll_interval", Message: "must be positive when claim_wait is set"}
	}

	if cfg.ClaimLease <= cfg.ActionTimeout {
		return &ValidationError{
			Field:   "engine.claim_lease",
			Message: "claim lease must exceed the action timeout",
		}
	}

	return nil
}

func validateRules(cfg *Config) error {
	switch cfg.Rules.Backend {
	case "memory":
	case "postgres":
		if !cfg.Database.Postgres.Enabled() {
			return &ValidationError{Field: "database.postgres.host", Message: "required by rules.backend=postgres"}
		}
	default:
		return &ValidationError{
			Field:   "rules.backend",
			Message: fmt.Sprintf("unknown rules backend: %s (supported: postgres, memory)", cfg.Rules.Backend),
		}
	}

	switch cfg.Rules.Cache.Backend {
	case "", "none", "memory":
	case "redis":
		if !cfg.Database.Redis.Enabled() {
			return &ValidationError{Field: "database.redis.host", Message: "required by rules.cache.backend=redis"}
		}
	default:
		return &ValidationError{
			Field:   "rules.cache.backend",
			Message: fmt.Sprintf("unknown cache backend: %s (supported: memory, redis, none)", cfg.Rules.Cache.Backend),
		}
	}

	if cfg.Rules.Cache.TTL < 0 {
		return &ValidationError{Field: "rules.cache.ttl", Message: "TTL must be non-negative"}
	}

	return nil
}

func validateLedger(cfg *Config) error {
	switch cfg.Ledger.Driver {
	case "memory":
	case "sqlite":
		if cfg.Ledger.URL == "" {
			return &ValidationError{Field: "ledger.url", Message: "required by ledger.driver=sqlite"}
		}
	case "postgres":
		if cfg.Ledger.URL == "" && !cfg.Database.Postgres.Enabled() {
			return &ValidationError{Field: "ledger.url", Message: "ledger.url or database.postgres is required by ledger.driver=postgres"}
		}
	default:
		return &ValidationError{
			Field:   "ledger.driver",
			Message: fmt.Sprintf("unknown ledger driver: %s (supported: postgres, sqlite, memory)", cfg.Ledger.Driver),
		}
	}

	return nil
}
