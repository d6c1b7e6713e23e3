package rules

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ruleflow/internal/config"
	"ruleflow/internal/logger"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// OpenRepository builds the configured rule repository. The memory backend is loaded from
// rules.seed_file when one is set.
func OpenRepository(ctx context.Context, cfg config.RulesConfig, db *sql.DB, validator *Validator, serviceName string, log logger.Logger) (Repository, error) {
	switch cfg.Backend {
	case BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("rules backend postgres requires database.postgres to be configured")
		}
		return NewPostgresRepository(db, serviceName), nil

	case BackendMemory:
		repo := NewMemoryRepository()
		if cfg.SeedFile == "" {
			return repo, nil
		}
		seed, err := LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		n, err := Seed(ctx, repo, validator, seed)
		if err != nil {
			return nil, fmt.Errorf("failed to seed rules from %s: %w", cfg.SeedFile, err)
		}
		log.InfowCtx(ctx, "Rules seeded", "file", cfg.SeedFile, "count", n)
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown rules backend %q", cfg.Backend)
	}
}

// NewRuleCache returns nil for the none backend.
func NewRuleCache(cfg config.RuleCacheConfig, client redis.UniversalClient) (RuleCache, error) {
	switch cfg.Backend {
	case CacheBackendMemory:
		return NewMemoryCache(cfg.TTL), nil
	case CacheBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("rule cache backend redis requires database.redis to be configured")
		}
		return NewRedisCache(client, cfg.TTL), nil
	case CacheBackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rule cache backend %q", cfg.Backend)
	}
}
