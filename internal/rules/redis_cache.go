package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ruleflow/internal/constants"
	"ruleflow/pkg/models"
)

// RedisCache shares rule lists between engine replicas. Keys look like
// rules:{tenant}:{module}|{event}|{entity}.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Backend() string { return CacheBackendRedis }

func (c *RedisCache) Get(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, bool, error) {
	val, err := c.client.Get(ctx, ruleCacheKey(tenantID, trigger)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var rules []models.Rule
	if err := json.Unmarshal(val, &rules); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached rules: %w", err)
	}
	return rules, true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenantID string, trigger models.Trigger, rules []models.Rule) error {
	if rules == nil {
		rules = []models.Rule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := c.client.Set(ctx, ruleCacheKey(tenantID, trigger), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID string) error {
	pattern := constants.CacheKeyPrefixRules + escapeGlob(tenantID) + ":*"

	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

func ruleCacheKey(tenantID string, trigger models.Trigger) string {
	return constants.CacheKeyPrefixRules + tenantID + ":" + trigger.Module + "|" + trigger.Event + "|" + trigger.Entity
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob keeps tenant ids containing glob metacharacters from matching other tenants.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
