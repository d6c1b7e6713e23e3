package rules

import (
	"context"
	"sync"
	"time"

	"ruleflow/pkg/models"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// RuleCache holds per-tenant, per-trigger rule lists. Entries are dropped for a whole tenant at a
// time whenever any of its rules changes.
type RuleCache interface {
	Get(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, bool, error)
	Set(ctx context.Context, tenantID string, trigger models.Trigger, rules []models.Rule) error
	Invalidate(ctx context.Context, tenantID string) error
	Backend() string
}

type memoryEntry struct {
	rules     []models.Rule
	expiresAt time.Time
}

// MemoryCache is a process-local RuleCache. It is owned by the engine instance that created it.
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	tenants map[string]map[models.Trigger]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		tenants: make(map[string]map[models.Trigger]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Backend() string { return CacheBackendMemory }

func (c *MemoryCache) Get(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, bool, error) {
	c.mu.RLock()
	entry, ok := c.tenants[tenantID][trigger]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.tenants[tenantID][trigger]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.tenants[tenantID], trigger)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return cloneRules(entry.rules), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, tenantID string, trigger models.Trigger, rules []models.Rule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	triggers, ok := c.tenants[tenantID]
	if !ok {
		triggers = make(map[models.Trigger]memoryEntry)
		c.tenants[tenantID] = triggers
	}
	triggers[trigger] = memoryEntry{
		rules:     cloneRules(rules),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	delete(c.tenants, tenantID)
	c.mu.Unlock()
	return nil
}

func cloneRules(rules []models.Rule) []models.Rule {
	out := make([]models.Rule, len(rules))
	copy(out, rules)
	return out
}
