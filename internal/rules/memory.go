package rules

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

// MemoryRepository keeps rules in process, in insertion order per tenant. It backs single-node
// deployments seeded from a YAML file and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants map[string][]models.Rule
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants: make(map[string][]models.Rule),
		now:     time.Now,
	}
}

func (r *MemoryRepository) ListRules(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Rule{}
	for _, rule := range r.tenants[tenantID] {
		if rule.Enabled && rule.Matches(trigger) {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (r *MemoryRepository) ListTenantRules(ctx context.Context, tenantID string) ([]models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Rule, len(r.tenants[tenantID]))
	copy(out, r.tenants[tenantID])
	return out, nil
}

func (r *MemoryRepository) CreateRule(ctx context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tenants[rule.TenantID] {
		if existing.Name == rule.Name {
			return pkgerrors.ErrConflict.WithDetail("name", rule.Name)
		}
		if rule.ID != "" && existing.ID == rule.ID {
			return pkgerrors.ErrConflict.WithDetail("id", rule.ID)
		}
	}

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := r.now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	r.tenants[rule.TenantID] = append(r.tenants[rule.TenantID], *rule)
	return nil
}

func (r *MemoryRepository) GetRule(ctx context.Context, tenantID, id string) (*models.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rule := range r.tenants[tenantID] {
		if rule.ID == id {
			found := rule
			return &found, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
}

func (r *MemoryRepository) UpdateRule(ctx context.Context, rule *models.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.tenants[rule.TenantID]
	for _, existing := range rules {
		if existing.Name == rule.Name && existing.ID != rule.ID {
			return pkgerrors.ErrConflict.WithDetail("name", rule.Name)
		}
	}
	for i := range rules {
		if rules[i].ID == rule.ID {
			rule.CreatedAt = rules[i].CreatedAt
			rule.UpdatedAt = r.now().UTC()
			rules[i] = *rule
			return nil
		}
	}
	return pkgerrors.ErrNotFound.WithDetail("id", rule.ID)
}

func (r *MemoryRepository) DeleteRule(ctx context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.tenants[tenantID]
	for i := range rules {
		if rules[i].ID == id {
			r.tenants[tenantID] = append(rules[:i:i], rules[i+1:]...)
			return nil
		}
	}
	return pkgerrors.ErrNotFound.WithDetail("id", id)
}
