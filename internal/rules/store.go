package rules

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
	"ruleflow/pkg/tracing"
)

// CachedStore is the Store the engine reads from. Concurrent misses for the same tenant and
// trigger share one backing load. Any backing failure surfaces as ErrStoreUnavailable.
type CachedStore struct {
	store   Store
	cache   RuleCache
	timeout time.Duration
	log     logger.Logger

	group singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

type CachedStoreOption func(*CachedStore)

func WithStoreTimeout(timeout time.Duration) CachedStoreOption {
	return func(s *CachedStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithStoreLogger(log logger.Logger) CachedStoreOption {
	return func(s *CachedStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewCachedStore wraps store. A nil cache disables caching but keeps timeouts and error mapping.
func NewCachedStore(store Store, cache RuleCache, opts ...CachedStoreOption) *CachedStore {
	s := &CachedStore{
		store:       store,
		cache:       cache,
		timeout:     constants.DefaultStoreTimeout,
		log:         logger.NopLogger(),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type loadResult struct {
	rules []models.Rule
}

func (s *CachedStore) ListRules(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, error) {
	ctx, span := tracing.GetTracer("rules").Start(ctx, "engine.load_rules")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("rule.module", trigger.Module),
		attribute.String("rule.event", trigger.Event),
		attribute.String("rule.entity", trigger.Entity),
	)

	if s.cache != nil {
		rules, ok, err := s.cache.Get(ctx, tenantID, trigger)
		switch {
		case err != nil:
			metrics.IncRuleCacheRequest(s.cache.Backend(), "error")
			s.log.WarnwCtx(ctx, "Rule cache lookup failed, reading from store", "error", err)
		case ok:
			metrics.IncRuleCacheRequest(s.cache.Backend(), "hit")
			span.SetAttributes(attribute.Bool("rule.cache_hit", true))
			return rules, nil
		default:
			metrics.IncRuleCacheRequest(s.cache.Backend(), "miss")
		}
	}

	gen := s.generation(tenantID)
	key := flightKey(tenantID, trigger, gen)

	// The load runs detached from the first caller so that one cancelled request does not fail
	// the others sharing the flight.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		rules, err := s.store.ListRules(loadCtx, tenantID, trigger)
		if err != nil {
			return nil, err
		}
		s.fill(loadCtx, tenantID, trigger, gen, rules)
		return loadResult{rules: rules}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			metrics.IncRuleStoreError()
			span.RecordError(res.Err)
			return nil, pkgerrors.ErrStoreUnavailable.WithCause(res.Err)
		}
		return cloneRules(res.Val.(loadResult).rules), nil
	}
}

// fill writes a loaded list to the cache unless the tenant was invalidated during the load.
func (s *CachedStore) fill(ctx context.Context, tenantID string, trigger models.Trigger, gen uint64, rules []models.Rule) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generations[tenantID] != gen {
		return
	}
	if err := s.cache.Set(ctx, tenantID, trigger, rules); err != nil {
		s.log.WarnwCtx(ctx, "Failed to cache rules", "error", err)
	}
}

func (s *CachedStore) generation(tenantID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[tenantID]
}

// Invalidate drops every cached rule list of the tenant. source labels the metric, e.g. "api" or
// "change_event".
func (s *CachedStore) Invalidate(ctx context.Context, tenantID, source string) error {
	s.mu.Lock()
	s.generations[tenantID]++
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	metrics.IncRuleCacheInvalidation(s.cache.Backend(), source)
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrServiceUnavailable).WithDetail("cache", s.cache.Backend())
	}
	return nil
}

func flightKey(tenantID string, trigger models.Trigger, gen uint64) string {
	return ruleCacheKey(tenantID, trigger) + "#" + strconv.FormatUint(gen, 10)
}
