package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string, models.Trigger) ([]models.Rule, bool, error) {
	return nil, false, errors.New("cache down")
}
func (failingCache) Set(context.Context, string, models.Trigger, []models.Rule) error {
	return errors.New("cache down")
}
func (failingCache) Invalidate(context.Context, string) error { return errors.New("cache down") }
func (failingCache) Backend() string                          { return "failing" }

func TestCachedStore_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{rules: []models.Rule{validRule("acme", "vip", 1)}}
	s := NewCachedStore(backing, NewMemoryCache(time.Hour))

	for i := 0; i < 3; i++ {
		rules, err := s.ListRules(ctx, "acme", contactUpdated)
		require.NoError(t, err)
		require.Len(t, rules, 1)
	}
	assert.Equal(t, 1, backing.Calls())

	require.NoError(t, s.Invalidate(ctx, "acme", "api"))
	_, err := s.ListRules(ctx, "acme", contactUpdated)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.Calls())
}

func TestCachedStore_StoreFailureIsStoreUnavailable(t *testing.T) {
	backing := &countingStore{err: errors.New("connection refused")}
	s := NewCachedStore(backing, NewMemoryCache(time.Hour))

	_, err := s.ListRules(context.Background(), "acme", contactUpdated)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStoreUnavailable(err))

	backing.err = nil
	_, err = s.ListRules(context.Background(), "acme", contactUpdated)
	assert.NoError(t, err, "failures are not cached")
}

func TestCachedStore_TimeoutIsStoreUnavailable(t *testing.T) {
	backing := &countingStore{release: make(chan struct{})}
	s := NewCachedStore(backing, nil, WithStoreTimeout(20*time.Millisecond))

	_, err := s.ListRules(context.Background(), "acme", contactUpdated)
	assert.True(t, pkgerrors.IsStoreUnavailable(err))
}

func TestCachedStore_CacheErrorsFallThrough(t *testing.T) {
	backing := &countingStore{rules: []models.Rule{validRule("acme", "vip", 1)}}
	s := NewCachedStore(backing, failingCache{})

	rules, err := s.ListRules(context.Background(), "acme", contactUpdated)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	err = s.Invalidate(context.Background(), "acme", "api")
	assert.Error(t, err)
}

func TestCachedStore_ConcurrentMissesShareOneLoad(t *testing.T) {
	backing := &countingStore{rules: []models.Rule{validRule("acme", "vip", 1)}, release: make(chan struct{})}
	s := NewCachedStore(backing, NewMemoryCache(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rules, err := s.ListRules(context.Background(), "acme", contactUpdated)
			assert.NoError(t, err)
			assert.Len(t, rules, 1)
		}()
	}

	require.Eventually(t, func() bool { return backing.Calls() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(backing.release)
	wg.Wait()

	assert.Equal(t, 1, backing.Calls())
}

func TestCachedStore_CallerCancellation(t *testing.T) {
	backing := &countingStore{release: make(chan struct{})}
	s := NewCachedStore(backing, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListRules(ctx, "acme", contactUpdated)
	assert.ErrorIs(t, err, context.Canceled)
	close(backing.release)
}

func TestCachedStore_InvalidateDuringLoadSkipsFill(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{rules: []models.Rule{validRule("acme", "old", 1)}, release: make(chan struct{})}
	s := NewCachedStore(backing, NewMemoryCache(time.Hour))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.ListRules(ctx, "acme", contactUpdated)
	}()

	require.Eventually(t, func() bool { return backing.Calls() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Invalidate(ctx, "acme", "api"))
	close(backing.release)
	<-done

	_, err := s.ListRules(ctx, "acme", contactUpdated)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.Calls(), "the load racing the invalidation is not cached")
}
