//go:build integration

package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/testinfra"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

func TestPostgresRepository(t *testing.T) {
	db, _ := testinfra.Postgres(t)
	repo := NewPostgresRepository(db, "rules-test")
	ctx := context.Background()

	for _, r := range []models.Rule{
		validRule("acme", "ten", 10),
		validRule("acme", "five", 5),
		validRule("acme", "twenty", 20),
		validRule("globex", "theirs", 1),
	} {
		r := r
		require.NoError(t, repo.CreateRule(ctx, &r))
		time.Sleep(5 * time.Millisecond)
	}
	paused := validRule("acme", "paused", 1)
	paused.Enabled = false
	require.NoError(t, repo.CreateRule(ctx, &paused))

	rules, err := repo.ListRules(ctx, "acme", contactUpdated)
	require.NoError(t, err)
	assert.Equal(t, []string{"five", "ten", "twenty"}, ruleNames(rules))
	assert.Equal(t, "vip_welcome", rules[0].Actions[0].Params["template"])

	dup := validRule("acme", "five", 3)
	assert.True(t, pkgerrors.IsConflict(repo.CreateRule(ctx, &dup)))

	_, err = repo.GetRule(ctx, "globex", rules[0].ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	rules[0].Priority = 50
	require.NoError(t, repo.UpdateRule(ctx, &rules[0]))
	reordered, err := repo.ListRules(ctx, "acme", contactUpdated)
	require.NoError(t, err)
	assert.Equal(t, []string{"ten", "twenty", "five"}, ruleNames(reordered))

	require.NoError(t, repo.DeleteRule(ctx, "acme", rules[0].ID))
	assert.True(t, pkgerrors.IsNotFound(repo.DeleteRule(ctx, "acme", rules[0].ID)))
}

func TestPostgresVersionRepository(t *testing.T) {
	db, _ := testinfra.Postgres(t)
	versions := NewPostgresVersionRepository(db)
	ctx := context.Background()

	rule := validRule("acme", "vip", 1)
	rule.ID = "rule-1"
	for _, action := range []string{models.ActionCreate, models.ActionUpdate} {
		v := &RuleVersion{RuleID: rule.ID, TenantID: "acme", Action: action, Rule: rule}
		require.NoError(t, versions.CreateVersion(ctx, v))
	}

	list, err := versions.ListVersions(ctx, "acme", rule.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.Equal(t, "vip", list[0].Rule.Name)

	other, err := versions.ListVersions(ctx, "globex", rule.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRedisCache(t *testing.T) {
	client := testinfra.Redis(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acme", contactUpdated, []models.Rule{validRule("acme", "vip", 1)}))
	require.NoError(t, cache.Set(ctx, "acme*", contactUpdated, nil))

	got, ok, err := cache.Get(ctx, "acme", contactUpdated)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "vip", got[0].Name)

	empty, ok, err := cache.Get(ctx, "acme*", contactUpdated)
	require.NoError(t, err)
	assert.True(t, ok, "an empty rule list is still a hit")
	assert.Empty(t, empty)

	require.NoError(t, cache.Invalidate(ctx, "acme*"))
	_, ok, _ = cache.Get(ctx, "acme", contactUpdated)
	assert.True(t, ok, "glob characters in a tenant id do not reach other tenants")

	require.NoError(t, cache.Invalidate(ctx, "acme"))
	_, ok, _ = cache.Get(ctx, "acme", contactUpdated)
	assert.False(t, ok)
}
