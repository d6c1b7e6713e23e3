package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ruleflow/pkg/errors"
)

const seedYAML = `
rules:
  - tenant_id: acme
    name: vip-welcome
    module: crm
    event: updated
    entity: contact
    condition_logic: all
    conditions:
      - field: status
        operator: eq
        value: vip
      - field: tags
        operator: in
        value: [gold, platinum]
    actions:
      - type: notify
        params:
          channel: email
          template: vip_welcome
    priority: 5
  - tenant_id: acme
    name: paused
    module: crm
    event: updated
    entity: contact
    condition_logic: any
    enabled: false
`

func TestParseSeed(t *testing.T) {
	rules, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.True(t, rules[0].Enabled, "omitted enabled defaults to true")
	assert.False(t, rules[1].Enabled)
	assert.Equal(t, 5, rules[0].Priority)
	assert.Equal(t, []interface{}{"gold", "platinum"}, rules[0].Conditions[1].Value)
	assert.Equal(t, "vip_welcome", rules[0].Actions[0].Params["template"])
}

func TestParseSeed_Malformed(t *testing.T) {
	_, err := ParseSeed([]byte("rules: [unterminated"))
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	rules, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	rules, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	repo := NewMemoryRepository()
	n, err := Seed(ctx, repo, newValidator(t), rules)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	broken := append(rules[:0:0], validRule("acme", "ok", 1), validRule("acme", "", 1))
	n, err = Seed(ctx, NewMemoryRepository(), newValidator(t), broken)
	assert.Equal(t, 1, n)
	assert.True(t, pkgerrors.IsValidation(err))
}
