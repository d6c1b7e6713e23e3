//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/testinfra"
	"ruleflow/pkg/models"
)

func TestPostgresLedger(t *testing.T) {
	db, _ := testinfra.Postgres(t)
	l, err := NewSQLLedger(db, "postgres", "ledger-test")
	require.NoError(t, err)
	ctx := context.Background()

	claim, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
	require.NoError(t, err)
	require.Equal(t, ClaimAcquired, claim.Outcome)

	pending, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimPending, pending.Outcome)

	result := models.NewEvaluationResult("occ-1", time.Now())
	claim.Entry.Result = result
	claim.Entry.ResultSummary = result.Summary()
	require.NoError(t, l.Complete(ctx, claim.Entry))

	replay, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
	require.NoError(t, err)
	require.Equal(t, ClaimCompleted, replay.Outcome)
	assert.Equal(t, result, replay.Entry.Result)

	entries, err := l.List(ctx, "acme", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
