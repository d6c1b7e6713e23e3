package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/migrations"
	"ruleflow/pkg/models"
)

type clockSetter interface {
	setNow(func() time.Time)
}

func (l *MemoryLedger) setNow(now func() time.Time) { l.now = now }
func (l *SQLLedger) setNow(now func() time.Time)    { l.now = now }

func newSQLiteLedger(t *testing.T) *SQLLedger {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.SQLite(db))
	l, err := NewSQLLedger(db, "sqlite3", "ledger-test")
	require.NoError(t, err)
	return l
}

func ledgers(t *testing.T) map[string]Ledger {
	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"sqlite": newSQLiteLedger(t),
	}
}

func pendingEntry(tenantID, occurrenceID string) *models.AuditEntry {
	return &models.AuditEntry{
		TenantID:     tenantID,
		OccurrenceID: occurrenceID,
		Module:       "crm",
		Event:        "updated",
		Entity:       "contact",
	}
}

func TestLedger_ClaimCompleteReplay(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
			require.NoError(t, err)
			require.Equal(t, ClaimAcquired, first.Outcome)

			second, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, ClaimPending, second.Outcome)

			other, err := l.Claim(ctx, pendingEntry("globex", "occ-1"), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, ClaimAcquired, other.Outcome, "occurrence ids are tenant scoped")

			result := models.NewEvaluationResult("occ-1", time.Now())
			result.MatchedRuleIDs = []string{"r1"}
			result.ActionResults = []models.ActionResult{{RuleID: "r1", ActionType: "notify", Status: models.ActionStatusSucceeded}}

			entry := first.Entry
			entry.Result = result
			entry.ResultSummary = result.Summary()
			require.NoError(t, l.Complete(ctx, entry))
			assert.True(t, entry.Completed())

			replay, err := l.Claim(ctx, pendingEntry("acme", "occ-1"), time.Minute)
			require.NoError(t, err)
			require.Equal(t, ClaimCompleted, replay.Outcome)
			assert.Equal(t, result, replay.Entry.Result)
			assert.Equal(t, result.Summary(), replay.Entry.ResultSummary)

			require.Error(t, l.Complete(ctx, entry), "an entry completes once")
		})
	}
}

func TestLedger_StaleClaimTakeover(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
			l.(clockSetter).setNow(func() time.Time { return now })

			abandoned, err := l.Claim(ctx, pendingEntry("acme", "occ-2"), time.Minute)
			require.NoError(t, err)
			require.Equal(t, ClaimAcquired, abandoned.Outcome)

			now = now.Add(30 * time.Second)
			live, err := l.Claim(ctx, pendingEntry("acme", "occ-2"), time.Minute)
			require.NoError(t, err)
			assert.Equal(t, ClaimPending, live.Outcome)

			now = now.Add(time.Minute)
			takeover, err := l.Claim(ctx, pendingEntry("acme", "occ-2"), time.Minute)
			require.NoError(t, err)
			require.Equal(t, ClaimAcquired, takeover.Outcome)

			err = l.Complete(ctx, abandoned.Entry)
			assert.True(t, pkgerrors.IsConflict(err), "the abandoned owner lost its claim")
			require.NoError(t, l.Complete(ctx, takeover.Entry))
		})
	}
}

func TestLedger_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				acquired int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					claim, err := l.Claim(context.Background(), pendingEntry("acme", "occ-race"), time.Minute)
					if !assert.NoError(t, err) {
						return
					}
					if claim.Outcome == ClaimAcquired {
						mu.Lock()
						acquired++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, acquired)
		})
	}
}

func TestLedger_LookupAndList(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
			l.(clockSetter).setNow(func() time.Time { return now })

			for i := 0; i < 5; i++ {
				now = now.Add(time.Second)
				_, err := l.Claim(ctx, pendingEntry("acme", fmt.Sprintf("occ-%d", i)), time.Minute)
				require.NoError(t, err)
			}
			_, err := l.Claim(ctx, pendingEntry("globex", "occ-x"), time.Minute)
			require.NoError(t, err)

			entry, err := l.Lookup(ctx, "acme", "occ-3")
			require.NoError(t, err)
			assert.Equal(t, models.AuditStatusPending, entry.Status)
			assert.Nil(t, entry.Result)

			_, err = l.Lookup(ctx, "globex", "occ-3")
			assert.True(t, pkgerrors.IsNotFound(err))

			page, err := l.List(ctx, "acme", ListOptions{Limit: 2, Offset: 1})
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "occ-3", page[0].OccurrenceID)
			assert.Equal(t, "occ-2", page[1].OccurrenceID)

			all, err := l.List(ctx, "acme", ListOptions{})
			require.NoError(t, err)
			assert.Len(t, all, 5)
		})
	}
}

func TestMemoryLedger_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryLedger().Claim(ctx, pendingEntry("acme", "occ"), time.Minute)
	assert.ErrorIs(t, err, pkgerrors.ErrLedgerUnavailable)
}
