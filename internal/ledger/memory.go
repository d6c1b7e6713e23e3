package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

type occurrenceKey struct {
	tenantID     string
	occurrenceID string
}

// MemoryLedger is a process-local Ledger for tests and single-node deployments without a database.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[occurrenceKey]models.AuditEntry
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[occurrenceKey]models.AuditEntry),
		now:     time.Now,
	}
}

func (l *MemoryLedger) Claim(ctx context.Context, entry *models.AuditEntry, lease time.Duration) (*Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.ErrLedgerUnavailable.WithCause(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	key := occurrenceKey{entry.TenantID, entry.OccurrenceID}
	entry.ID = uuid.New().String()
	entry.Status = models.AuditStatusPending
	entry.ClaimedAt = now
	entry.CreatedAt = now

	existing, ok := l.entries[key]
	switch {
	case !ok:
		l.entries[key] = *entry
		return &Claim{Outcome: ClaimAcquired, Entry: entry}, nil
	case existing.Completed():
		return &Claim{Outcome: ClaimCompleted, Entry: &existing}, nil
	case existing.ClaimedAt.Before(now.Add(-lease)):
		entry.CreatedAt = existing.CreatedAt
		l.entries[key] = *entry
		return &Claim{Outcome: ClaimAcquired, Entry: entry}, nil
	default:
		return &Claim{Outcome: ClaimPending, Entry: &existing}, nil
	}
}

func (l *MemoryLedger) Complete(ctx context.Context, entry *models.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := occurrenceKey{entry.TenantID, entry.OccurrenceID}
	existing, ok := l.entries[key]
	if !ok || existing.ID != entry.ID || existing.Completed() {
		return pkgerrors.ErrConflict.
			WithDetail("message", "claim on occurrence was lost").
			WithDetail("occurrence_id", entry.OccurrenceID)
	}

	completedAt := l.now().UTC()
	entry.Status = models.AuditStatusCompleted
	entry.CompletedAt = &completedAt
	l.entries[key] = *entry
	return nil
}

func (l *MemoryLedger) Lookup(ctx context.Context, tenantID, occurrenceID string) (*models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[occurrenceKey{tenantID, occurrenceID}]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("occurrence_id", occurrenceID)
	}
	return &entry, nil
}

func (l *MemoryLedger) List(ctx context.Context, tenantID string, opts ListOptions) ([]models.AuditEntry, error) {
	l.mu.Lock()
	entries := []models.AuditEntry{}
	for key, entry := range l.entries {
		if key.tenantID == tenantID {
			entries = append(entries, entry)
		}
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].OccurrenceID < entries[j].OccurrenceID
	})

	limit, offset := normalize(opts)
	if offset >= len(entries) {
		return []models.AuditEntry{}, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
