// Package ledger records one audit entry per (tenant, occurrence) and doubles as the idempotency
// ledger: the first invocation to claim an occurrence dispatches it, later ones replay its result.
package ledger

import (
	"context"
	"time"

	"ruleflow/pkg/models"
)

type ClaimOutcome int

const (
	// ClaimAcquired means the caller owns the occurrence and must Complete it.
	ClaimAcquired ClaimOutcome = iota
	// ClaimCompleted means a previous invocation already recorded a result.
	ClaimCompleted
	// ClaimPending means another invocation holds a live claim.
	ClaimPending
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimAcquired:
		return "acquired"
	case ClaimCompleted:
		return "completed"
	case ClaimPending:
		return "pending"
	default:
		return "unknown"
	}
}

type Claim struct {
	Outcome ClaimOutcome
	// Entry is the caller's pending entry when acquired, otherwise the stored one.
	Entry *models.AuditEntry
}

type ListOptions struct {
	Limit  int
	Offset int
}

// Ledger stores audit entries. A pending entry whose claim is older than the lease is considered
// abandoned and may be taken over by a new claimant.
type Ledger interface {
	Claim(ctx context.Context, entry *models.AuditEntry, lease time.Duration) (*Claim, error)
	Complete(ctx context.Context, entry *models.AuditEntry) error
	Lookup(ctx context.Context, tenantID, occurrenceID string) (*models.AuditEntry, error)
	List(ctx context.Context, tenantID string, opts ListOptions) ([]models.AuditEntry, error)
}
