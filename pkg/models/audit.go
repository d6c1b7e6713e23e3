package models

import "time"

type AuditStatus string

const (
	AuditStatusPending   AuditStatus = "pending"
	AuditStatusCompleted AuditStatus = "completed"
)

// AuditEntry is the ledger row for one (tenant, occurrence) pair. A pending entry is a claim held
// by the invocation that is dispatching; a completed entry carries the recorded result.
type AuditEntry struct {
	ID            string            `json:"id" db:"id"`
	TenantID      string            `json:"tenant_id" db:"tenant_id"`
	OccurrenceID  string            `json:"occurrence_id" db:"occurrence_id"`
	Module        string            `json:"module" db:"module"`
	Event         string            `json:"event" db:"event"`
	Entity        string            `json:"entity" db:"entity"`
	Status        AuditStatus       `json:"status" db:"status"`
	ResultSummary string            `json:"result_summary" db:"result_summary"`
	Result        *EvaluationResult `json:"result,omitempty" db:"-"`
	ClaimedAt     time.Time         `json:"claimed_at" db:"claimed_at"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

func (e *AuditEntry) Completed() bool {
	return e.Status == AuditStatusCompleted
}
