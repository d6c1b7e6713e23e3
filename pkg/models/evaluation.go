package models

import (
	"fmt"
	"time"
)

// EvaluationRequest describes one occurrence of a domain event for a tenant.
type EvaluationRequest struct {
	TenantID     string                 `json:"tenant_id"`
	Module       string                 `json:"module"`
	Event        string                 `json:"event"`
	Entity       string                 `json:"entity"`
	Record       map[string]interface{} `json:"record"`
	OccurrenceID string                 `json:"occurrence_id,omitempty"`
}

func (r *EvaluationRequest) Trigger() Trigger {
	return Trigger{Module: r.Module, Event: r.Event, Entity: r.Entity}
}

type ActionStatus string

const (
	ActionStatusSucceeded ActionStatus = "succeeded"
	ActionStatusFailed    ActionStatus = "failed"
	ActionStatusSkipped   ActionStatus = "skipped"
)

// Action error codes reported in ActionResult.Error.
const (
	ActionErrTimeout         = "timeout"
	ActionErrCircuitOpen     = "circuit_open"
	ActionErrFailed          = "action_failed"
	ActionErrInvalidParams   = "invalid_params"
	ActionErrUnsupportedType = "unsupported_action_type"
	ActionErrCancelled       = "cancelled"
)

type ActionResult struct {
	RuleID     string       `json:"rule_id"`
	ActionType string       `json:"action_type"`
	Status     ActionStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
}

type EvaluationResult struct {
	OccurrenceID   string         `json:"occurrence_id"`
	MatchedRuleIDs []string       `json:"matched_rule_ids"`
	ActionResults  []ActionResult `json:"action_results"`
	Timestamp      time.Time      `json:"timestamp"`
}

func NewEvaluationResult(occurrenceID string, now time.Time) *EvaluationResult {
	return &EvaluationResult{
		OccurrenceID:   occurrenceID,
		MatchedRuleIDs: []string{},
		ActionResults:  []ActionResult{},
		// Truncated so the value survives a JSON round trip through the ledger unchanged.
		Timestamp: now.UTC().Truncate(time.Microsecond),
	}
}

// Summary renders a one-line description stored alongside the audit entry.
func (r *EvaluationResult) Summary() string {
	counts := map[ActionStatus]int{}
	for _, ar := range r.ActionResults {
		counts[ar.Status]++
	}
	return fmt.Sprintf("%d rules matched; %d actions: %d succeeded, %d failed, %d skipped",
		len(r.MatchedRuleIDs), len(r.ActionResults),
		counts[ActionStatusSucceeded], counts[ActionStatusFailed], counts[ActionStatusSkipped])
}
