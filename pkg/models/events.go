package models

import "time"

// RuleChangeEvent is published by the rules service after every rule mutation. Engines use it to
// drop their cached rule set for the tenant.
type RuleChangeEvent struct {
	EventType string    `json:"event_type"`
	TenantID  string    `json:"tenant_id"`
	RuleID    string    `json:"rule_id,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

const (
	EventTypeRuleChanged = "rule_changed"
	EventTypeDomain      = "domain_event"
	EventTypeNotify      = "notification"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)

// Notification is the message handed to the notification dispatcher.
type Notification struct {
	TenantID     string    `json:"tenant_id"`
	RuleID       string    `json:"rule_id"`
	OccurrenceID string    `json:"occurrence_id"`
	Channel      string    `json:"channel"`
	Recipient    string    `json:"recipient,omitempty"`
	Template     string    `json:"template,omitempty"`
	Subject      string    `json:"subject,omitempty"`
	Body         string    `json:"body,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}
