package dispatch

import (
	"context"

	"ruleflow/pkg/models"
)

// Notifier sends a notification through a channel such as email or chat.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// RecordRef addresses one entity instance owned by a tenant.
type RecordRef struct {
	TenantID string
	Entity   string
	ID       string
}

// RecordStore mutates single fields of tenant records.
type RecordStore interface {
	MutateField(ctx context.Context, ref RecordRef, field string, value interface{}) error
}

type TicketRequest struct {
	TenantID     string                 `json:"tenant_id"`
	RuleID       string                 `json:"rule_id"`
	OccurrenceID string                 `json:"occurrence_id"`
	System       string                 `json:"system"`
	TicketID     string                 `json:"ticket_id,omitempty"`
	Title        string                 `json:"title,omitempty"`
	Description  string                 `json:"description,omitempty"`
	Priority     string                 `json:"priority,omitempty"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
}

// Ticketing is an ITSM adapter.
type Ticketing interface {
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
	UpdateTicket(ctx context.Context, req TicketRequest) error
	CloseTicket(ctx context.Context, req TicketRequest) error
}

type WebhookRequest struct {
	TenantID     string
	RuleID       string
	OccurrenceID string
	URL          string
	Method       string
	Headers      map[string]string
	Payload      map[string]interface{}
}

// WebhookInvoker delivers a signed payload and reports success based on the response status.
type WebhookInvoker interface {
	Invoke(ctx context.Context, req WebhookRequest) error
}

// Collaborators groups the external systems actions act upon. A nil collaborator makes its
// action type unsupported.
type Collaborators struct {
	Notifier Notifier
	Records  RecordStore
	Tickets  Ticketing
	Webhooks WebhookInvoker
}
