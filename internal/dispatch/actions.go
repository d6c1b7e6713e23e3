package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

type ActionType string

const (
	ActionNotify        ActionType = "notify"
	ActionMutateField   ActionType = "mutate_field"
	ActionCreateTicket  ActionType = "create_ticket"
	ActionInvokeWebhook ActionType = "invoke_webhook"
)

// SupportedActionTypes lists the closed set of action variants.
var SupportedActionTypes = []ActionType{ActionNotify, ActionMutateField, ActionCreateTicket, ActionInvokeWebhook}

// Action is a decoded action. The set of implementations is closed: NotifyAction,
// MutateFieldAction, CreateTicketAction and InvokeWebhookAction.
type Action interface {
	Type() ActionType
	// render returns a copy with every {{...}} reference in its parameters resolved against s.
	// It fails when the resolved parameters are no longer valid.
	render(s Scope) (Action, error)
}

type NotifyAction struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Template  string `json:"template,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

type MutateFieldAction struct {
	// EntityID defaults to {{record.id}}.
	EntityID string      `json:"entity_id,omitempty"`
	Field    string      `json:"field"`
	Value    interface{} `json:"value"`
}

type TicketOperation string

const (
	TicketCreate TicketOperation = "create"
	TicketUpdate TicketOperation = "update"
	TicketClose  TicketOperation = "close"
)

type CreateTicketAction struct {
	System      string                 `json:"system"`
	Operation   TicketOperation        `json:"operation,omitempty"`
	TicketID    string                 `json:"ticket_id,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Priority    string                 `json:"priority,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

type InvokeWebhookAction struct {
	URL     string                 `json:"url"`
	Method  string                 `json:"method,omitempty"`
	Headers map[string]string      `json:"headers,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func (NotifyAction) Type() ActionType        { return ActionNotify }
func (MutateFieldAction) Type() ActionType   { return ActionMutateField }
func (CreateTicketAction) Type() ActionType  { return ActionCreateTicket }
func (InvokeWebhookAction) Type() ActionType { return ActionInvokeWebhook }

func (a NotifyAction) render(s Scope) (Action, error) {
	a.Recipient = s.Render(a.Recipient)
	a.Template = s.Render(a.Template)
	a.Subject = s.Render(a.Subject)
	a.Body = s.Render(a.Body)
	return a, nil
}

func (a MutateFieldAction) render(s Scope) (Action, error) {
	a.EntityID = s.Render(a.EntityID)
	a.Value = s.RenderValue(a.Value)
	return a, nil
}

func (a CreateTicketAction) render(s Scope) (Action, error) {
	a.TicketID = s.Render(a.TicketID)
	a.Title = s.Render(a.Title)
	a.Description = s.Render(a.Description)
	a.Fields = s.RenderMap(a.Fields)
	return a, nil
}

// render checks the URL again once record values are in it. Decode only saw the template.
func (a InvokeWebhookAction) render(s Scope) (Action, error) {
	a.URL = s.Render(a.URL)
	if err := checkWebhookURL(a.URL); err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(a.Headers))
	for k, v := range a.Headers {
		headers[k] = s.Render(v)
	}
	a.Headers = headers
	a.Payload = s.RenderMap(a.Payload)
	return a, nil
}

func checkWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ParamError{ActionType: ActionInvokeWebhook, Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ErrUnsupportedActionType is returned by Decode for a type outside the closed set.
var ErrUnsupportedActionType = pkgerrors.ErrUnsupportedAction

// ParamError describes action parameters that cannot be decoded into their typed shape.
type ParamError struct {
	ActionType ActionType
	Field      string
	Message    string
}

func (e *ParamError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s params: %s", e.ActionType, e.Message)
	}
	return fmt.Sprintf("invalid %s params: %s: %s", e.ActionType, e.Field, e.Message)
}

// Decode converts a stored action spec into its typed variant and checks required parameters.
func Decode(spec models.ActionSpec) (Action, error) {
	switch ActionType(spec.Type) {
	case ActionNotify:
		var a NotifyAction
		if err := decodeParams(spec, &a); err != nil {
			return nil, err
		}
		if a.Channel == "" {
			return nil, &ParamError{ActionType: ActionNotify, Field: "channel", Message: "is required"}
		}
		if a.Template == "" && a.Body == "" {
			return nil, &ParamError{ActionType: ActionNotify, Field: "template", Message: "template or body is required"}
		}
		return a, nil

	case ActionMutateField:
		var a MutateFieldAction
		if err := decodeParams(spec, &a); err != nil {
			return nil, err
		}
		if a.Field == "" {
			return nil, &ParamError{ActionType: ActionMutateField, Field: "field", Message: "is required"}
		}
		if a.EntityID == "" {
			a.EntityID = "{{record.id}}"
		}
		return a, nil

	case ActionCreateTicket:
		var a CreateTicketAction
		if err := decodeParams(spec, &a); err != nil {
			return nil, err
		}
		if a.System == "" {
			return nil, &ParamError{ActionType: ActionCreateTicket, Field: "system", Message: "is required"}
		}
		if a.Operation == "" {
			a.Operation = TicketCreate
		}
		switch a.Operation {
		case TicketCreate:
			if a.Title == "" {
				return nil, &ParamError{ActionType: ActionCreateTicket, Field: "title", Message: "is required to create a ticket"}
			}
		case TicketUpdate, TicketClose:
			if a.TicketID == "" {
				return nil, &ParamError{ActionType: ActionCreateTicket, Field: "ticket_id", Message: "is required to " + string(a.Operation) + " a ticket"}
			}
		default:
			return nil, &ParamError{ActionType: ActionCreateTicket, Field: "operation", Message: "must be create, update or close"}
		}
		return a, nil

	case ActionInvokeWebhook:
		var a InvokeWebhookAction
		if err := decodeParams(spec, &a); err != nil {
			return nil, err
		}
		if err := checkWebhookURL(a.URL); err != nil {
			return nil, err
		}
		a.Method = strings.ToUpper(a.Method)
		if a.Method == "" {
			a.Method = "POST"
		}
		switch a.Method {
		case "POST", "PUT", "PATCH":
		default:
			return nil, &ParamError{ActionType: ActionInvokeWebhook, Field: "method", Message: "must be POST, PUT or PATCH"}
		}
		return a, nil

	default:
		return nil, ErrUnsupportedActionType.
			WithDetail("action_type", spec.Type).
			WithDetail("message", fmt.Sprintf("unsupported action type %q", spec.Type))
	}
}

func decodeParams(spec models.ActionSpec, out interface{}) error {
	params := spec.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return &ParamError{ActionType: ActionType(spec.Type), Message: err.Error()}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParamError{ActionType: ActionType(spec.Type), Message: err.Error()}
	}
	return nil
}
